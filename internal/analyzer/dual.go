package analyzer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/progress"
	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

const basicPrompt = `You are a meeting insights engine. Analyze this meeting transcript:
"""%s"""

Return ONLY a JSON object with keys:
summary (2-3 sentence overview, required),
tasks (list of short task phrases),
decisions (list of decisions that were made),
dates (list of dates or deadlines mentioned),
topics (list of discussed topics).`

const deepPrompt = `You are a meeting insights engine. Analyze this meeting transcript:
"""%s"""

Return ONLY a JSON object with keys:
people_mentioned (list of {name, role}),
projects_identified (list of {project_name}),
action_items (list of {task, assignee, deadline, priority}).`

// Invoker is the LLM invocation contract consumed by the dual analyzer.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, out any) error
}

// Outcome is the settled pair of analysis passes. Each slot is either a
// populated payload (OK) or empty; a failed branch never surfaces as an
// error from Analyze. Callers wanting "analysis failed entirely" inspect
// payload emptiness, not an error value.
type Outcome struct {
	Basic   models.Analysis
	BasicOK bool
	Deep    models.DeepAnalysis
	DeepOK  bool
}

// Dual runs the basic and deep extraction passes concurrently and waits for
// both to settle. The failure of one branch never cancels the other.
type Dual struct {
	llm    Invoker
	bus    *progress.Bus
	logger zerolog.Logger
}

func NewDual(llm Invoker, bus *progress.Bus, logger zerolog.Logger) (*Dual, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm invoker is required")
	}
	return &Dual{
		llm:    llm,
		bus:    bus,
		logger: logger.With().Str("component", "dual_analyzer").Logger(),
	}, nil
}

// Analyze settles both passes and reports the pair. It never returns an
// error: partial insight is still useful and must not block the recording
// from reaching analyzed.
func (d *Dual) Analyze(ctx context.Context, recordingID uuid.UUID, transcript string) Outcome {
	var out Outcome
	var wg sync.WaitGroup
	var settled int

	report := func(branch string, err error) {
		settled++
		d.bus.Publish(progress.Event{
			RecordingID: recordingID,
			Stage:       progress.StageAnalyze,
			Done:        settled,
			Total:       2,
			Message:     branch,
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("branch", branch).Msg("analysis branch failed")
		}
	}

	wg.Add(2)

	var basicErr, deepErr error
	go func() {
		defer wg.Done()
		var a models.Analysis
		basicErr = d.llm.Invoke(ctx, fmt.Sprintf(basicPrompt, transcript), &a)
		if basicErr == nil && a.Summary != "" {
			out.Basic = a
			out.BasicOK = true
		} else if basicErr == nil {
			basicErr = fmt.Errorf("basic pass returned no summary")
		}
	}()
	go func() {
		defer wg.Done()
		var deep models.DeepAnalysis
		deepErr = d.llm.Invoke(ctx, fmt.Sprintf(deepPrompt, transcript), &deep)
		if deepErr == nil {
			out.Deep = deep
			out.DeepOK = true
		}
	}()

	wg.Wait()

	report("basic", basicErr)
	report("deep", deepErr)

	return out
}
