package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/recording-pipeline/internal/recording/models"
)

// invokerStub settles each branch according to the configured errors and
// records invocation overlap to prove concurrent dispatch.
type invokerStub struct {
	mu        sync.Mutex
	basicErr  error
	deepErr   error
	noSummary bool
	delay     time.Duration
	calls     []string
}

func (s *invokerStub) Invoke(ctx context.Context, prompt string, out any) error {
	branch := "deep"
	if strings.Contains(prompt, "summary") {
		branch = "basic"
	}

	s.mu.Lock()
	s.calls = append(s.calls, branch)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	switch v := out.(type) {
	case *models.Analysis:
		if s.basicErr != nil {
			return s.basicErr
		}
		if !s.noSummary {
			v.Summary = "team agreed on the migration plan"
			v.Tasks = []string{"ship migration"}
			v.Decisions = []string{"postgres 17"}
		}
		return nil
	case *models.DeepAnalysis:
		if s.deepErr != nil {
			return s.deepErr
		}
		v.PeopleMentioned = []models.Person{{Name: "Dana", Role: "lead"}}
		v.ActionItems = []models.ActionItem{{Task: "ship migration", Assignee: "Dana"}}
		return nil
	default:
		return fmt.Errorf("unexpected target type %T", out)
	}
}

func newDualForTest(t *testing.T, stub *invokerStub) *Dual {
	t.Helper()
	d, err := NewDual(stub, nil, zerolog.Nop())
	require.NoError(t, err)
	return d
}

func TestDual_BothPassesSucceed(t *testing.T) {
	stub := &invokerStub{}
	d := newDualForTest(t, stub)

	out := d.Analyze(context.Background(), uuid.New(), "transcript")
	require.True(t, out.BasicOK)
	require.True(t, out.DeepOK)
	assert.Equal(t, "team agreed on the migration plan", out.Basic.Summary)
	assert.Len(t, out.Deep.ActionItems, 1)

	// Both branches must have been dispatched.
	assert.ElementsMatch(t, []string{"basic", "deep"}, stub.calls)
}

func TestDual_DeepFailureLeavesBasicIntact(t *testing.T) {
	stub := &invokerStub{deepErr: fmt.Errorf("llm server error")}
	d := newDualForTest(t, stub)

	out := d.Analyze(context.Background(), uuid.New(), "transcript")
	require.True(t, out.BasicOK)
	require.False(t, out.DeepOK)
	assert.Equal(t, "team agreed on the migration plan", out.Basic.Summary)
	assert.True(t, out.Deep.IsEmpty())
}

func TestDual_BasicFailureLeavesDeepIntact(t *testing.T) {
	stub := &invokerStub{basicErr: fmt.Errorf("llm server error")}
	d := newDualForTest(t, stub)

	out := d.Analyze(context.Background(), uuid.New(), "transcript")
	require.False(t, out.BasicOK)
	require.True(t, out.DeepOK)
	assert.True(t, out.Basic.IsEmpty())
	assert.Len(t, out.Deep.PeopleMentioned, 1)

	// Settle-all: the failed branch must not prevent the other from being
	// dispatched and completing.
	assert.ElementsMatch(t, []string{"basic", "deep"}, stub.calls)
}

func TestDual_BothFail(t *testing.T) {
	stub := &invokerStub{
		basicErr: fmt.Errorf("llm down"),
		deepErr:  fmt.Errorf("llm down"),
	}
	d := newDualForTest(t, stub)

	out := d.Analyze(context.Background(), uuid.New(), "transcript")
	assert.False(t, out.BasicOK)
	assert.False(t, out.DeepOK)
	assert.True(t, out.Basic.IsEmpty())
	assert.True(t, out.Deep.IsEmpty())
}

func TestDual_MissingSummaryFailsBasicBranch(t *testing.T) {
	// Summary is the only required field of the basic pass; a reply without
	// it counts as a failed branch, not a partial success.
	stub := &invokerStub{noSummary: true}
	d := newDualForTest(t, stub)

	out := d.Analyze(context.Background(), uuid.New(), "transcript")
	assert.False(t, out.BasicOK)
	assert.True(t, out.DeepOK)
}
