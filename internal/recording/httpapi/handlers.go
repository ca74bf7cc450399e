package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/pipeline"
	"github.com/romariotrain/recording-pipeline/internal/recording/models"
	"github.com/romariotrain/recording-pipeline/internal/recording/service"
)

// maxUploadSize ограничивает размер multipart-запроса.
const maxUploadSize = 2 << 30 // 2GB

// processTimeout is the budget for one full background pipeline run,
// chunked transcription of a long recording included.
const processTimeout = 60 * time.Minute

// Distributor fans the analysis of a recording out into side effects.
type Distributor interface {
	Distribute(ctx context.Context, id uuid.UUID, sel models.DistributionSelection) (*models.Recording, models.DistributionResult, error)
}

type Handler struct {
	svc         *service.Service
	pipeline    *pipeline.Pipeline
	distributor Distributor
	logger      zerolog.Logger
}

func New(svc *service.Service, p *pipeline.Pipeline, d Distributor, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:         svc,
		pipeline:    p,
		distributor: d,
		logger:      logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// UploadRecording принимает multipart-форму с аудио и ставит запись в обработку.
// Обработка идет в фоне: клиент сразу получает 202 и запись в статусе processing.
func (h *Handler) UploadRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "failed to read file")
		return
	}

	tenantID, err := uuid.Parse(r.FormValue("tenant_id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid tenant_id")
		return
	}

	duration := 0
	if v := r.FormValue("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil || duration < 0 {
			writeErrorJSON(w, http.StatusBadRequest, "invalid duration")
			return
		}
	}

	in := pipeline.Input{
		TenantID: tenantID,
		Filename: header.Filename,
		Title:    r.FormValue("title"),
		Duration: duration,
		Data:     data,
	}

	rec, err := h.pipeline.Accept(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Обработка переживает HTTP-запрос, поэтому контекст свой.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		if _, err := h.pipeline.Process(ctx, rec, in); err != nil {
			h.logger.Error().Err(err).Stringer("recording_id", rec.ID).Msg("background processing failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, toRecordingResponse(rec))
}

func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := h.svc.GetRecording(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid tenant_id")
		return
	}

	recs, err := h.svc.ListRecordings(r.Context(), tenantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]RecordingResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toRecordingResponse(&recs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Distribute выполняет выбранные действия и дописывает запись в журнал рассылки.
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	defer r.Body.Close()

	var req DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	rec, result, err := h.distributor.Distribute(r.Context(), id, req.toSelection())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DistributeResponse{
		Recording: toRecordingResponse(rec),
		Result:    result,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, "invalid argument")
	case errors.Is(err, models.ErrNotDistributable):
		writeErrorJSON(w, http.StatusConflict, "recording is not ready for distribution")
	case errors.Is(err, models.ErrConflict):
		writeErrorJSON(w, http.StatusConflict, "conflict")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
