package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/masteryquest/backend/internal/middleware"
	"github.com/masteryquest/backend/internal/models"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 10 << 20
)

// ContentEnricher turns raw study text into a stored content bundle and a
// quality classification.
type ContentEnricher interface {
	Enrich(ctx context.Context, text string) (json.RawMessage, string, error)
}

// MaterialImporter registers materials from an uploaded workbook.
type MaterialImporter interface {
	Import(ctx context.Context, userID int64, r io.Reader) (*models.ImportResponse, error)
}

type Handler struct {
	service  *Service
	enricher ContentEnricher
	importer MaterialImporter
}

// NewHandler builds the HTTP layer. enricher and importer may be nil.
func NewHandler(service *Service, enricher ContentEnricher, importer MaterialImporter) *Handler {
	return &Handler{service: service, enricher: enricher, importer: importer}
}

// Routes registers every progress endpoint on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/session", h.StartSession).Methods("POST")
	r.HandleFunc("/session", h.EndSession).Methods("DELETE")

	r.HandleFunc("/progress", h.GetProgress).Methods("GET")
	r.HandleFunc("/progress/summary", h.GetSummary).Methods("GET")
	r.HandleFunc("/progress/review", h.GetReviewQueue).Methods("GET")

	r.HandleFunc("/materials", h.RegisterMaterial).Methods("POST")
	r.HandleFunc("/materials", h.ClearMaterials).Methods("DELETE")
	r.HandleFunc("/materials/import", h.ImportMaterials).Methods("POST")
	r.HandleFunc("/materials/{id}/stages/{stage}", h.GetStageStatus).Methods("GET")
	r.HandleFunc("/materials/{id}/stages/{stage}/attempts", h.RecordAttempt).Methods("POST")

	r.HandleFunc("/stages", h.ListStages).Methods("GET")
}

func getUserID(r *http.Request) (int64, bool) {
	return middleware.UserIDFromContext(r.Context())
}

// ── Session ─────────────────────────────────────────────

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	writeJSON(w, http.StatusOK, h.service.StartSession(r.Context(), userID))
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	h.service.EndSession(userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// ── Progress ────────────────────────────────────────────

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	writeJSON(w, http.StatusOK, h.service.Snapshot(r.Context(), userID))
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	writeJSON(w, http.StatusOK, h.service.Summary(r.Context(), userID))
}

func (h *Handler) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	writeJSON(w, http.StatusOK, models.ReviewQueueResponse{Items: h.service.ReviewQueue(r.Context(), userID)})
}

// ── Materials ───────────────────────────────────────────

func (h *Handler) RegisterMaterial(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.RegisterMaterialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	content := req.Content
	quality := ""
	if len(content) == 0 && req.Text != "" && h.enricher != nil {
		data, q, err := h.enricher.Enrich(r.Context(), req.Text)
		if err != nil {
			log.Printf("[generator] content generation failed for user %d: %v", userID, err)
			writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: err.Error()})
			return
		}
		if q == "reject" {
			writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: "Generated content failed the quality check"})
			return
		}
		content, quality = data, q
	}

	id, err := h.service.RegisterMaterial(r.Context(), userID, NewMaterial{
		Title:       req.Title,
		Category:    req.Category,
		SourceLabel: req.SourceLabel,
		Content:     content,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidMaterial) {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to register material"})
		return
	}

	title := h.service.Snapshot(r.Context(), userID).Materials[id].Title
	writeJSON(w, http.StatusCreated, models.RegisterMaterialResponse{MaterialID: id, Title: title, Quality: quality})
}

func (h *Handler) ImportMaterials(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	if h.importer == nil {
		writeJSON(w, http.StatusNotImplemented, models.ErrorResponse{Error: "Import is not available"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid multipart form"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "file is required"})
		return
	}
	defer file.Close()

	resp, err := h.importer.Import(r.Context(), userID, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ClearMaterials(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	h.service.ClearMaterials(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ── Stages ──────────────────────────────────────────────

func (h *Handler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	vars := mux.Vars(r)
	var req models.RecordAttemptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	out, err := h.service.RecordAttempt(r.Context(), userID, Attempt{
		MaterialID: vars["id"],
		Stage:      vars["stage"],
		Accuracy:   req.Accuracy,
		Combo:      req.Combo,
		StartedAt:  req.StartedAt,
	})
	if err != nil {
		writeLookupError(w, err, "Failed to record attempt")
		return
	}

	writeJSON(w, http.StatusOK, models.AttemptResponse{
		Award:            out.Award,
		Completed:        out.Completed,
		AlreadyCompleted: out.AlreadyCompleted,
		GatePassed:       out.GatePassed,
		Multiplier:       out.Multiplier,
		Flagged:          out.Flag != nil,
		MaterialXP:       out.MaterialXP,
		TotalXP:          out.TotalXP,
	})
}

func (h *Handler) GetStageStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	vars := mux.Vars(r)
	resp, err := h.service.StageStatus(r.Context(), userID, vars["id"], vars["stage"])
	if err != nil {
		writeLookupError(w, err, "Failed to get stage status")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListStages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"stages": h.service.Catalog().Stages()})
}

// ── Helpers ─────────────────────────────────────────────

func writeLookupError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMaterialNotFound), errors.Is(err, ErrUnknownStage):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: fallback})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
