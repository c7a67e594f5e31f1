package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"alpaca/backend/internal/archive"
	"alpaca/backend/internal/config"
	"alpaca/backend/internal/jobs"
	"alpaca/backend/internal/research"
)

// Handler serves the research API. archive may be nil when no archive
// database is configured; the archive endpoint then reports unavailable.
type Handler struct {
	cfg     config.Config
	orch    *research.Orchestrator
	archive *archive.Store
}

func NewHandler(cfg config.Config, orch *research.Orchestrator, archiveStore *archive.Store) *Handler {
	return &Handler{cfg: cfg, orch: orch, archive: archiveStore}
}

type createRequest struct {
	Query      string `json:"query"`
	Sources    string `json:"sources"`
	NumResults int    `json:"numResults"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
}

func (h *Handler) createResearch(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	job, err := h.orch.Submit(req.Query, research.SubmitOptions{
		Sources:    jobs.Source(req.Sources),
		NumResults: req.NumResults,
		Provider:   req.Provider,
		Model:      req.Model,
	})
	if err != nil {
		switch {
		case errors.Is(err, research.ErrInvalidQuery),
			errors.Is(err, research.ErrInvalidSources),
			errors.Is(err, research.ErrInvalidNumResults):
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to start research")
		}
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

func (h *Handler) listResearch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"jobs": h.orch.List()})
}

func (h *Handler) getResearch(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "research job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "research job not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"job":      job,
		"progress": job.ProgressLog,
	})
}

func (h *Handler) deleteResearch(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Delete(chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusNotFound, "not_found", "research job not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) listArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, http.StatusServiceUnavailable, "archive_disabled", "no archive database is configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer between 1 and 500")
			return
		}
		limit = parsed
	}

	entries, err := h.archive.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to read archive")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": entries})
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"maxResults":        h.cfg.MaxResults,
		"defaultNumResults": h.cfg.DefaultNumResults,
		"minNumResults":     h.cfg.MinNumResults,
		"maxNumResults":     h.cfg.MaxNumResults,
		"searchMultiplier":  h.cfg.SearchMultiplier,
		"maxContentSize":    h.cfg.MaxContentSize,
		"maxConcurrentJobs": h.cfg.MaxConcurrentJobs,
		"reportProvider":    h.cfg.ReportProvider,
		"reportModel":       h.cfg.ReportModel,
		"reportingEnabled":  h.cfg.ReportingEnabled(),
		"archiveEnabled":    h.archive != nil,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
