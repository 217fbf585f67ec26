package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"research-tracker/internal/logging"
	"research-tracker/internal/model"
	"research-tracker/internal/query"
	"research-tracker/internal/tracker"
)

const maxBodyBytes = 1 << 16

// Reader is the read side of the job store.
type Reader interface {
	Snapshot() model.Snapshot
	Get(id string) (model.Job, bool)
}

// Submitter accepts raw research queries.
type Submitter interface {
	Submit(raw string) (model.Job, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(raw string) (model.Job, error)

func (f SubmitterFunc) Submit(raw string) (model.Job, error) { return f(raw) }

type Options struct {
	Reader    Reader
	Submitter Submitter
	Evaluator query.Evaluator
	Logger    *slog.Logger
}

// ResearchHandler serves the research job endpoints.
type ResearchHandler struct {
	reader    Reader
	submitter Submitter
	eval      query.Evaluator
	logger    *slog.Logger
}

func NewResearchHandler(opts Options) *ResearchHandler {
	h := &ResearchHandler{
		reader:    opts.Reader,
		submitter: opts.Submitter,
		eval:      opts.Evaluator,
		logger:    opts.Logger,
	}
	if h.eval == nil {
		h.eval = query.NewEvaluator()
	}
	if h.logger == nil {
		h.logger = logging.Discard()
	}
	return h
}

// SubmitRequest is the body of POST /v1/research.
type SubmitRequest struct {
	Query string `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type filterResponse struct {
	Filter string `json:"filter"`
	Result any    `json:"result"`
}

// Health handles GET /health
func (h *ResearchHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.reader.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"jobs":        snap.Total,
		"in_progress": snap.InProgress,
	})
}

// SubmitResearch handles POST /v1/research
func (h *ResearchHandler) SubmitResearch(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.submitter.Submit(req.Query)
	switch {
	case errors.Is(err, tracker.ErrBlankQuery):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		h.logger.Error("submit research failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit research")
		return
	}

	w.Header().Set("Location", "/v1/research/"+job.ID)
	writeJSON(w, http.StatusCreated, job)
}

// ListResearch handles GET /v1/research
func (h *ResearchHandler) ListResearch(w http.ResponseWriter, r *http.Request) {
	snap, err := query.ByStatus(h.reader.Snapshot(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expr := strings.TrimSpace(r.URL.Query().Get("filter"))
	if expr == "" {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	result, err := query.Snapshot(h.eval, expr, snap)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, filterResponse{Filter: expr, Result: result})
}

// GetResearch handles GET /v1/research/{id}
func (h *ResearchHandler) GetResearch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.reader.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "research job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
