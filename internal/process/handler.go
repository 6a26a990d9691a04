package process

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/pkg/models"
)

const problemBase = "https://textlens.dev/problems/"

// maxSelectedBytes bounds the request body of POST /api/v1/process.
const maxSelectedBytes = 1 << 20

// Handler exposes the Machine over HTTP.
type Handler struct {
	machine *Machine
	// base bounds every run started over HTTP. Runs outlive the request
	// that started them.
	base   context.Context
	logger *zap.Logger
}

// NewHandler creates a Handler. base is typically the server lifetime
// context.
func NewHandler(base context.Context, machine *Machine, logger *zap.Logger) *Handler {
	return &Handler{machine: machine, base: base, logger: logger}
}

// RegisterRoutes registers process routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/process", h.handleProcess)
	mux.HandleFunc("POST /api/v1/process/cancel", h.handleCancel)
	mux.HandleFunc("POST /api/v1/process/clear-error", h.handleClearError)
	mux.HandleFunc("POST /api/v1/process/retry", h.handleRetry)
	mux.HandleFunc("GET /api/v1/process/state", h.handleState)
}

// handleProcess starts a run for the posted selection.
//
//	@Summary		Process selected text
//	@Tags			process
//	@Accept			json
//	@Produce		json
//	@Param			request	body	Input	true	"Selected text and optional template"
//	@Success		202	{object}	State	"Run started"
//	@Failure		400	{object}	models.APIProblem	"Invalid request"
//	@Failure		429	{object}	models.APIProblem	"Rate limited"
//	@Router			/process [post]
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var in Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSelectedBytes))
	if err := dec.Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", "invalid request body")
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		writeProblem(w, http.StatusBadRequest, "bad-request", "selected_text is required")
		return
	}
	if in.TemplateID < 0 {
		writeProblem(w, http.StatusBadRequest, "bad-request", "template_id must not be negative")
		return
	}

	h.machine.ProcessText(h.base, in)
	writeJSON(w, http.StatusAccepted, h.machine.State())
}

// handleCancel aborts the in-flight run.
//
//	@Summary		Cancel processing
//	@Tags			process
//	@Produce		json
//	@Success		200	{object}	State	"Current state"
//	@Failure		409	{object}	models.APIProblem	"No run in progress"
//	@Router			/process/cancel [post]
func (h *Handler) handleCancel(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.machine.Cancel())
}

// handleClearError returns from Error to Idle.
//
//	@Summary		Clear error
//	@Tags			process
//	@Produce		json
//	@Success		200	{object}	State	"Current state"
//	@Failure		409	{object}	models.APIProblem	"Not in the error state"
//	@Router			/process/clear-error [post]
func (h *Handler) handleClearError(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.machine.ClearError())
}

// handleRetry re-runs the last input after an error.
//
//	@Summary		Retry
//	@Tags			process
//	@Produce		json
//	@Success		202	{object}	State	"Run started"
//	@Failure		409	{object}	models.APIProblem	"Not in the error state"
//	@Router			/process/retry [post]
func (h *Handler) handleRetry(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.machine.Retry(h.base); err != nil {
		h.respond(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.machine.State())
}

// handleState returns the current snapshot.
//
//	@Summary		Get state
//	@Tags			process
//	@Produce		json
//	@Success		200	{object}	State	"Current state"
//	@Router			/process/state [get]
func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.machine.State())
}

// respond writes the current state, or a 409 problem when err is a
// rejected transition.
func (h *Handler) respond(w http.ResponseWriter, err error) {
	var te *TransitionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.machine.State())
	case errors.As(err, &te):
		writeProblem(w, http.StatusConflict, "invalid-transition", err.Error())
	default:
		h.logger.Error("process transition failed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "internal-error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, kind, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIProblem{
		Type:   problemBase + kind,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
