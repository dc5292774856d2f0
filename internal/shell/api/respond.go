package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dockgeac/dockgeac/internal/core/compose"
	"github.com/dockgeac/dockgeac/internal/shell/engine"
	"github.com/dockgeac/dockgeac/internal/shell/runtime"

	"github.com/go-chi/chi/v5"
)

// =============================================================================
// Envelope Helpers
// =============================================================================

// envelope is the uniform response shape.
type envelope struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

func (h *Handler) writeOK(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"ok": true}
	for key, value := range extra {
		body[key] = value
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) writeFail(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, envelope{OK: false, Msg: msg})
}

// writeError maps the error taxonomy onto HTTP statuses. Every failure
// carries the same {ok:false, msg} shape.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validation *engine.ValidationError
	var compileErr *compose.CompileError
	switch {
	case errors.As(err, &validation), errors.As(err, &compileErr):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrStackNotFound),
		errors.Is(err, runtime.ErrContainerNotFound),
		errors.Is(err, runtime.ErrImageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrStackExists),
		errors.Is(err, runtime.ErrImageInUse):
		status = http.StatusConflict
	}

	h.logger.Warn("request failed", "status", status, "error", err)
	h.writeFail(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// =============================================================================
// Request Helpers
// =============================================================================

// decode parses the JSON body, answering a validation failure on
// mismatch. Unknown fields are rejected so typos surface immediately.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		h.writeFail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// stackName extracts and requires the {name} route parameter.
func (h *Handler) stackName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if name == "" {
		h.writeFail(w, http.StatusBadRequest, "stack name is required")
		return "", false
	}
	return name, true
}

// stackOp runs a single-argument engine operation for the named stack.
func (h *Handler) stackOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	name, ok := h.stackName(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, nil)
}
