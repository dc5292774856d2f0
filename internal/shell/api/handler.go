// Package api provides the request-validated entry points consumed by
// the transport layer. This is part of the Imperative Shell.
//
// Every operation authenticates (delegated to middleware), type-checks
// its arguments, invokes the engine, and answers with an {ok, ...}
// envelope: {ok:true, ...} on success, {ok:false, msg} on any error.
// The exception is log streaming, which answers success with plain text
// chunks; its failures still use the {ok:false, msg} envelope.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dockgeac/dockgeac/internal/core/compose"
	"github.com/dockgeac/dockgeac/internal/shell/adapter"
	"github.com/dockgeac/dockgeac/internal/shell/engine"
)

// =============================================================================
// Handler
// =============================================================================

// Handler exposes the engine over HTTP.
type Handler struct {
	engine       *engine.Engine
	runtime      adapter.RuntimeAdapter
	sharedSecret string
	logger       *slog.Logger
}

// NewHandler creates the façade. sharedSecret enables header
// authentication when non-empty; empty means unauthenticated (local
// development).
func NewHandler(e *engine.Engine, rt adapter.RuntimeAdapter, sharedSecret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:       e,
		runtime:      rt,
		sharedSecret: sharedSecret,
		logger:       logger.With("component", "api"),
	}
}

// Routes returns the HTTP routes.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.authenticate)

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stacks", h.handleStackList)
		r.Post("/stacks", h.handleSaveStack)
		r.Get("/stacks/{name}", h.handleGetStack)
		r.Put("/stacks/{name}", h.handleSaveStack)
		r.Delete("/stacks/{name}", h.handleDeleteStack)
		r.Post("/stacks/{name}/deploy", h.handleDeployStack)
		r.Post("/stacks/{name}/start", h.handleStartStack)
		r.Post("/stacks/{name}/stop", h.handleStopStack)
		r.Post("/stacks/{name}/restart", h.handleRestartStack)
		r.Post("/stacks/{name}/update", h.handleUpdateStack)
		r.Post("/stacks/{name}/down", h.handleDownStack)
		r.Get("/stacks/{name}/services", h.handleServiceStatusList)
		r.Get("/stacks/{name}/services/{service}/logs", h.handleServiceLogs)
		r.Post("/stacks/{name}/services/{service}/exec", h.handleExec)

		r.Get("/networks", h.handleNetworkList)
		r.Get("/images", h.handleImageList)
		r.Delete("/images", h.handleDeleteImage)
		r.Post("/compose/check", h.handleCheckComposeCompat)
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// authenticate checks the shared-secret header when one is configured.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.sharedSecret != "" && r.Header.Get("X-Dockgeac-Secret") != h.sharedSecret {
			h.writeFail(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, map[string]any{"runtime": h.runtime.Available(r.Context())})
}

// =============================================================================
// Stack Operations
// =============================================================================

// saveStackRequest carries the saveStack arguments. Types are enforced
// by JSON decoding; required fields are checked explicitly.
type saveStackRequest struct {
	Name        string `json:"name"`
	ComposeYAML string `json:"composeYAML"`
	ComposeENV  string `json:"composeENV"`
	IsAdd       bool   `json:"isAdd"`
}

func (h *Handler) handleSaveStack(w http.ResponseWriter, r *http.Request) {
	var req saveStackRequest
	if !h.decode(w, r, &req) {
		return
	}
	if name := chi.URLParam(r, "name"); name != "" {
		req.Name = name
	}
	if req.Name == "" {
		h.writeFail(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ComposeYAML == "" {
		h.writeFail(w, http.StatusBadRequest, "composeYAML is required")
		return
	}

	if err := h.engine.Save(r.Context(), req.Name, req.ComposeYAML, req.ComposeENV, req.IsAdd); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, nil)
}

func (h *Handler) handleDeployStack(w http.ResponseWriter, r *http.Request) {
	h.stackOp(w, r, h.engine.Deploy)
}

func (h *Handler) handleStartStack(w http.ResponseWriter, r *http.Request) {
	h.stackOp(w, r, h.engine.Start)
}

func (h *Handler) handleStopStack(w http.ResponseWriter, r *http.Request) {
	h.stackOp(w, r, h.engine.Stop)
}

func (h *Handler) handleRestartStack(w http.ResponseWriter, r *http.Request) {
	h.stackOp(w, r, h.engine.Restart)
}

func (h *Handler) handleUpdateStack(w http.ResponseWriter, r *http.Request) {
	h.stackOp(w, r, h.engine.Update)
}

func (h *Handler) handleDownStack(w http.ResponseWriter, r *http.Request) {
	name, ok := h.stackName(w, r)
	if !ok {
		return
	}
	removeVolumes := r.URL.Query().Get("removeVolumes") == "true"
	if err := h.engine.Down(r.Context(), name, removeVolumes); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, nil)
}

func (h *Handler) handleDeleteStack(w http.ResponseWriter, r *http.Request) {
	h.stackOp(w, r, h.engine.Delete)
}

func (h *Handler) handleGetStack(w http.ResponseWriter, r *http.Request) {
	name, ok := h.stackName(w, r)
	if !ok {
		return
	}
	stack, err := h.engine.GetStack(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, map[string]any{
		"stack": stack.View(r.Host, h.engine.PrimaryHostname()),
	})
}

func (h *Handler) handleStackList(w http.ResponseWriter, r *http.Request) {
	stacks, err := h.engine.GetStackList(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make(map[string]engine.StackView, len(stacks))
	for name, stack := range stacks {
		views[name] = stack.View(r.Host, h.engine.PrimaryHostname())
	}
	h.writeOK(w, map[string]any{"stackList": views})
}

func (h *Handler) handleServiceStatusList(w http.ResponseWriter, r *http.Request) {
	name, ok := h.stackName(w, r)
	if !ok {
		return
	}
	statuses, err := h.engine.ServiceStatusList(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, map[string]any{"serviceStatusList": statuses})
}

// =============================================================================
// Runtime Resource Operations
// =============================================================================

func (h *Handler) handleNetworkList(w http.ResponseWriter, r *http.Request) {
	networks, err := h.runtime.NetworkList(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, map[string]any{"networkList": networks})
}

func (h *Handler) handleImageList(w http.ResponseWriter, r *http.Request) {
	images, err := h.runtime.ImageList(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, map[string]any{"imageList": images})
}

type deleteImageRequest struct {
	ImageName string `json:"imageName"`
}

func (h *Handler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	var req deleteImageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ImageName == "" {
		h.writeFail(w, http.StatusBadRequest, "imageName is required")
		return
	}
	if err := h.runtime.DeleteImage(r.Context(), req.ImageName); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, nil)
}

type execRequest struct {
	Command string `json:"command"`
}

// handleExec answers with the invocation description the terminal layer
// spawns; the engine retains the session handle.
func (h *Handler) handleExec(w http.ResponseWriter, r *http.Request) {
	name, ok := h.stackName(w, r)
	if !ok {
		return
	}
	service := chi.URLParam(r, "service")

	var req execRequest
	if !h.decode(w, r, &req) {
		return
	}

	invocation, err := h.engine.Exec(name, service, req.Command)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeOK(w, map[string]any{"exec": invocation})
}

type checkComposeRequest struct {
	ComposeYAML string `json:"composeYAML"`
	Name        string `json:"name"`
}

func (h *Handler) handleCheckComposeCompat(w http.ResponseWriter, r *http.Request) {
	var req checkComposeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = "check"
	}
	errs, warnings := compose.Validate(req.ComposeYAML, req.Name)
	h.writeOK(w, map[string]any{
		"errors":   errs,
		"warnings": warnings,
	})
}
