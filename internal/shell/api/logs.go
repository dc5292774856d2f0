package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dockgeac/dockgeac/internal/shell/adapter"
)

// =============================================================================
// Log Streaming
// =============================================================================

// handleServiceLogs streams a service container's log output as plain
// text chunks, in the order the child emits them. With follow=true the
// stream runs until the client disconnects, which cancels the child.
func (h *Handler) handleServiceLogs(w http.ResponseWriter, r *http.Request) {
	name, ok := h.stackName(w, r)
	if !ok {
		return
	}
	service := chi.URLParam(r, "service")

	opts := adapter.LogOptions{
		Follow: r.URL.Query().Get("follow") == "true",
	}
	if tail := r.URL.Query().Get("tail"); tail != "" {
		n, err := strconv.Atoi(tail)
		if err != nil || n < 0 {
			h.writeFail(w, http.StatusBadRequest, "tail must be a non-negative integer")
			return
		}
		opts.Tail = n
	}

	stream, err := h.runtime.Logs(r.Context(), name, service, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	flusher, canFlush := w.(http.Flusher)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				h.logger.Debug("log stream ended", "stack", name, "service", service, "error", readErr)
			}
			return
		}
	}
}
