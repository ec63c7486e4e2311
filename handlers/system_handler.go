package handlers

import (
	"log/slog"
	"net/http"
)

type SystemHandler struct {
	shutdown func()
	logger   *slog.Logger
}

// NewSystemHandler takes the function that starts a graceful shutdown. It
// must not block.
func NewSystemHandler(shutdown func(), logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		shutdown: shutdown,
		logger:   logger,
	}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Policy service is running"})
}

func (h *SystemHandler) Shutdown(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received shutdown request, initiating graceful shutdown")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Policy service is shutting down."})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if h.shutdown != nil {
		h.shutdown()
	}
}
