package handler

import (
	"context"
	"net/http"
	"time"

	"atlasforum/internal/httputil"
	"atlasforum/internal/model"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

const healthTimeout = 2 * time.Second

// MetaHandler serves static catalog data and the health probe.
type MetaHandler struct {
	checks map[string]Pinger
}

// NewMetaHandler takes the named dependencies the health probe pings.
func NewMetaHandler(checks map[string]Pinger) *MetaHandler {
	return &MetaHandler{checks: checks}
}

// Channels handles GET /channels
func (h *MetaHandler) Channels(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, model.NewChannelListResponse())
}

// Health handles GET /health
// Responds 503 when any dependency fails its ping.
func (h *MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{
		"status":       overall,
		"dependencies": deps,
	})
}
