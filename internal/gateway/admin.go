package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/hfpag/internal/health"
	"github.com/MrWong99/hfpag/internal/observe"
)

// errNotRunning is reported by [Gateway.Ready] before Run starts routing.
var errNotRunning = errors.New("gateway: not running")

// Ready reports whether the gateway is routing events.
func (g *Gateway) Ready(context.Context) error {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case !g.running.Load():
		return errNotRunning
	}
	return nil
}

// AdminHandler returns the probe and metrics endpoints: /healthz, /readyz,
// /sessions and /metrics. The gateway's own readiness is always checked;
// extra checkers (for example the BlueZ adapter) are added after it.
// /metrics serves the default Prometheus registry that
// [observe.InitProvider] exports to.
func (g *Gateway) AdminHandler(extra ...health.Checker) http.Handler {
	checkers := append([]health.Checker{{Name: "gateway", Check: g.Ready}}, extra...)

	mux := http.NewServeMux()
	health.New(g.Sessions, checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.AdminMiddleware(g.metrics, g.log)(mux)
}
