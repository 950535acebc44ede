// Package health serves the gateway's probe endpoints.
//
//   - /healthz:  liveness; always 200 while the process can serve HTTP. The
//     body carries the number of running peer sessions.
//   - /readyz:   readiness; 200 only when every registered [Checker] passes.
//   - /sessions: the peers that currently have a running session.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail").
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the component
// is ready.
type Checker struct {
	// Name labels the check in the /readyz body (e.g. "gateway", "bluez").
	Name string

	// Check probes the component. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// SessionLister reports the peers with a running session.
type SessionLister func() []hfp.PeerID

type result struct {
	Status   string            `json:"status"`
	Sessions *int              `json:"sessions,omitempty"`
	Checks   map[string]string `json:"checks,omitempty"`
}

type sessionsResult struct {
	Status string       `json:"status"`
	Peers  []hfp.PeerID `json:"peers"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction time.
type Handler struct {
	sessions SessionLister
	checkers []Checker
}

// New creates a [Handler]. sessions may be nil, in which case session counts
// are omitted and /sessions reports an empty list.
func New(sessions SessionLister, checkers ...Checker) *Handler {
	return &Handler{sessions: sessions, checkers: append([]Checker(nil), checkers...)}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	res := result{Status: "ok"}
	if h.sessions != nil {
		n := len(h.sessions())
		res.Sessions = &n
	}
	writeJSON(w, http.StatusOK, res)
}

// Readyz runs every checker concurrently, each with a [checkTimeout]
// deadline derived from the request context, and reports 503 if any fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		failed bool
		g      errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				failed = true
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if failed {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Sessions lists the peers with a running session.
func (h *Handler) Sessions(w http.ResponseWriter, _ *http.Request) {
	peers := []hfp.PeerID{}
	if h.sessions != nil {
		peers = append(peers, h.sessions()...)
	}
	writeJSON(w, http.StatusOK, sessionsResult{Status: "ok", Peers: peers})
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /sessions", h.Sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
