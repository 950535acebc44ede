// Package gateway runs one peer session per connected Hands-Free device and
// routes everything that arrives from outside a single session: incoming
// service level connections, discovery results, audio backend events,
// call-manager attachments, the gateway battery level and configuration
// changes.
//
// The audio backend is the only resource shared between sessions; the
// gateway wraps it in an [audio.Shared] before handing it out.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hfpag/internal/config"
	"github.com/MrWong99/hfpag/internal/indicators"
	"github.com/MrWong99/hfpag/internal/observe"
	"github.com/MrWong99/hfpag/internal/peer"
	"github.com/MrWong99/hfpag/internal/resilience"
	"github.com/MrWong99/hfpag/pkg/audio"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/bearer/bluez"
	"github.com/MrWong99/hfpag/pkg/callmanager"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// ErrClosed is returned once the gateway has been shut down.
var ErrClosed = errors.New("gateway: closed")

// EngineFactory creates the signaling engine for a new session.
type EngineFactory func(peer hfp.PeerID, features hfp.AgFeatures) signaling.Engine

// Deps are the collaborators shared by all sessions.
type Deps struct {
	// Profile opens signaling bearers and SCO links. Required.
	Profile bearer.Profile

	// Backend is the audio backend. Required.
	Backend audio.Backend

	// Pauser pauses competing audio. Defaults to [audio.NopPauser].
	Pauser audio.Pauser

	// NewEngine creates a session's signaling engine. Required.
	NewEngine EngineFactory

	// Level, when set, follows the configured log level.
	Level *slog.LevelVar

	// Logger defaults to [slog.Default].
	Logger *slog.Logger

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Gateway owns the peer sessions. All exported methods are safe for
// concurrent use.
type Gateway struct {
	profile   bearer.Profile
	backend   *audio.Shared
	pauser    audio.Pauser
	newEngine EngineFactory
	level     *slog.LevelVar
	log       *slog.Logger
	metrics   *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// reapers waits for every session to exit.
	reapers errgroup.Group
	running atomic.Bool

	mu       sync.Mutex
	cfg      config.GatewayConfig
	sessions map[hfp.PeerID]*peer.Handle
	battery  *uint8
	closed   bool
}

// New creates a gateway for the given session settings.
func New(cfg config.GatewayConfig, deps Deps) (*Gateway, error) {
	if deps.Profile == nil || deps.Backend == nil || deps.NewEngine == nil {
		return nil, errors.New("gateway: profile, backend and engine factory are required")
	}
	if deps.Pauser == nil {
		deps.Pauser = audio.NopPauser{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		profile:   deps.Profile,
		backend:   audio.NewShared(deps.Backend),
		pauser:    deps.Pauser,
		newEngine: deps.NewEngine,
		level:     deps.Level,
		log:       deps.Logger,
		metrics:   deps.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		sessions:  make(map[hfp.PeerID]*peer.Handle),
	}, nil
}

// NewFromConfig builds the audio backend and pauser named in cfg from reg and
// creates a gateway with them. Profile and NewEngine are taken from deps.
func NewFromConfig(cfg *config.Config, reg *config.Registry, deps Deps) (*Gateway, error) {
	backend, err := reg.CreateBackend(cfg.Audio.Backend)
	if err != nil {
		return nil, fmt.Errorf("gateway: create audio backend: %w", err)
	}
	pauser, err := reg.CreatePauser(cfg.Audio.Pauser)
	if err != nil {
		return nil, fmt.Errorf("gateway: create pauser: %w", err)
	}
	deps.Backend = backend
	deps.Pauser = pauser
	if deps.Level != nil {
		deps.Level.Set(cfg.Server.LogLevel.Level())
	}
	return New(cfg.Gateway, deps)
}

// Run routes backend events and incoming connections until ctx is done or
// the backend event stream ends, then shuts every session down. incoming may
// be nil.
func (g *Gateway) Run(ctx context.Context, incoming <-chan bluez.Incoming) error {
	g.log.Info("gateway: running")
	g.running.Store(true)
	defer g.running.Store(false)
	events := g.backend.Events()
	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop

		case ev, ok := <-events:
			if !ok {
				err = errors.New("gateway: audio backend event stream closed")
				break loop
			}
			g.routeBackendEvent(ctx, ev)

		case in, ok := <-incoming:
			if !ok {
				incoming = nil
				continue
			}
			if err := g.Connected(ctx, in.Peer, in.Channel); err != nil {
				g.log.Warn("gateway: incoming connection dropped", "peer", in.Peer, "err", err)
			}
		}
	}
	g.Shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown asks every session to end and waits until they have. It is safe
// to call more than once.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closed = true
	handles := slices.Collect(maps.Values(g.sessions))
	g.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
	_ = g.reapers.Wait()
	g.cancel()
	g.log.Info("gateway: stopped")
}

// Sessions lists the peers with a running session.
func (g *Gateway) Sessions() []hfp.PeerID {
	g.mu.Lock()
	defer g.mu.Unlock()
	peers := slices.Collect(maps.Keys(g.sessions))
	slices.Sort(peers)
	return peers
}

// ─── Routing ─────────────────────────────────────────────────────────────────

// Connected hands a freshly opened signaling bearer to the session for p,
// starting one if needed. The channel is closed if no session takes it.
func (g *Gateway) Connected(ctx context.Context, p hfp.PeerID, ch bearer.Channel) error {
	if err := g.deliver(ctx, p, peer.ProfileConnected{Channel: ch}, true); err != nil {
		_ = ch.Close()
		return err
	}
	return nil
}

// SearchResult reports that discovery found p. The session decides whether
// to dial it.
func (g *Gateway) SearchResult(ctx context.Context, p hfp.PeerID, params bearer.ConnectParams) error {
	return g.deliver(ctx, p, peer.SearchResult{Params: params}, true)
}

// AttachCallManager hands m to the session for p, guarded by a circuit
// breaker built from the configured breaker settings.
func (g *Gateway) AttachCallManager(ctx context.Context, p hfp.PeerID, id string, m callmanager.Manager) error {
	g.mu.Lock()
	bc := g.cfg.CallManagerBreaker
	g.mu.Unlock()

	guarded := resilience.NewCallManager(m, resilience.CircuitBreakerConfig{
		Name:         "callmanager/" + id,
		MaxFailures:  bc.MaxFailures,
		ResetTimeout: bc.ResetTimeout,
		Logger:       g.log,
	})
	if err := g.deliver(ctx, p, peer.ManagerConnected{ID: id}, true); err != nil {
		return err
	}
	return g.deliver(ctx, p, peer.AttachCallManager{Manager: guarded}, false)
}

// Disconnect ends the session for p, if any.
func (g *Gateway) Disconnect(ctx context.Context, p hfp.PeerID) error {
	err := g.deliver(ctx, p, peer.Shutdown{}, false)
	if errors.Is(err, peer.ErrSessionClosed) {
		return nil
	}
	return err
}

// SetBatteryPercent updates the gateway battery level on every session. New
// sessions start with the last level set.
func (g *Gateway) SetBatteryPercent(ctx context.Context, percent uint8) {
	level := indicators.BatteryFromPercent(percent)
	g.mu.Lock()
	g.battery = &level
	g.mu.Unlock()
	g.broadcast(ctx, peer.BatteryLevel{Level: level})
}

// ApplyConfig applies a configuration change. Its signature matches the
// callback of [config.NewWatcher]. Behavior changes reach live sessions
// immediately; other session settings apply to sessions started afterwards.
func (g *Gateway) ApplyConfig(_, next *config.Config, diff config.ConfigDiff) {
	if diff.LogLevelChanged && g.level != nil {
		g.level.Set(diff.NewLogLevel.Level())
		g.log.Info("gateway: log level changed", "level", diff.NewLogLevel)
	}
	if diff.SessionDefaultsChanged || diff.BehaviorChanged {
		g.mu.Lock()
		g.cfg = next.Gateway
		g.mu.Unlock()
	}
	if diff.BehaviorChanged {
		g.log.Info("gateway: connection behavior changed", "autoconnect", diff.Autoconnect)
		g.broadcast(g.ctx, peer.UpdateBehavior{Behavior: peer.ConnectionBehavior{Autoconnect: diff.Autoconnect}})
	}
}

func (g *Gateway) routeBackendEvent(ctx context.Context, ev audio.Event) {
	g.mu.Lock()
	h, ok := g.sessions[ev.Peer]
	g.mu.Unlock()
	if !ok {
		g.log.Debug("gateway: backend event for unknown peer", "peer", ev.Peer, "kind", ev.Kind)
		return
	}
	if err := h.Send(ctx, peer.BackendEvent{Event: ev}); err != nil {
		g.log.Debug("gateway: backend event not delivered", "peer", ev.Peer, "kind", ev.Kind, "err", err)
	}
}

func (g *Gateway) broadcast(ctx context.Context, req peer.Request) {
	g.mu.Lock()
	handles := slices.Collect(maps.Values(g.sessions))
	g.mu.Unlock()
	for _, h := range handles {
		if err := h.Send(ctx, req); err != nil {
			g.log.Debug("gateway: broadcast not delivered", "peer", h.Peer(), "err", err)
		}
	}
}

// deliver sends req to the session for p. With spawn set a session is started
// when none runs, and a session that exited since it was looked up is
// replaced once.
func (g *Gateway) deliver(ctx context.Context, p hfp.PeerID, req peer.Request, spawn bool) error {
	for range 2 {
		h, err := g.session(p, spawn)
		if err != nil {
			return err
		}
		err = h.Send(ctx, req)
		if !errors.Is(err, peer.ErrSessionClosed) || !spawn {
			return err
		}
		g.forget(p, h)
	}
	return peer.ErrSessionClosed
}

// session returns the running session for p, starting one if spawn is set.
func (g *Gateway) session(p hfp.PeerID, spawn bool) (*peer.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	if h, ok := g.sessions[p]; ok {
		return h, nil
	}
	if !spawn {
		return nil, peer.ErrSessionClosed
	}

	cfg := peer.Config{
		Features:              g.cfg.Features.Mask(),
		Codecs:                g.cfg.Codecs(),
		Behavior:              peer.ConnectionBehavior{Autoconnect: g.cfg.Autoconnect},
		RingInterval:          g.cfg.RingInterval,
		RequestQueue:          g.cfg.RequestQueue,
		AutoconnectMaxBackoff: g.cfg.AutoconnectMaxBackoff,
	}
	s, err := peer.New(p, cfg, peer.Deps{
		Engine:  g.newEngine(p, cfg.Features),
		Profile: g.profile,
		Backend: g.backend,
		Pauser:  g.pauser,
		Logger:  g.log,
		Metrics: g.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: create session: %w", err)
	}
	h := s.Start(g.ctx)
	g.sessions[p] = h
	if g.battery != nil {
		// The queue is empty, so this cannot block.
		_ = h.Send(g.ctx, peer.BatteryLevel{Level: *g.battery})
	}
	g.reapers.Go(func() error {
		res := h.Result()
		g.forget(p, h)
		g.log.Info("gateway: session ended",
			"peer", p,
			"session_id", res.SessionID,
			"reason", res.Reason,
			"err", res.Err)
		return nil
	})
	g.log.Info("gateway: session started", "peer", p, "session_id", h.ID())
	return h, nil
}

// forget drops h from the session table if it is still the entry for p.
func (g *Gateway) forget(p hfp.PeerID, h *peer.Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessions[p] == h {
		delete(g.sessions, p)
	}
}
