package peer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hfpag/internal/calls"
	"github.com/MrWong99/hfpag/internal/indicators"
	"github.com/MrWong99/hfpag/internal/observe"
	"github.com/MrWong99/hfpag/pkg/audio"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// Session is the per-peer session controller. All fields are owned by the
// goroutine running the loop; nothing here is locked.
type Session struct {
	peer    hfp.PeerID
	id      string
	cfg     Config
	engine  signaling.Engine
	profile bearer.Profile
	backend audio.Backend
	pauser  audio.Pauser
	log     *slog.Logger
	metrics *observe.Metrics

	inbound chan Request
	deliver func(context.Context, Request) error

	behavior         ConnectionBehavior
	backendConnected bool
	audioWithoutCall bool
	battery          uint8
	network          indicators.Network
	calls            *calls.Calls
	gain             *gainControl
	hfIndicators     map[hfp.HfIndicator]int
	sco              scoState

	// Call manager attachment.
	manager       *managerLink
	managerID     string
	callEvents    chan callEvent
	networkEvents chan networkEvent

	// Codec negotiation in flight.
	parked     []func(signaling.Result)
	fellBack   bool
	setupStart time.Time

	ring    *time.Ticker
	dialing *dialAttempt

	// bg runs helpers that outlive a single event (autoconnect).
	bg errgroup.Group
}

// New creates a session for peer. Call [Spawn] to create and start one in a
// single step; a session created with New is started with [Session.Start].
func New(peer hfp.PeerID, cfg Config, deps Deps) (*Session, error) {
	if deps.Engine == nil || deps.Profile == nil || deps.Backend == nil {
		return nil, errors.New("peer: engine, profile and backend are required")
	}
	cfg.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	id := uuid.NewString()
	s := &Session{
		peer:          peer,
		id:            id,
		cfg:           cfg,
		engine:        deps.Engine,
		profile:       deps.Profile,
		backend:       deps.Backend,
		pauser:        deps.Pauser,
		log:           deps.Logger.With("peer", peer.String(), "session_id", id),
		metrics:       deps.Metrics,
		inbound:       make(chan Request, cfg.RequestQueue),
		behavior:      cfg.Behavior,
		battery:       hfp.MaxBatteryLevel,
		calls:         calls.New(),
		hfIndicators:  make(map[hfp.HfIndicator]int),
		callEvents:    make(chan callEvent),
		networkEvents: make(chan networkEvent),
	}
	return s, nil
}

// ─── Handle ──────────────────────────────────────────────────────────────────

// Handle is the parent's view of a running session: a bounded request sink
// and a completion signal. All methods are safe for concurrent use.
type Handle struct {
	s *Session

	mu     sync.RWMutex
	closed bool

	// stopped is closed when the loop stops reading the queue, before
	// teardown; done once teardown has finished.
	stopped chan struct{}
	done    chan struct{}
	result  Result
}

// Spawn creates a session and starts its loop on a new goroutine.
func Spawn(ctx context.Context, peer hfp.PeerID, cfg Config, deps Deps) (*Handle, error) {
	s, err := New(peer, cfg, deps)
	if err != nil {
		return nil, err
	}
	return s.Start(ctx), nil
}

// Start runs the session loop on a new goroutine. It must be called at most
// once.
func (s *Session) Start(ctx context.Context) *Handle {
	h := &Handle{s: s, stopped: make(chan struct{}), done: make(chan struct{})}
	s.deliver = h.Send
	go func() {
		h.result = s.run(ctx, h.seal)
		close(h.done)
	}()
	return h
}

// seal refuses further requests. Once it returns no Send is in flight, so
// everything accepted so far is in the queue for teardown to drain.
func (h *Handle) seal() {
	close(h.stopped)
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// Peer returns the peer the session serves.
func (h *Handle) Peer() hfp.PeerID { return h.s.peer }

// ID returns the session identifier carried in its log lines.
func (h *Handle) ID() string { return h.s.id }

// Send queues req. It blocks while the queue is full and returns
// [ErrSessionClosed] once the session has exited or [Handle.Close] was
// called.
func (h *Handle) Send(ctx context.Context, req Request) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrSessionClosed
	}
	select {
	case <-h.stopped:
		return ErrSessionClosed
	default:
	}
	select {
	case h.s.inbound <- req:
		return nil
	case <-h.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the request queue. The session handles what is already
// queued and then exits with [ReasonInboundClosed].
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.s.inbound)
	}
}

// Stopped is closed once the session no longer accepts requests. [Handle.Done]
// follows after teardown.
func (h *Handle) Stopped() <-chan struct{} { return h.stopped }

// Done is closed once the session loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result blocks until the session has exited and returns its terminal state.
func (h *Handle) Result() Result {
	<-h.done
	return h.result
}

// ─── Loop ────────────────────────────────────────────────────────────────────

func (s *Session) run(ctx context.Context, seal func()) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.gain = newGainControl(ctx.Done())
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	s.log.Info("peer: session started")

	reason, err := s.loop(ctx)
	seal()

	res := s.snapshot(reason, err)
	s.teardown(context.WithoutCancel(ctx))

	s.log.Info("peer: session ended", "reason", reason, "err", err)
	return res
}

// loop handles one event per iteration until a terminal condition. The
// accept and link-close branches are derived from the current SCO state on
// every iteration, so a wait belonging to a state that was left is never
// selected again.
func (s *Session) loop(ctx context.Context) (Reason, error) {
	for {
		var accepted <-chan acceptResult
		if s.sco.kind == ScoAwaitingRemote {
			accepted = s.sco.accept.result
		}
		var linkClosed <-chan struct{}
		if s.sco.kind == ScoActive {
			linkClosed = s.sco.guard.Link().Closed()
		}
		var ringTick <-chan time.Time
		if s.ring != nil {
			ringTick = s.ring.C
		}

		select {
		case <-ctx.Done():
			return ReasonContextDone, ctx.Err()

		case res := <-accepted:
			s.handleAccepted(ctx, res)

		case req, ok := <-s.inbound:
			if !ok {
				return ReasonInboundClosed, nil
			}
			if _, stop := req.(Shutdown); stop {
				return ReasonShutdown, nil
			}
			s.handleInbound(ctx, req)
			s.updateScoState(ctx)

		case ev := <-s.gain.events:
			s.handleGain(ctx, ev)

		case ev := <-s.callEvents:
			s.handleCallEvent(ctx, ev)
			s.updateScoState(ctx)

		case <-linkClosed:
			s.handleLinkClosed(ctx)

		case req, ok := <-s.engine.Requests():
			if !ok {
				return ReasonSignalingTerminated, s.engine.Err()
			}
			s.dispatch(ctx, req)

		case ev := <-s.networkEvents:
			s.handleNetworkEvent(ctx, ev)

		case <-ringTick:
			s.ringOnce(ctx)
		}
	}
}

func (s *Session) handleInbound(ctx context.Context, req Request) {
	s.log.Debug("peer: inbound request", "request", req.requestName())
	switch r := req.(type) {
	case ProfileConnected:
		s.handleProfileConnected(ctx, r.Channel)

	case SearchResult:
		s.handleSearchResult(ctx, r.Params)

	case BackendEvent:
		s.handleBackendEvent(ctx, r.Event)

	case ManagerConnected:
		s.managerID = r.ID

	case AttachCallManager:
		s.attachManager(ctx, r.Manager)

	case BatteryLevel:
		s.battery = min(r.Level, hfp.MaxBatteryLevel)
		s.sendIndicator(ctx, hfp.BatteryLevel(s.battery))

	case UpdateBehavior:
		s.behavior = r.Behavior
		if !s.behavior.Autoconnect {
			s.stopAutoconnect()
		}
	}
}

func (s *Session) handleProfileConnected(ctx context.Context, ch bearer.Channel) {
	s.stopAutoconnect()
	if s.engine.Connected() {
		s.log.Info("peer: already connected, dropping new channel")
		_ = ch.Close()
		return
	}
	if err := s.engine.Connect(ctx, ch); err != nil {
		s.log.Warn("peer: attach signaling channel failed", "err", err)
		_ = ch.Close()
		return
	}
	s.log.Info("peer: service level connection attached")

	if s.backendConnected {
		return
	}
	if err := s.backend.Connect(ctx, s.peer, s.cfg.Codecs); err != nil {
		s.log.Warn("peer: connect audio backend failed", "err", err)
		return
	}
	s.backendConnected = true
}

func (s *Session) handleBackendEvent(ctx context.Context, ev audio.Event) {
	if ev.Peer != s.peer {
		return
	}
	switch ev.Kind {
	case audio.EventRequestStart:
		s.audioWithoutCall = true
	case audio.EventRequestStop:
		s.audioWithoutCall = false
	case audio.EventStopped:
		s.log.Info("peer: audio stopped by backend", "err", ev.Err)
		if s.sco.kind == ScoActive {
			s.sco.guard.disarm()
			s.setSco(ctx, scoState{kind: ScoTearingDown})
		}
	}
}

// send delivers update to the HF and reports whether the engine took it.
// Failures are logged; a lost bearer ends the request stream and therefore
// the session shortly after.
func (s *Session) send(ctx context.Context, marker signaling.Marker, update hfp.AgUpdate) bool {
	if !s.engine.Connected() {
		return false
	}
	if err := s.engine.ReceiveAgRequest(ctx, marker, update); err != nil {
		s.log.Warn("peer: deliver update failed", "marker", marker, "update", update, "err", err)
		return false
	}
	return true
}

func (s *Session) sendIndicator(ctx context.Context, ind hfp.Indicator) {
	if !s.engine.Connected() {
		return
	}
	s.send(ctx, signaling.MarkerPhoneStatus, hfp.IndicatorUpdate(ind))
	s.metrics.RecordIndicatorUpdate(ctx, ind.Kind.String())
}

// ─── Exit ────────────────────────────────────────────────────────────────────

func (s *Session) snapshot(reason Reason, err error) Result {
	return Result{
		Peer:         s.peer,
		SessionID:    s.id,
		Reason:       reason,
		Err:          err,
		Sco:          s.sco.kind,
		Network:      s.network.Snapshot(),
		BatteryLevel: s.battery,
		Calls:        s.calls.Current(),
		ManagerID:    s.managerID,
	}
}

// teardown releases everything the session holds. ctx is not cancelled.
func (s *Session) teardown(ctx context.Context) {
	s.stopRinger()
	s.stopAutoconnect()
	s.detachManager(ctx, false)
	s.setSco(ctx, scoState{kind: ScoInactive})
	s.answerParked(signaling.ResultError)

	if s.backendConnected {
		if err := s.backend.Disconnect(ctx, s.peer); err != nil {
			s.log.Warn("peer: disconnect audio backend failed", "err", err)
		}
		s.backendConnected = false
	}
	_ = s.bg.Wait()
	s.drain()
}

// drain discards requests left in the queue, closing channels handed over
// after the loop stopped reading.
func (s *Session) drain() {
	for {
		select {
		case req, ok := <-s.inbound:
			if !ok {
				return
			}
			if pc, ok := req.(ProfileConnected); ok && pc.Channel != nil {
				_ = pc.Channel.Close()
			}
		default:
			return
		}
	}
}
