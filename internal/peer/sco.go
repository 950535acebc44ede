package peer

import (
	"context"

	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// ScoStateKind is the SCO lifecycle state of a session.
type ScoStateKind int

const (
	// ScoInactive means no link exists and none is wanted.
	ScoInactive ScoStateKind = iota

	// ScoSettingUp means codec negotiation or a link connect is in progress.
	ScoSettingUp

	// ScoAwaitingRemote means call audio is on the gateway and the session
	// waits for the HF to open a link.
	ScoAwaitingRemote

	// ScoActive means a link is up and backend audio runs over it.
	ScoActive

	// ScoTearingDown means the link went away and the next synchronization
	// pass decides what follows.
	ScoTearingDown
)

// String returns the state name used in logs and metrics.
func (k ScoStateKind) String() string {
	switch k {
	case ScoInactive:
		return "inactive"
	case ScoSettingUp:
		return "setting_up"
	case ScoAwaitingRemote:
		return "awaiting_remote"
	case ScoActive:
		return "active"
	case ScoTearingDown:
		return "tearing_down"
	default:
		return "unknown"
	}
}

// scoState is the current state plus what it owns: the pending accept while
// awaiting the remote, the guard while active.
type scoState struct {
	kind   ScoStateKind
	accept *pendingAccept
	guard  *Guard
}

// setSco moves to next. Whatever the previous state owned and next does not
// keep is released here: a pending accept is cancelled, a guard is released
// (which stops backend audio). This is the only place that happens, so the
// backend runs exactly while the state is ScoActive.
func (s *Session) setSco(ctx context.Context, next scoState) {
	prev := s.sco
	if prev.accept != nil && prev.accept != next.accept {
		prev.accept.stop()
	}
	if prev.guard != nil && prev.guard != next.guard {
		prev.guard.Release()
		s.metrics.ActiveScoLinks.Add(ctx, -1)
	}
	if next.guard != nil && next.guard != prev.guard {
		s.metrics.ActiveScoLinks.Add(ctx, 1)
	}
	s.sco = next

	if prev.kind != next.kind {
		s.log.Debug("peer: sco state", "from", prev.kind, "to", next.kind)
		s.metrics.RecordScoTransition(ctx, prev.kind.String(), next.kind.String())
	}
}

// updateScoState reconciles the SCO state with the call mirror. It runs
// after every inbound request and every call update.
func (s *Session) updateScoState(ctx context.Context) {
	active := s.calls.IsCallActive()
	transferred := s.calls.IsTransferredToAG()
	if active && transferred {
		s.log.Error("peer: call both active and transferred to gateway, skipping sco update",
			"calls", s.calls.Current())
		s.metrics.RecordInvariantViolation(ctx)
		return
	}

	switch {
	case active || s.audioWithoutCall:
		if !s.engine.Connected() {
			// No service level connection to negotiate over yet.
			return
		}
		switch s.sco.kind {
		case ScoInactive, ScoAwaitingRemote:
			s.setSco(ctx, scoState{kind: ScoSettingUp})
			s.fellBack = false
			s.negotiate(ctx, nil)
		}

	case transferred:
		if s.sco.kind != ScoAwaitingRemote {
			s.setSco(ctx, scoState{kind: ScoAwaitingRemote, accept: s.startAccept(ctx)})
		}

	default:
		s.setSco(ctx, scoState{kind: ScoInactive})
	}
}

// handleLinkClosed handles the remote tearing down the active link.
func (s *Session) handleLinkClosed(ctx context.Context) {
	s.log.Info("peer: sco link closed by remote")
	s.setSco(ctx, scoState{kind: ScoTearingDown})
}

// ─── Pending accept ──────────────────────────────────────────────────────────

type acceptResult struct {
	link bearer.Link
	err  error
}

// pendingAccept waits for the HF to open a link. It is abandoned with stop.
type pendingAccept struct {
	cancel context.CancelFunc
	result chan acceptResult
	done   chan struct{}
}

func (s *Session) startAccept(ctx context.Context) *pendingAccept {
	actx, cancel := context.WithCancel(ctx)
	pa := &pendingAccept{
		cancel: cancel,
		result: make(chan acceptResult, 1),
		done:   make(chan struct{}),
	}
	sets := hfp.ParamSets(s.acceptCodec(), s.escoS4())
	go func() {
		defer close(pa.done)
		link, err := s.profile.AcceptSCO(actx, s.peer, sets)
		if actx.Err() != nil {
			if link != nil {
				_ = link.Close()
			}
			return
		}
		pa.result <- acceptResult{link: link, err: err}
	}()
	return pa
}

// stop cancels the wait and closes a link that arrived too late to be
// handled. It returns once the accepting goroutine has exited.
func (pa *pendingAccept) stop() {
	pa.cancel()
	<-pa.done
	select {
	case r := <-pa.result:
		if r.link != nil {
			_ = r.link.Close()
		}
	default:
	}
}

func (s *Session) handleAccepted(ctx context.Context, res acceptResult) {
	if res.err != nil {
		s.log.Warn("peer: accept sco failed", "err", res.err)
		s.setSco(ctx, scoState{kind: ScoInactive})
		return
	}
	codec := res.link.Params().Codec
	g, err := acquire(ctx, s.peer, res.link, codec, s.backend, s.pauser, s.log)
	if err != nil {
		s.log.Warn("peer: incoming sco link dropped", "err", err)
		s.setSco(ctx, scoState{kind: ScoAwaitingRemote, accept: s.startAccept(ctx)})
		return
	}
	s.log.Info("peer: sco link accepted", "codec", codec)
	s.setSco(ctx, scoState{kind: ScoActive, guard: g})
}

func (s *Session) acceptCodec() hfp.CodecID {
	if c, ok := s.engine.SelectedCodec(); ok {
		return c
	}
	return hfp.CodecCVSD
}

func (s *Session) escoS4() bool {
	return s.cfg.Features.Has(hfp.AgFeatureESCOS4)
}
