package peer

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hfpag/pkg/callmanager"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// managerLink is an attached call manager plus the pumps feeding its
// notifications into the loop.
type managerLink struct {
	mgr    callmanager.Manager
	ctx    context.Context // cancelled on detach
	cancel context.CancelFunc
	group  *errgroup.Group
}

// callEvent is one call-manager notification about calls. Exactly one of
// next, state, callErr or managerErr is meaningful.
type callEvent struct {
	next       *callmanager.NextCall
	index      hfp.CallIndex
	state      hfp.CallState
	callErr    error
	managerErr error
}

type networkEvent struct {
	info hfp.NetworkInformation
	err  error
}

// errIncompleteSnapshot is returned when a manager's first network report
// lacks a field.
var errIncompleteSnapshot = errors.New("peer: incomplete network snapshot")

// attachManager makes m the session's call manager, replacing any previous
// one. The first network report must be a complete snapshot; otherwise m is
// declined and the current manager stays.
func (s *Session) attachManager(ctx context.Context, m callmanager.Manager) {
	info, err := m.WatchNetworkInformation(ctx)
	if err == nil && !info.Complete() {
		err = errIncompleteSnapshot
	}
	if err != nil {
		s.log.Warn("peer: call manager declined", "err", err)
		s.metrics.RecordCallManagerError(ctx, "attach")
		return
	}
	if s.manager != nil {
		s.log.Info("peer: replacing call manager")
		s.detachManager(ctx, true)
	}

	for _, ind := range s.network.Apply(info) {
		s.sendIndicator(ctx, ind)
	}

	mctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(mctx)
	s.manager = &managerLink{mgr: m, ctx: gctx, cancel: cancel, group: g}

	g.Go(func() error { return s.pumpNetwork(gctx, m) })
	g.Go(func() error { return s.pumpCalls(gctx, m) })

	if err := m.GainControl(ctx, s.peer, s.gain); err != nil {
		s.log.Warn("peer: hand over gain control failed", "err", err)
		s.metrics.RecordCallManagerError(ctx, "gain_control")
	}
	s.log.Info("peer: call manager attached")
}

// detachManager stops the pumps and forgets the manager and its calls. With
// notify set the HF is told the calls are gone.
func (s *Session) detachManager(ctx context.Context, notify bool) {
	if s.manager == nil {
		return
	}
	s.manager.cancel()
	_ = s.manager.group.Wait()
	s.manager = nil
	s.calls.Clear()
	s.log.Info("peer: call manager detached")
	if notify {
		for _, ind := range s.calls.IndicatorChanges() {
			s.sendIndicator(ctx, ind)
		}
		s.updateRinger(ctx)
	}
}

// ─── Pumps ───────────────────────────────────────────────────────────────────

func (s *Session) pumpNetwork(ctx context.Context, m callmanager.Manager) error {
	for {
		info, err := m.WatchNetworkInformation(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !postEvent(ctx, s.networkEvents, networkEvent{info: info, err: err}) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("peer: watch network: %w", err)
		}
	}
}

func (s *Session) pumpCalls(ctx context.Context, m callmanager.Manager) error {
	for {
		nc, err := m.WatchNextCall(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			postEvent(ctx, s.callEvents, callEvent{managerErr: err})
			return fmt.Errorf("peer: watch next call: %w", err)
		}
		if !postEvent(ctx, s.callEvents, callEvent{next: &nc}) {
			return nil
		}
	}
}

// pumpCallState follows one call until it terminates. It never fails the
// group: losing one call does not lose the manager.
func (s *Session) pumpCallState(ctx context.Context, idx hfp.CallIndex, call callmanager.Call) error {
	for {
		state, err := call.WatchState(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			postEvent(ctx, s.callEvents, callEvent{index: idx, callErr: err})
			return nil
		}
		if !postEvent(ctx, s.callEvents, callEvent{index: idx, state: state}) || state == hfp.CallTerminated {
			return nil
		}
	}
}

func postEvent[E any](ctx context.Context, ch chan<- E, ev E) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Session) handleCallEvent(ctx context.Context, ev callEvent) {
	if s.manager == nil {
		return
	}
	switch {
	case ev.managerErr != nil:
		s.log.Warn("peer: call manager lost", "err", ev.managerErr)
		s.metrics.RecordCallManagerError(ctx, "watch_next_call")
		s.detachManager(ctx, true)
		return

	case ev.next != nil:
		call := s.calls.Add(*ev.next)
		s.log.Info("peer: new call", "call", call.Index, "state", call.State, "direction", call.Direction)
		if call.State == hfp.CallIncomingWaiting {
			s.send(ctx, signaling.MarkerCallWaitingNotifications, hfp.CallWaiting(call.Number))
		}
		link, idx, handle := s.manager, call.Index, call.Handle
		link.group.Go(func() error { return s.pumpCallState(link.ctx, idx, handle) })

	case ev.callErr != nil:
		s.log.Warn("peer: call watch failed", "call", ev.index, "err", ev.callErr)
		s.calls.Remove(ev.index)

	default:
		if !s.calls.Update(ev.index, ev.state) {
			return
		}
		s.log.Debug("peer: call state", "call", ev.index, "state", ev.state)
	}

	for _, ind := range s.calls.IndicatorChanges() {
		s.sendIndicator(ctx, ind)
	}
	s.updateRinger(ctx)
}

func (s *Session) handleNetworkEvent(ctx context.Context, ev networkEvent) {
	if s.manager == nil {
		return
	}
	if ev.err != nil {
		s.log.Warn("peer: network watch failed", "err", ev.err)
		s.metrics.RecordCallManagerError(ctx, "watch_network")
		s.detachManager(ctx, true)
		return
	}
	for _, ind := range s.network.Apply(ev.info) {
		s.sendIndicator(ctx, ind)
	}
}
