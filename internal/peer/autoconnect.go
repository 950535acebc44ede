package peer

import (
	"context"
	"time"

	"github.com/MrWong99/hfpag/pkg/bearer"
)

// Autoconnect retry parameters. The backoff cap comes from
// [Config.AutoconnectMaxBackoff].
const (
	autoconnectMaxRetries = 10
	autoconnectBackoff    = 1 * time.Second
)

// dialAttempt is an autoconnect in flight.
type dialAttempt struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// handleSearchResult dials a peer found by discovery when autoconnect is on
// and no signaling connection exists. The dial runs in the background and the
// resulting channel comes back through the request queue as
// [ProfileConnected].
func (s *Session) handleSearchResult(ctx context.Context, params bearer.ConnectParams) {
	switch {
	case !s.behavior.Autoconnect:
		s.log.Debug("peer: autoconnect disabled, ignoring search result")
		return
	case s.engine.Connected():
		return
	case s.dialing != nil:
		select {
		case <-s.dialing.done:
		default:
			return
		}
	}

	dctx, cancel := context.WithCancel(ctx)
	d := &dialAttempt{cancel: cancel, done: make(chan struct{})}
	s.dialing = d
	s.bg.Go(func() error {
		defer close(d.done)
		defer cancel()
		s.autoconnect(dctx, params)
		return nil
	})
}

// autoconnect dials with exponential backoff until a channel is handed to
// the session, the attempt is cancelled, or the retries run out.
func (s *Session) autoconnect(ctx context.Context, params bearer.ConnectParams) {
	backoff := min(autoconnectBackoff, s.cfg.AutoconnectMaxBackoff)

	for attempt := 1; attempt <= autoconnectMaxRetries; attempt++ {
		s.log.Info("peer: autoconnect attempt",
			"attempt", attempt,
			"max_retries", autoconnectMaxRetries,
			"rfcomm_channel", params.RFCOMMChannel,
		)

		ch, err := s.profile.Connect(ctx, s.peer, params)
		if err == nil {
			if err := s.deliver(ctx, ProfileConnected{Channel: ch}); err != nil {
				s.log.Info("peer: autoconnect result discarded", "err", err)
				_ = ch.Close()
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("peer: autoconnect attempt failed", "attempt", attempt, "err", err)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, s.cfg.AutoconnectMaxBackoff)
	}

	s.log.Error("peer: autoconnect gave up", "max_retries", autoconnectMaxRetries)
}

// stopAutoconnect cancels a dial in flight. It does not wait; teardown joins
// the goroutine.
func (s *Session) stopAutoconnect() {
	if s.dialing != nil {
		s.dialing.cancel()
		s.dialing = nil
	}
}
