package peer

import (
	"context"
	"time"

	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// updateRinger starts ringing when an incoming call rings and stops when none
// does. The first RING goes out immediately, the rest every RingInterval.
func (s *Session) updateRinger(ctx context.Context) {
	_, ringing := s.calls.Ringing()
	switch {
	case ringing && s.ring == nil:
		s.ring = time.NewTicker(s.cfg.RingInterval)
		s.ringOnce(ctx)
	case !ringing:
		s.stopRinger()
	}
}

func (s *Session) ringOnce(ctx context.Context) {
	call, ok := s.calls.Ringing()
	if !ok {
		s.stopRinger()
		return
	}
	s.send(ctx, signaling.MarkerRing, hfp.Ring(call.Number))
}

func (s *Session) stopRinger() {
	if s.ring != nil {
		s.ring.Stop()
		s.ring = nil
	}
}
