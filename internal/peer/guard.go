package peer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/hfpag/pkg/audio"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// Guard binds a live SCO link to running backend audio. Guards are reference
// counted: [Guard.Clone] hands out another reference and every reference must
// be released exactly once with [Guard.Release]. When the last reference is
// released the backend is stopped for the peer, the paused competing source
// is resumed and the link is closed.
//
// A clone handed to another goroutine keeps the audio running until that
// goroutine releases it. Guard is safe for concurrent use.
type Guard struct {
	shared   *guardShared
	released atomic.Bool
}

type guardShared struct {
	refs  atomic.Int32
	link  bearer.Link
	codec hfp.CodecID
	token audio.PauseToken

	mu   sync.Mutex
	stop func() // nil once run or disarmed
}

func newGuard(link bearer.Link, codec hfp.CodecID, token audio.PauseToken, stop func()) *Guard {
	s := &guardShared{link: link, codec: codec, token: token, stop: stop}
	s.refs.Store(1)
	return &Guard{shared: s}
}

// Clone returns a new reference to the same audio resources. g must not have
// been released.
func (g *Guard) Clone() *Guard {
	if g.released.Load() {
		panic("peer: clone of released guard")
	}
	g.shared.refs.Add(1)
	return &Guard{shared: g.shared}
}

// Release drops this reference. Releasing the same reference twice is a
// no-op.
func (g *Guard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	if g.shared.refs.Add(-1) == 0 {
		g.shared.finish()
	}
}

// Link returns the guarded link.
func (g *Guard) Link() bearer.Link { return g.shared.link }

// Codec returns the codec audio was started with.
func (g *Guard) Codec() hfp.CodecID { return g.shared.codec }

// disarm keeps the final release from stopping the backend, for when the
// backend already stopped on its own.
func (g *Guard) disarm() {
	g.shared.mu.Lock()
	g.shared.stop = nil
	g.shared.mu.Unlock()
}

func (s *guardShared) finish() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	if s.token != nil {
		s.token.Release()
	}
	_ = s.link.Close()
}

// acquire starts backend audio for peer over link and returns the guard
// owning it. Pausing competing audio is best effort. If the backend refuses
// to start, the link is closed and no guard is created.
func acquire(ctx context.Context, peer hfp.PeerID, link bearer.Link, codec hfp.CodecID,
	backend audio.Backend, pauser audio.Pauser, log *slog.Logger,
) (*Guard, error) {
	var token audio.PauseToken
	if pauser != nil {
		t, err := pauser.Pause(ctx, peer)
		if err != nil {
			log.Warn("peer: pause competing audio failed", "err", err)
		} else {
			token = t
		}
	}

	if err := backend.Start(ctx, peer, link, codec); err != nil {
		if token != nil {
			token.Release()
		}
		_ = link.Close()
		return nil, fmt.Errorf("peer: start audio: %w", err)
	}

	stopCtx := context.WithoutCancel(ctx)
	return newGuard(link, codec, token, func() {
		if err := backend.Stop(stopCtx, peer); err != nil {
			log.Warn("peer: stop audio failed", "err", err)
		}
	}), nil
}
