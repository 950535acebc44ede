// Package mock provides in-memory implementations of [audio.Backend] and
// [audio.Pauser] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// tests can assert on call counts and arguments, and they expose exported
// fields that control return values.
//
// Typical usage:
//
//	backend := mock.NewBackend()
//	shared := audio.NewShared(backend)
//	// ... run a session against shared ...
//	if !backend.Started("00:11:22:33:44:55") { ... }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hfpag/pkg/audio"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// ─── Backend ─────────────────────────────────────────────────────────────────

// StartCall records the arguments of a single [Backend.Start] invocation.
type StartCall struct {
	Peer  hfp.PeerID
	Link  bearer.Link
	Codec hfp.CodecID
}

// Backend is a mock [audio.Backend]. It tracks which peers are connected and
// started so tests can check the backend-started invariant directly.
type Backend struct {
	mu sync.Mutex

	// StartError, when set, is returned by Start and the peer is not marked
	// started. StartErrors, when non-empty, is consumed first, one per call.
	StartError  error
	StartErrors []error

	// ConnectError, DisconnectError and StopError are returned by the
	// corresponding methods.
	ConnectError    error
	DisconnectError error
	StopError       error

	// Recorded calls.
	ConnectCalls    []hfp.PeerID
	DisconnectCalls []hfp.PeerID
	StartCalls      []StartCall
	StopCalls       []hfp.PeerID

	connected map[hfp.PeerID][]hfp.CodecID
	started   map[hfp.PeerID]hfp.CodecID
	events    chan audio.Event
}

// NewBackend returns an empty backend with a buffered event stream.
func NewBackend() *Backend {
	return &Backend{
		connected: make(map[hfp.PeerID][]hfp.CodecID),
		started:   make(map[hfp.PeerID]hfp.CodecID),
		events:    make(chan audio.Event, 16),
	}
}

// Connect implements [audio.Backend].
func (b *Backend) Connect(_ context.Context, peer hfp.PeerID, codecs []hfp.CodecID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ConnectCalls = append(b.ConnectCalls, peer)
	if b.ConnectError != nil {
		return b.ConnectError
	}
	b.connected[peer] = append([]hfp.CodecID(nil), codecs...)
	return nil
}

// Disconnect implements [audio.Backend].
func (b *Backend) Disconnect(_ context.Context, peer hfp.PeerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DisconnectCalls = append(b.DisconnectCalls, peer)
	delete(b.connected, peer)
	delete(b.started, peer)
	return b.DisconnectError
}

// Start implements [audio.Backend].
func (b *Backend) Start(_ context.Context, peer hfp.PeerID, link bearer.Link, codec hfp.CodecID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.StartCalls = append(b.StartCalls, StartCall{Peer: peer, Link: link, Codec: codec})
	if len(b.StartErrors) > 0 {
		err := b.StartErrors[0]
		b.StartErrors = b.StartErrors[1:]
		if err != nil {
			return err
		}
	} else if b.StartError != nil {
		return b.StartError
	}
	if _, ok := b.connected[peer]; !ok {
		return audio.ErrNotConnected
	}
	b.started[peer] = codec
	return nil
}

// Stop implements [audio.Backend].
func (b *Backend) Stop(_ context.Context, peer hfp.PeerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.StopCalls = append(b.StopCalls, peer)
	delete(b.started, peer)
	return b.StopError
}

// Events implements [audio.Backend].
func (b *Backend) Events() <-chan audio.Event { return b.events }

// Emit queues ev on the event stream.
func (b *Backend) Emit(ev audio.Event) { b.events <- ev }

// Close ends the event stream.
func (b *Backend) Close() { close(b.events) }

// StopBackend marks peer stopped without a Stop call, as a backend-side
// fault would, and emits EventStopped.
func (b *Backend) StopBackend(peer hfp.PeerID, err error) {
	b.mu.Lock()
	delete(b.started, peer)
	b.mu.Unlock()
	b.Emit(audio.Event{Peer: peer, Kind: audio.EventStopped, Err: err})
}

// Connected reports whether peer is connected.
func (b *Backend) Connected(peer hfp.PeerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.connected[peer]
	return ok
}

// Started reports whether audio is running for peer.
func (b *Backend) Started(peer hfp.PeerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.started[peer]
	return ok
}

// StartedCodec returns the codec audio was started with for peer.
func (b *Backend) StartedCodec(peer hfp.PeerID) (hfp.CodecID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.started[peer]
	return c, ok
}

// StopCount returns how many times Stop was called for peer.
func (b *Backend) StopCount(peer hfp.PeerID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.StopCalls {
		if p == peer {
			n++
		}
	}
	return n
}

// StartCount returns how many times Start was called.
func (b *Backend) StartCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.StartCalls)
}

// ─── Pauser ──────────────────────────────────────────────────────────────────

// Token is a mock [audio.PauseToken].
type Token struct {
	mu       sync.Mutex
	releases int
}

// Release implements [audio.PauseToken].
func (t *Token) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releases++
}

// Released reports how many times Release was called.
func (t *Token) Released() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.releases
}

// Pauser is a mock [audio.Pauser]. Each successful Pause returns a fresh
// [Token], also appended to Tokens.
type Pauser struct {
	mu sync.Mutex

	// PauseError, when set, is returned by Pause.
	PauseError error

	// Tokens holds every token handed out, in order.
	Tokens []*Token

	// PauseCalls records the peers passed to Pause.
	PauseCalls []hfp.PeerID
}

// Pause implements [audio.Pauser].
func (p *Pauser) Pause(_ context.Context, peer hfp.PeerID) (audio.PauseToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PauseCalls = append(p.PauseCalls, peer)
	if p.PauseError != nil {
		return nil, p.PauseError
	}
	tok := &Token{}
	p.Tokens = append(p.Tokens, tok)
	return tok, nil
}

// Issued returns a copy of the tokens handed out so far.
func (p *Pauser) Issued() []*Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Token(nil), p.Tokens...)
}
