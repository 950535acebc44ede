// Package audio defines the contracts between peer sessions and the local
// audio subsystem.
//
// The two primary abstractions are:
//
//   - [Backend]: routes call audio between the local audio pipeline and an
//     SCO link. A single backend is shared by every peer session.
//   - [Pauser]: pauses a competing local audio source (for example a media
//     stream) while a call holds the audio path.
//
// [Shared] wraps a Backend with a mutex so concurrently running sessions can
// use it safely; it is the only cross-session state. Test doubles live in
// audio/mock.
package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// ErrNotConnected is returned by Start when the peer was never connected to
// the backend.
var ErrNotConnected = errors.New("audio: peer not connected")

// EventKind classifies backend-originated events.
type EventKind int

const (
	// EventRequestStart asks the session to bring audio up even without a
	// call (for example for voice prompts).
	EventRequestStart EventKind = iota + 1

	// EventRequestStop withdraws a previous EventRequestStart.
	EventRequestStop

	// EventStopped reports that the backend stopped the peer's audio on its
	// own, optionally because of Err.
	EventStopped
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventRequestStart:
		return "request_start"
	case EventRequestStop:
		return "request_stop"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is a backend-originated event scoped to one peer.
type Event struct {
	Peer hfp.PeerID
	Kind EventKind

	// Err is set on EventStopped when the backend stopped because of a fault.
	Err error
}

// Backend is the local audio subsystem.
//
// Implementations need not be safe for concurrent use; sessions reach the
// backend through [Shared].
type Backend interface {
	// Connect announces peer and the codecs it supports.
	Connect(ctx context.Context, peer hfp.PeerID, codecs []hfp.CodecID) error

	// Disconnect forgets peer, stopping its audio if it is running.
	Disconnect(ctx context.Context, peer hfp.PeerID) error

	// Start begins routing audio for peer over link using codec.
	Start(ctx context.Context, peer hfp.PeerID, link bearer.Link, codec hfp.CodecID) error

	// Stop ends audio routing for peer.
	Stop(ctx context.Context, peer hfp.PeerID) error

	// Events returns the stream of backend-originated events for all peers.
	// The channel is closed when the backend shuts down.
	Events() <-chan Event
}

// Shared serialises access to a [Backend] shared between sessions.
// It implements Backend itself.
type Shared struct {
	mu      sync.Mutex
	backend Backend
}

var _ Backend = (*Shared)(nil)

// NewShared wraps b.
func NewShared(b Backend) *Shared {
	return &Shared{backend: b}
}

// Connect implements [Backend].
func (s *Shared) Connect(ctx context.Context, peer hfp.PeerID, codecs []hfp.CodecID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Connect(ctx, peer, codecs)
}

// Disconnect implements [Backend].
func (s *Shared) Disconnect(ctx context.Context, peer hfp.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Disconnect(ctx, peer)
}

// Start implements [Backend].
func (s *Shared) Start(ctx context.Context, peer hfp.PeerID, link bearer.Link, codec hfp.CodecID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Start(ctx, peer, link, codec)
}

// Stop implements [Backend].
func (s *Shared) Stop(ctx context.Context, peer hfp.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Stop(ctx, peer)
}

// Events implements [Backend]. The stream is not serialised; it carries
// events for every peer and is usually consumed by a single router.
func (s *Shared) Events() <-chan Event {
	return s.backend.Events()
}
