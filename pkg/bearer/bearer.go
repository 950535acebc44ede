// Package bearer defines the transport contracts a peer session depends on:
// the RFCOMM channel that carries the service level connection and the
// synchronous (SCO/eSCO) links that carry call audio.
//
// The two primary abstractions are:
//
//   - [Connector]: opens the signaling bearer to a peer ([Channel]).
//   - [SCO]: opens or accepts synchronous audio links ([Link]).
//
// [Profile] combines both. Implementations live in adapter packages
// (bearer/bluez for the BlueZ D-Bus profile API) and in bearer/mock for tests.
package bearer

import (
	"context"
	"errors"
	"io"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

// ErrRejected is returned when the remote side or the controller refuses a
// connection, including every parameter set of an SCO attempt.
var ErrRejected = errors.New("bearer: connection rejected")

// Channel is the raw byte stream of a service level connection. Ownership
// passes to whoever receives it; closing it drops the RFCOMM link.
type Channel interface {
	io.ReadWriteCloser
}

// ConnectParams describes how to reach the peer's HF service, typically taken
// from an SDP search result.
type ConnectParams struct {
	// RFCOMMChannel is the server channel advertised by the HF. Zero lets the
	// implementation resolve it.
	RFCOMMChannel uint8
}

// Connector opens the signaling bearer.
type Connector interface {
	// Connect dials the HF service on peer. The supplied ctx bounds the
	// connection attempt only.
	Connect(ctx context.Context, peer hfp.PeerID, params ConnectParams) (Channel, error)
}

// Link is an established synchronous audio link.
//
// Implementations must be safe for concurrent use: the session reads Closed
// while a release callback may call Close from another goroutine.
type Link interface {
	// Params returns the parameter set the controller settled on.
	Params() hfp.CodecParams

	// Closed returns a channel that is closed once the link is gone, either
	// because the remote tore it down or because Close was called.
	Closed() <-chan struct{}

	// Close tears the link down. Calling Close more than once is a no-op.
	Close() error
}

// SCO establishes synchronous audio links.
type SCO interface {
	// ConnectSCO initiates a link to peer, trying sets in order. It returns
	// [ErrRejected] (possibly wrapped) if none was accepted.
	ConnectSCO(ctx context.Context, peer hfp.PeerID, sets []hfp.CodecParams) (Link, error)

	// AcceptSCO waits for the peer to open a link using one of sets. It blocks
	// until a link arrives or ctx is cancelled; cancelling ctx is the only way
	// to abandon the wait.
	AcceptSCO(ctx context.Context, peer hfp.PeerID, sets []hfp.CodecParams) (Link, error)
}

// Profile is the complete bearer service used by a peer session.
type Profile interface {
	Connector
	SCO
}
