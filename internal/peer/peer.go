// Package peer implements the Audio-Gateway session controller for a single
// Hands-Free peer.
//
// A [Session] is an actor: one goroutine owns all of its state and handles
// exactly one event at a time. Events come from the parent (inbound
// [Request] values), the signaling engine (decoded HF requests), the call
// manager (network and call updates, gain changes, delivered by pump
// goroutines), the SCO link (close notifications and accepted incoming
// links) and the ring timer. After every inbound request and every call
// update the session re-derives the SCO state from the call mirror, which is
// where audio links are negotiated, accepted and released.
//
// The only state shared with other sessions is the audio backend, which the
// parent wraps in an [audio.Shared].
package peer

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrWong99/hfpag/internal/observe"
	"github.com/MrWong99/hfpag/pkg/audio"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// ErrSessionClosed is returned by [Handle.Send] once the session has exited.
var ErrSessionClosed = errors.New("peer: session closed")

// Default values used when the corresponding [Config] field is zero.
const (
	DefaultRingInterval          = 5 * time.Second
	DefaultRequestQueue          = 32
	DefaultAutoconnectMaxBackoff = time.Minute
)

// ConnectionBehavior is the policy for how the session reacts to discovery
// of its peer. It may be replaced at runtime with [UpdateBehavior].
type ConnectionBehavior struct {
	// Autoconnect dials the peer when a search result reports it and no
	// service level connection exists.
	Autoconnect bool
}

// Config holds the settings a session is created with.
type Config struct {
	// Features is the locally supported Audio-Gateway feature set.
	Features hfp.AgFeatures

	// Codecs lists the codecs the gateway offers, announced to the audio
	// backend on connection. Defaults to [hfp.DefaultCodecs].
	Codecs []hfp.CodecID

	// Behavior is the initial connection-behavior policy.
	Behavior ConnectionBehavior

	// RingInterval is the period between RING alerts.
	RingInterval time.Duration

	// RequestQueue is the capacity of the inbound request queue.
	RequestQueue int

	// AutoconnectMaxBackoff caps the delay between autoconnect attempts.
	AutoconnectMaxBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.Codecs) == 0 {
		c.Codecs = hfp.DefaultCodecs
	}
	if c.RingInterval <= 0 {
		c.RingInterval = DefaultRingInterval
	}
	if c.RequestQueue <= 0 {
		c.RequestQueue = DefaultRequestQueue
	}
	if c.AutoconnectMaxBackoff <= 0 {
		c.AutoconnectMaxBackoff = DefaultAutoconnectMaxBackoff
	}
}

// Deps are the collaborators a session talks to.
type Deps struct {
	// Engine is the signaling engine for this peer. Required.
	Engine signaling.Engine

	// Profile opens the signaling bearer and the SCO links. Required.
	Profile bearer.Profile

	// Backend is the shared audio backend. Required.
	Backend audio.Backend

	// Pauser pauses competing audio while a link is active. Optional.
	Pauser audio.Pauser

	// Logger defaults to [slog.Default].
	Logger *slog.Logger

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Reason tells why a session loop exited.
type Reason int

const (
	// ReasonSignalingTerminated means the signaling request stream ended,
	// usually because the HF dropped the bearer.
	ReasonSignalingTerminated Reason = iota + 1

	// ReasonInboundClosed means the parent closed the request queue.
	ReasonInboundClosed

	// ReasonShutdown means a [Shutdown] request was handled.
	ReasonShutdown

	// ReasonContextDone means the context passed to Spawn or Start was cancelled.
	ReasonContextDone
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonSignalingTerminated:
		return "signaling_terminated"
	case ReasonInboundClosed:
		return "inbound_closed"
	case ReasonShutdown:
		return "shutdown"
	case ReasonContextDone:
		return "context_done"
	default:
		return "unknown"
	}
}

// Result is the terminal state of a session, reported once its loop exits.
type Result struct {
	Peer      hfp.PeerID
	SessionID string
	Reason    Reason

	// Err is the error behind the exit, if any: the signaling engine's
	// terminal error or the context error.
	Err error

	// Final snapshot of session state.
	Sco          ScoStateKind
	Network      hfp.NetworkInformation
	BatteryLevel uint8
	Calls        []hfp.CallInfo
	ManagerID    string
}
