// Package signaling defines the contract between a peer session and the
// signaling engine that speaks the AT command protocol over the service level
// connection.
//
// The engine decodes HF commands into typed [Request] values and encodes the
// [hfp.AgUpdate] values the session hands it. The session never sees wire
// bytes. Every Request carries a Respond continuation that the session must
// invoke exactly once.
package signaling

import (
	"context"

	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// Marker names the procedure an outbound update belongs to. The engine uses it
// to correlate updates with in-flight procedures.
type Marker int

const (
	MarkerPhoneStatus Marker = iota + 1
	MarkerCallWaitingNotifications
	MarkerRing
	MarkerCodecConnectionSetup
	MarkerVolumeSynchronization
)

// String returns the procedure name.
func (m Marker) String() string {
	switch m {
	case MarkerPhoneStatus:
		return "phone_status"
	case MarkerCallWaitingNotifications:
		return "call_waiting_notifications"
	case MarkerRing:
		return "ring"
	case MarkerCodecConnectionSetup:
		return "codec_connection_setup"
	case MarkerVolumeSynchronization:
		return "volume_synchronization"
	default:
		return "unknown"
	}
}

// Engine is the signaling engine for a single peer.
//
// Requests, Err and the accessors are called from the session goroutine only;
// implementations need not make them safe for concurrent use beyond what the
// engine's own internals require.
type Engine interface {
	// Connect attaches the engine to an RFCOMM channel and starts the service
	// level connection procedure. The engine owns ch afterwards.
	Connect(ctx context.Context, ch bearer.Channel) error

	// Connected reports whether a channel is attached.
	Connected() bool

	// Requests returns the stream of decoded HF requests. The channel is
	// closed when the bearer is lost or the engine fails; Err then reports
	// why. Before Connect it returns nil.
	Requests() <-chan Request

	// Err returns the error that terminated the request stream, or nil if it
	// ended cleanly or has not ended.
	Err() error

	// ReceiveAgRequest delivers update to the HF as part of the procedure
	// identified by marker. It blocks until the update has been written.
	ReceiveAgRequest(ctx context.Context, marker Marker, update hfp.AgUpdate) error

	// SupportedCodecs returns the codecs the HF announced with AT+BAC.
	SupportedCodecs() []hfp.CodecID

	// SelectedCodec returns the most recently negotiated codec, if any.
	SelectedCodec() (hfp.CodecID, bool)

	// CodecNegotiationSupported reports whether both sides support codec
	// negotiation.
	CodecNegotiationSupported() bool

	// ThreeWayCallingSupported reports whether both sides support three-way
	// calling (multi-call handling).
	ThreeWayCallingSupported() bool

	// OperatorNameFormatReady reports whether the HF has set the +COPS name
	// format, which must happen before the operator name may be reported.
	OperatorNameFormatReady() bool
}
