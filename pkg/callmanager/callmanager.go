// Package callmanager defines the telephony contract a peer session uses when
// a call manager is attached: network status, call lifecycle notifications,
// call control and a few pass-through reports from the headset.
//
// The call manager is optional and may be attached or replaced while a
// session runs. Streaming data is exposed as hanging gets: each Watch method
// blocks until the value changes (the first call returns immediately) and
// fails once the manager goes away.
package callmanager

import (
	"context"
	"errors"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

// ErrClosed is returned by hanging gets once the manager or call is gone.
var ErrClosed = errors.New("callmanager: closed")

// Manager is the telephony call manager.
//
// Implementations must be safe for concurrent use: watches run on pump
// goroutines while call-control methods are invoked from the session.
type Manager interface {
	// WatchNetworkInformation returns the network status. The first call
	// returns a complete snapshot; later calls block until something changes
	// and may return partial snapshots containing only changed fields.
	WatchNetworkInformation(ctx context.Context) (hfp.NetworkInformation, error)

	// WatchNextCall blocks until a new call appears.
	WatchNextCall(ctx context.Context) (NextCall, error)

	// GainControl hands the manager the session's gain endpoint for peer.
	GainControl(ctx context.Context, peer hfp.PeerID, ep GainEndpoint) error

	// SubscriberNumbers returns the subscriber numbers of the gateway.
	SubscriberNumbers(ctx context.Context) ([]string, error)

	// QueryOperator returns the network operator name, or "" if unknown.
	QueryOperator(ctx context.Context) (string, error)

	// SendDTMF plays code on the active call.
	SendDTMF(ctx context.Context, code hfp.DtmfCode) error

	// SetNRECMode enables or disables AG-side noise reduction and echo
	// cancellation.
	SetNRECMode(ctx context.Context, enabled bool) error

	// ReportHeadsetBatteryLevel forwards the headset battery level (0–100).
	ReportHeadsetBatteryLevel(ctx context.Context, peer hfp.PeerID, percent uint8)

	// RequestOutgoingCall places a new outgoing call.
	RequestOutgoingCall(ctx context.Context, action hfp.CallAction) error
}

// NextCall describes a call that just appeared.
type NextCall struct {
	Call      Call
	Number    string
	Direction hfp.CallDirection
	State     hfp.CallState
}

// Call controls one call.
type Call interface {
	// WatchState blocks until the call's state changes. It returns
	// [ErrClosed] once the call is gone.
	WatchState(ctx context.Context) (hfp.CallState, error)

	// RequestActive answers an incoming call or resumes a held one.
	RequestActive(ctx context.Context) error

	// RequestHold puts the call on hold.
	RequestHold(ctx context.Context) error

	// RequestTerminate ends or rejects the call.
	RequestTerminate(ctx context.Context) error

	// RequestTransferAudio moves the call audio to the gateway.
	RequestTransferAudio(ctx context.Context) error
}

// GainEndpoint is the session-owned side of the gain control channel.
// It is safe for concurrent use.
type GainEndpoint interface {
	// SetSpeakerGain asks the headset to change its speaker gain (0–15).
	SetSpeakerGain(level uint8)

	// SetMicrophoneGain asks the headset to change its microphone gain (0–15).
	SetMicrophoneGain(level uint8)

	// SpeakerGain returns the last speaker gain reported by the headset.
	SpeakerGain() uint8

	// MicrophoneGain returns the last microphone gain reported by the headset.
	MicrophoneGain() uint8
}
