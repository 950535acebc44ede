// Package mock provides a scriptable in-memory [signaling.Engine] for unit
// tests.
//
// The mock plays both the engine and the remote HF: tests push decoded
// requests with [Engine.Push], inspect the updates the session sent with
// [Engine.Updates], and can react to updates synchronously through
// [Engine.OnUpdate] (for example, answering a codec setup with an AT+BCS
// request). When connected to a [bearer.Channel] the mock watches it and ends
// the request stream as soon as the remote end goes away.
//
// Typical usage:
//
//	eng := mock.NewEngine()
//	eng.IndicatorReporting = true
//	eng.OnUpdate = func(m signaling.Marker, u hfp.AgUpdate) {
//	    if u.Kind == hfp.UpdateCodecSetup {
//	        eng.Push(signaling.SynchronousConnectionSetup{Selected: hfp.CodecCVSD, Respond: ...})
//	    }
//	}
package mock

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// ErrBearerLost is the terminal error reported when the watched channel fails.
var ErrBearerLost = errors.New("signaling mock: bearer lost")

// Sent records one update delivered through ReceiveAgRequest.
type Sent struct {
	Marker signaling.Marker
	Update hfp.AgUpdate
}

// Engine is a mock [signaling.Engine]. Configure the exported fields before
// handing it to a session; they are read without locking afterwards.
type Engine struct {
	// Codecs is returned by SupportedCodecs.
	Codecs []hfp.CodecID

	// Selected, when non-nil, is returned by SelectedCodec.
	Selected *hfp.CodecID

	// CodecNegotiation, ThreeWay and OperatorFormat back the feature accessors.
	CodecNegotiation bool
	ThreeWay         bool
	OperatorFormat   bool

	// IndicatorReporting models AT+CMER: indicator updates are dropped while
	// it is false. CallWaitingNotifications models AT+CCWA likewise.
	IndicatorReporting       bool
	CallWaitingNotifications bool

	// ReceiveError, when set, is returned by ReceiveAgRequest.
	ReceiveError error

	// OnUpdate is called synchronously for every delivered update.
	OnUpdate func(signaling.Marker, hfp.AgUpdate)

	mu         sync.Mutex
	connected  bool
	requests   chan signaling.Request
	err        error
	endOnce    sync.Once
	updates    []Sent
	connectErr error
	channel    bearer.Channel
	failKind   hfp.UpdateKind
	failErr    error
}

// NewEngine returns an unconnected engine that supports CVSD and mSBC with
// codec negotiation.
func NewEngine() *Engine {
	return &Engine{
		Codecs:           []hfp.CodecID{hfp.CodecCVSD, hfp.CodecMSBC},
		CodecNegotiation: true,
		OperatorFormat:   true,
	}
}

// FailConnect makes the next Connect call fail with err.
func (e *Engine) FailConnect(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connectErr = err
}

// FailNextUpdate makes the next ReceiveAgRequest carrying an update of kind
// fail with err. Unlike ReceiveError it may be called while a session runs.
func (e *Engine) FailNextUpdate(kind hfp.UpdateKind, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failKind, e.failErr = kind, err
}

// Connect implements [signaling.Engine]. A goroutine drains ch and ends the
// request stream with [ErrBearerLost] once the remote end closes it.
func (e *Engine) Connect(_ context.Context, ch bearer.Channel) error {
	e.mu.Lock()
	if e.connectErr != nil {
		err := e.connectErr
		e.connectErr = nil
		e.mu.Unlock()
		return err
	}
	if e.connected {
		e.mu.Unlock()
		return errors.New("signaling mock: already connected")
	}
	e.connected = true
	e.channel = ch
	if e.requests == nil {
		e.requests = make(chan signaling.Request, 64)
	}
	e.mu.Unlock()

	if ch != nil {
		go func() {
			_, err := io.Copy(io.Discard, ch)
			if err == nil {
				err = io.EOF
			}
			e.Terminate(errors.Join(ErrBearerLost, err))
		}()
	}
	return nil
}

// Connected implements [signaling.Engine].
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// Requests implements [signaling.Engine].
func (e *Engine) Requests() <-chan signaling.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil
	}
	return e.requests
}

// Err implements [signaling.Engine].
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Push queues a decoded HF request. It must not be called after Terminate.
func (e *Engine) Push(req signaling.Request) {
	e.mu.Lock()
	if e.requests == nil {
		e.requests = make(chan signaling.Request, 64)
	}
	ch := e.requests
	e.mu.Unlock()
	ch <- req
}

// Terminate ends the request stream with err (nil for a clean end).
func (e *Engine) Terminate(err error) {
	e.endOnce.Do(func() {
		e.mu.Lock()
		e.err = err
		if e.requests == nil {
			e.requests = make(chan signaling.Request)
		}
		close(e.requests)
		e.mu.Unlock()
	})
}

// ReceiveAgRequest implements [signaling.Engine]. Updates gated by a disabled
// reporting mode are dropped silently, as a real engine would.
func (e *Engine) ReceiveAgRequest(_ context.Context, marker signaling.Marker, update hfp.AgUpdate) error {
	if e.ReceiveError != nil {
		return e.ReceiveError
	}
	e.mu.Lock()
	if e.failErr != nil && update.Kind == e.failKind {
		err := e.failErr
		e.failErr = nil
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	if update.Kind == hfp.UpdateIndicator && !e.IndicatorReporting {
		return nil
	}
	if update.Kind == hfp.UpdateCallWaiting && !e.CallWaitingNotifications {
		return nil
	}
	e.mu.Lock()
	e.updates = append(e.updates, Sent{Marker: marker, Update: update})
	e.mu.Unlock()
	if e.OnUpdate != nil {
		e.OnUpdate(marker, update)
	}
	return nil
}

// Updates returns a copy of every delivered update, in order.
func (e *Engine) Updates() []Sent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Sent, len(e.updates))
	copy(out, e.updates)
	return out
}

// Indicators returns the delivered indicator updates, in order.
func (e *Engine) Indicators() []hfp.Indicator {
	var out []hfp.Indicator
	for _, s := range e.Updates() {
		if s.Update.Kind == hfp.UpdateIndicator {
			out = append(out, s.Update.Indicator)
		}
	}
	return out
}

// ResetUpdates clears the recorded updates.
func (e *Engine) ResetUpdates() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates = nil
}

// SupportedCodecs implements [signaling.Engine].
func (e *Engine) SupportedCodecs() []hfp.CodecID { return e.Codecs }

// SelectedCodec implements [signaling.Engine].
func (e *Engine) SelectedCodec() (hfp.CodecID, bool) {
	if e.Selected == nil {
		return 0, false
	}
	return *e.Selected, true
}

// CodecNegotiationSupported implements [signaling.Engine].
func (e *Engine) CodecNegotiationSupported() bool { return e.CodecNegotiation }

// ThreeWayCallingSupported implements [signaling.Engine].
func (e *Engine) ThreeWayCallingSupported() bool { return e.ThreeWay }

// OperatorNameFormatReady implements [signaling.Engine].
func (e *Engine) OperatorNameFormatReady() bool { return e.OperatorFormat }
