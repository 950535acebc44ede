// Package mock provides in-memory implementations of [callmanager.Manager]
// and [callmanager.Call] for use in unit tests.
//
// All mocks are safe for concurrent use. Hanging gets are fed by the test:
// [Manager.PushNetwork] and [Manager.PushCall] release a pending watch, and
// [Call.SetState] releases a pending [Call.WatchState]. Closing the manager
// with [Manager.Close] makes all pending and future watches fail.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hfpag/pkg/callmanager"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// ─── Manager ─────────────────────────────────────────────────────────────────

// Manager is a mock [callmanager.Manager].
type Manager struct {
	mu sync.Mutex

	// Operator is returned by QueryOperator.
	Operator string

	// Numbers is returned by SubscriberNumbers.
	Numbers []string

	// Error fields are returned by the corresponding method.
	SubscriberError   error
	OperatorError     error
	DTMFError         error
	NRECError         error
	OutgoingCallError error
	GainControlError  error

	// Recorded calls.
	DTMFCodes     []hfp.DtmfCode
	NRECModes     []bool
	BatteryLevels []uint8
	OutgoingCalls []hfp.CallAction
	GainEndpoints []callmanager.GainEndpoint

	network   chan hfp.NetworkInformation
	calls     chan callmanager.NextCall
	closed    chan struct{}
	closeOnce sync.Once
}

// NewManager returns a manager whose first network watch returns initial.
// Pass a zero snapshot and call Close to simulate a manager that goes away
// before reporting anything.
func NewManager(initial *hfp.NetworkInformation) *Manager {
	m := &Manager{
		network: make(chan hfp.NetworkInformation, 16),
		calls:   make(chan callmanager.NextCall, 16),
		closed:  make(chan struct{}),
	}
	if initial != nil {
		m.network <- *initial
	}
	return m
}

// Close makes every pending and future watch fail with [callmanager.ErrClosed].
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// PushNetwork queues a network snapshot for the next watch.
func (m *Manager) PushNetwork(n hfp.NetworkInformation) { m.network <- n }

// PushCall queues a new call for the next WatchNextCall.
func (m *Manager) PushCall(c callmanager.NextCall) { m.calls <- c }

// WatchNetworkInformation implements [callmanager.Manager].
func (m *Manager) WatchNetworkInformation(ctx context.Context) (hfp.NetworkInformation, error) {
	select {
	case n := <-m.network:
		return n, nil
	case <-m.closed:
		return hfp.NetworkInformation{}, callmanager.ErrClosed
	case <-ctx.Done():
		return hfp.NetworkInformation{}, ctx.Err()
	}
}

// WatchNextCall implements [callmanager.Manager].
func (m *Manager) WatchNextCall(ctx context.Context) (callmanager.NextCall, error) {
	select {
	case c := <-m.calls:
		return c, nil
	case <-m.closed:
		return callmanager.NextCall{}, callmanager.ErrClosed
	case <-ctx.Done():
		return callmanager.NextCall{}, ctx.Err()
	}
}

// GainControl implements [callmanager.Manager].
func (m *Manager) GainControl(_ context.Context, _ hfp.PeerID, ep callmanager.GainEndpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GainEndpoints = append(m.GainEndpoints, ep)
	return m.GainControlError
}

// Gain returns the most recently registered gain endpoint, or nil.
func (m *Manager) Gain() callmanager.GainEndpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.GainEndpoints) == 0 {
		return nil
	}
	return m.GainEndpoints[len(m.GainEndpoints)-1]
}

// SubscriberNumbers implements [callmanager.Manager].
func (m *Manager) SubscriberNumbers(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Numbers, m.SubscriberError
}

// QueryOperator implements [callmanager.Manager].
func (m *Manager) QueryOperator(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Operator, m.OperatorError
}

// SendDTMF implements [callmanager.Manager].
func (m *Manager) SendDTMF(_ context.Context, code hfp.DtmfCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DTMFCodes = append(m.DTMFCodes, code)
	return m.DTMFError
}

// SetNRECMode implements [callmanager.Manager].
func (m *Manager) SetNRECMode(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NRECModes = append(m.NRECModes, enabled)
	return m.NRECError
}

// ReportHeadsetBatteryLevel implements [callmanager.Manager].
func (m *Manager) ReportHeadsetBatteryLevel(_ context.Context, _ hfp.PeerID, percent uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatteryLevels = append(m.BatteryLevels, percent)
}

// RequestOutgoingCall implements [callmanager.Manager].
func (m *Manager) RequestOutgoingCall(_ context.Context, action hfp.CallAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OutgoingCalls = append(m.OutgoingCalls, action)
	return m.OutgoingCallError
}

// Snapshot returns copies of the recorded pass-through calls.
func (m *Manager) Snapshot() (dtmf []hfp.DtmfCode, nrec []bool, battery []uint8, outgoing []hfp.CallAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]hfp.DtmfCode(nil), m.DTMFCodes...),
		append([]bool(nil), m.NRECModes...),
		append([]uint8(nil), m.BatteryLevels...),
		append([]hfp.CallAction(nil), m.OutgoingCalls...)
}

// ─── Call ────────────────────────────────────────────────────────────────────

// Request names a call-control request recorded by [Call].
type Request string

const (
	RequestActive        Request = "active"
	RequestHold          Request = "hold"
	RequestTerminate     Request = "terminate"
	RequestTransferAudio Request = "transfer_audio"
)

// Call is a mock [callmanager.Call].
type Call struct {
	mu sync.Mutex

	// Errors returned by the control methods, keyed by request.
	Errors map[Request]error

	// Requests records every control request in order.
	Requests []Request

	states    chan hfp.CallState
	gone      chan struct{}
	closeOnce sync.Once
}

// NewCall returns a call with no pending state change.
func NewCall() *Call {
	return &Call{
		states: make(chan hfp.CallState, 16),
		gone:   make(chan struct{}),
	}
}

// SetState queues a state change for the next WatchState.
func (c *Call) SetState(s hfp.CallState) { c.states <- s }

// Remove makes pending and future watches fail, as if the call vanished.
func (c *Call) Remove() {
	c.closeOnce.Do(func() { close(c.gone) })
}

// WatchState implements [callmanager.Call].
func (c *Call) WatchState(ctx context.Context) (hfp.CallState, error) {
	select {
	case s := <-c.states:
		return s, nil
	case <-c.gone:
		return 0, callmanager.ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Call) record(r Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, r)
	return c.Errors[r]
}

// Recorded returns a copy of the recorded requests.
func (c *Call) Recorded() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.Requests...)
}

// RequestActive implements [callmanager.Call].
func (c *Call) RequestActive(context.Context) error { return c.record(RequestActive) }

// RequestHold implements [callmanager.Call].
func (c *Call) RequestHold(context.Context) error { return c.record(RequestHold) }

// RequestTerminate implements [callmanager.Call].
func (c *Call) RequestTerminate(context.Context) error { return c.record(RequestTerminate) }

// RequestTransferAudio implements [callmanager.Call].
func (c *Call) RequestTransferAudio(context.Context) error { return c.record(RequestTransferAudio) }
