package resilience

import (
	"context"

	"github.com/MrWong99/hfpag/pkg/callmanager"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// CallManager implements [callmanager.Manager] by forwarding to another
// manager through a [CircuitBreaker]. One-shot operations fail fast with
// [ErrCircuitOpen] while the breaker is open. Hanging gets are forwarded
// unguarded: they block by design and their failure means the manager is
// gone, which the session handles by detaching it.
type CallManager struct {
	next    callmanager.Manager
	breaker *CircuitBreaker
}

// Compile-time interface assertion.
var _ callmanager.Manager = (*CallManager)(nil)

// NewCallManager wraps next with a breaker built from cfg.
func NewCallManager(next callmanager.Manager, cfg CircuitBreakerConfig) *CallManager {
	if cfg.Name == "" {
		cfg.Name = "callmanager"
	}
	return &CallManager{next: next, breaker: NewCircuitBreaker(cfg)}
}

// Breaker exposes the breaker guarding the manager.
func (m *CallManager) Breaker() *CircuitBreaker { return m.breaker }

// WatchNetworkInformation forwards to the wrapped manager.
func (m *CallManager) WatchNetworkInformation(ctx context.Context) (hfp.NetworkInformation, error) {
	return m.next.WatchNetworkInformation(ctx)
}

// WatchNextCall forwards to the wrapped manager.
func (m *CallManager) WatchNextCall(ctx context.Context) (callmanager.NextCall, error) {
	return m.next.WatchNextCall(ctx)
}

// GainControl forwards through the breaker.
func (m *CallManager) GainControl(ctx context.Context, peer hfp.PeerID, ep callmanager.GainEndpoint) error {
	return m.breaker.Execute(func() error {
		return m.next.GainControl(ctx, peer, ep)
	})
}

// SubscriberNumbers forwards through the breaker.
func (m *CallManager) SubscriberNumbers(ctx context.Context) ([]string, error) {
	return Do(m.breaker, func() ([]string, error) {
		return m.next.SubscriberNumbers(ctx)
	})
}

// QueryOperator forwards through the breaker.
func (m *CallManager) QueryOperator(ctx context.Context) (string, error) {
	return Do(m.breaker, func() (string, error) {
		return m.next.QueryOperator(ctx)
	})
}

// SendDTMF forwards through the breaker.
func (m *CallManager) SendDTMF(ctx context.Context, code hfp.DtmfCode) error {
	return m.breaker.Execute(func() error {
		return m.next.SendDTMF(ctx, code)
	})
}

// SetNRECMode forwards through the breaker.
func (m *CallManager) SetNRECMode(ctx context.Context, enabled bool) error {
	return m.breaker.Execute(func() error {
		return m.next.SetNRECMode(ctx, enabled)
	})
}

// ReportHeadsetBatteryLevel forwards to the wrapped manager. It has no result
// to judge, so the breaker only decides whether the report is dropped.
func (m *CallManager) ReportHeadsetBatteryLevel(ctx context.Context, peer hfp.PeerID, percent uint8) {
	if m.breaker.State() == StateOpen {
		return
	}
	m.next.ReportHeadsetBatteryLevel(ctx, peer, percent)
}

// RequestOutgoingCall forwards through the breaker.
func (m *CallManager) RequestOutgoingCall(ctx context.Context, action hfp.CallAction) error {
	return m.breaker.Execute(func() error {
		return m.next.RequestOutgoingCall(ctx, action)
	})
}
