// Package calls mirrors the call manager's view of ongoing calls for one peer
// session and derives the call indicators and call-control plans from it.
//
// The mirror is updated from call-manager notifications only; it never
// guesses state transitions on its own. It is not safe for concurrent use.
package calls

import (
	"errors"
	"slices"

	"github.com/MrWong99/hfpag/pkg/callmanager"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

var (
	// ErrNoCall is returned when a request targets a call that does not exist.
	ErrNoCall = errors.New("calls: no matching call")

	// ErrUnsupported is returned for hold actions the gateway cannot carry out.
	ErrUnsupported = errors.New("calls: unsupported hold action")
)

// Call is one mirrored call.
type Call struct {
	Index     hfp.CallIndex
	Handle    callmanager.Call
	Number    string
	Direction hfp.CallDirection
	State     hfp.CallState
}

// Calls is the call-state mirror.
type Calls struct {
	calls    []*Call // ordered by Index
	reported hfp.CallIndicators
}

// New returns an empty mirror.
func New() *Calls { return &Calls{} }

// Add mirrors a newly reported call under the lowest free index.
func (c *Calls) Add(nc callmanager.NextCall) *Call {
	idx := hfp.CallIndex(1)
	for _, call := range c.calls {
		if call.Index != idx {
			break
		}
		idx++
	}
	call := &Call{
		Index:     idx,
		Handle:    nc.Call,
		Number:    nc.Number,
		Direction: nc.Direction,
		State:     nc.State,
	}
	c.calls = append(c.calls, call)
	slices.SortFunc(c.calls, func(a, b *Call) int { return int(a.Index) - int(b.Index) })
	return call
}

// Update records a state change. A call that reached [hfp.CallTerminated] is
// dropped from the mirror. It reports false if idx is unknown.
func (c *Calls) Update(idx hfp.CallIndex, state hfp.CallState) bool {
	i := c.find(idx)
	if i < 0 {
		return false
	}
	if state == hfp.CallTerminated {
		c.calls = slices.Delete(c.calls, i, i+1)
		return true
	}
	c.calls[i].State = state
	return true
}

// Remove drops idx from the mirror, for example when its state watch failed.
func (c *Calls) Remove(idx hfp.CallIndex) {
	if i := c.find(idx); i >= 0 {
		c.calls = slices.Delete(c.calls, i, i+1)
	}
}

// Clear forgets every call, for when the call manager goes away. The reported
// indicators are kept so the next [Calls.IndicatorChanges] reports the drop.
func (c *Calls) Clear() { c.calls = nil }

// Get returns the call at idx.
func (c *Calls) Get(idx hfp.CallIndex) (*Call, bool) {
	if i := c.find(idx); i >= 0 {
		return c.calls[i], true
	}
	return nil, false
}

// Len returns the number of mirrored calls.
func (c *Calls) Len() int { return len(c.calls) }

func (c *Calls) find(idx hfp.CallIndex) int {
	return slices.IndexFunc(c.calls, func(call *Call) bool { return call.Index == idx })
}

// first returns the lowest-indexed call in one of states.
func (c *Calls) first(states ...hfp.CallState) (*Call, bool) {
	for _, call := range c.calls {
		if slices.Contains(states, call.State) {
			return call, true
		}
	}
	return nil, false
}

func (c *Calls) all(states ...hfp.CallState) []*Call {
	var out []*Call
	for _, call := range c.calls {
		if slices.Contains(states, call.State) {
			out = append(out, call)
		}
	}
	return out
}

// ─── Derived state ───────────────────────────────────────────────────────────

// IsCallActive reports whether a call needs audio on the HF: an outgoing call
// being set up or an ongoing call whose audio is routed to the headset.
func (c *Calls) IsCallActive() bool {
	_, ok := c.first(hfp.CallOngoingActive, hfp.CallOutgoingDialing, hfp.CallOutgoingAlerting)
	return ok
}

// IsTransferredToAG reports whether a call's audio is routed to the gateway.
func (c *Calls) IsTransferredToAG() bool {
	_, ok := c.first(hfp.CallTransferredToAG)
	return ok
}

// Ringing returns the incoming call that is ringing, if any.
func (c *Calls) Ringing() (*Call, bool) { return c.first(hfp.CallIncomingRinging) }

// Active returns the call that currently carries audio, if any. A call whose
// audio was moved to the gateway counts.
func (c *Calls) Active() (*Call, bool) {
	return c.first(hfp.CallOngoingActive, hfp.CallTransferredToAG)
}

// Indicators computes the call, callsetup and callheld indicator values.
func (c *Calls) Indicators() hfp.CallIndicators {
	var ind hfp.CallIndicators
	var active, held bool
	for _, call := range c.calls {
		switch call.State {
		case hfp.CallOngoingActive, hfp.CallTransferredToAG:
			active = true
		case hfp.CallOngoingHeld:
			held = true
		case hfp.CallIncomingRinging, hfp.CallIncomingWaiting:
			ind.CallSetup = hfp.CallSetupIncoming
		case hfp.CallOutgoingDialing:
			ind.CallSetup = hfp.CallSetupOutgoingDialing
		case hfp.CallOutgoingAlerting:
			ind.CallSetup = hfp.CallSetupOutgoingAlerting
		}
	}
	if active || held {
		ind.Call = 1
	}
	switch {
	case held && active:
		ind.CallHeld = hfp.CallHeldHeldAndActive
	case held:
		ind.CallHeld = hfp.CallHeldOnHold
	}
	return ind
}

// IndicatorChanges returns the call indicators that changed since the last
// call and remembers the new values as reported.
func (c *Calls) IndicatorChanges() []hfp.Indicator {
	next := c.Indicators()
	changes := c.reported.Changes(next)
	c.reported = next
	return changes
}

// Current lists the calls for a current-calls query. Calls whose audio was
// moved to the gateway are reported as active.
func (c *Calls) Current() []hfp.CallInfo {
	out := make([]hfp.CallInfo, 0, len(c.calls))
	for _, call := range c.calls {
		state := call.State
		if state == hfp.CallTransferredToAG {
			state = hfp.CallOngoingActive
		}
		out = append(out, hfp.CallInfo{
			Index:     call.Index,
			Direction: call.Direction,
			State:     state,
			Number:    call.Number,
		})
	}
	return out
}
