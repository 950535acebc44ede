package calls

import (
	"fmt"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

// Op is a call-control operation on a single call.
type Op int

const (
	OpActivate Op = iota + 1
	OpHold
	OpTerminate
)

// String returns the operation name used in logs and metrics.
func (o Op) String() string {
	switch o {
	case OpActivate:
		return "activate"
	case OpHold:
		return "hold"
	case OpTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Step is one operation of a call-control plan.
type Step struct {
	Call *Call
	Op   Op
}

// Answer plans answering the incoming call.
func (c *Calls) Answer() ([]Step, error) {
	call, ok := c.first(hfp.CallIncomingRinging, hfp.CallIncomingWaiting)
	if !ok {
		return nil, fmt.Errorf("calls: answer: %w", ErrNoCall)
	}
	return []Step{{Call: call, Op: OpActivate}}, nil
}

// HangUp plans ending the current call. An incoming call is rejected first;
// otherwise the call carrying audio or being dialled is ended.
func (c *Calls) HangUp() ([]Step, error) {
	call, ok := c.first(hfp.CallIncomingRinging)
	if !ok {
		call, ok = c.first(hfp.CallOngoingActive, hfp.CallTransferredToAG,
			hfp.CallOutgoingDialing, hfp.CallOutgoingAlerting)
	}
	if !ok {
		return nil, fmt.Errorf("calls: hang up: %w", ErrNoCall)
	}
	return []Step{{Call: call, Op: OpTerminate}}, nil
}

// HoldActive plans putting every active call on hold, as needed before a new
// outgoing call. It returns no steps when nothing is active.
func (c *Calls) HoldActive() []Step {
	var steps []Step
	for _, call := range c.all(hfp.CallOngoingActive, hfp.CallTransferredToAG) {
		steps = append(steps, Step{Call: call, Op: OpHold})
	}
	return steps
}

// Hold plans a three-way calling action. Steps must be carried out in order;
// a failed step aborts the rest.
func (c *Calls) Hold(a hfp.HoldAction) ([]Step, error) {
	active := c.all(hfp.CallOngoingActive, hfp.CallTransferredToAG)
	held := c.all(hfp.CallOngoingHeld)
	waiting, hasWaiting := c.first(hfp.CallIncomingWaiting)

	var steps []Step
	add := func(calls []*Call, op Op) {
		for _, call := range calls {
			steps = append(steps, Step{Call: call, Op: op})
		}
	}

	switch a.Command {
	case hfp.HoldReleaseAllHeld:
		if hasWaiting {
			add([]*Call{waiting}, OpTerminate)
		} else {
			add(held, OpTerminate)
		}

	case hfp.HoldReleaseAllActive:
		add(active, OpTerminate)
		if hasWaiting {
			add([]*Call{waiting}, OpActivate)
		} else {
			add(held, OpActivate)
		}

	case hfp.HoldHoldActiveAcceptOther:
		add(active, OpHold)
		if hasWaiting {
			add([]*Call{waiting}, OpActivate)
		} else {
			add(held, OpActivate)
		}

	case hfp.HoldReleaseSpecified:
		call, ok := c.Get(a.Index)
		if !ok {
			return nil, fmt.Errorf("calls: release call %d: %w", a.Index, ErrNoCall)
		}
		add([]*Call{call}, OpTerminate)

	case hfp.HoldPrivateConsultation:
		call, ok := c.Get(a.Index)
		if !ok {
			return nil, fmt.Errorf("calls: consult call %d: %w", a.Index, ErrNoCall)
		}
		for _, other := range active {
			if other != call {
				add([]*Call{other}, OpHold)
			}
		}
		if call.State != hfp.CallOngoingActive {
			add([]*Call{call}, OpActivate)
		}

	default:
		return nil, fmt.Errorf("calls: hold command %d: %w", a.Command, ErrUnsupported)
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("calls: hold command %d: %w", a.Command, ErrNoCall)
	}
	return steps, nil
}
