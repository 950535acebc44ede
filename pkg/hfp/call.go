package hfp

import "fmt"

// CallIndex is the 1-based call index used by +CLCC and AT+CHLD.
type CallIndex int

// CallDirection tells who originated a call.
type CallDirection int

const (
	DirectionMobileOriginated CallDirection = iota
	DirectionMobileTerminated
)

// CallState is the telephony state of one call, as reported by the call
// manager.
type CallState int

const (
	CallIncomingRinging CallState = iota + 1
	CallIncomingWaiting
	CallOutgoingDialing
	CallOutgoingAlerting
	CallOngoingActive
	CallOngoingHeld
	// CallTransferredToAG is an ongoing call whose audio is routed to the
	// gateway instead of the headset.
	CallTransferredToAG
	CallTerminated
)

// String returns the state name.
func (s CallState) String() string {
	switch s {
	case CallIncomingRinging:
		return "incoming_ringing"
	case CallIncomingWaiting:
		return "incoming_waiting"
	case CallOutgoingDialing:
		return "outgoing_dialing"
	case CallOutgoingAlerting:
		return "outgoing_alerting"
	case CallOngoingActive:
		return "ongoing_active"
	case CallOngoingHeld:
		return "ongoing_held"
	case CallTransferredToAG:
		return "transferred_to_ag"
	case CallTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("call_state(%d)", int(s))
	}
}

// CallInfo is one row of the +CLCC current-calls listing.
type CallInfo struct {
	Index      CallIndex
	Direction  CallDirection
	State      CallState
	Number     string
	Multiparty bool
}

// HoldCommand is the AT+CHLD sub-command.
type HoldCommand int

const (
	// HoldReleaseAllHeld releases held calls or rejects a waiting call (0).
	HoldReleaseAllHeld HoldCommand = iota
	// HoldReleaseAllActive releases active calls and accepts the other (1).
	HoldReleaseAllActive
	// HoldHoldActiveAcceptOther holds active calls and accepts the other (2).
	HoldHoldActiveAcceptOther
	// HoldAddHeldToMultiparty joins held calls to the conversation (3).
	HoldAddHeldToMultiparty
	// HoldReleaseSpecified releases the call at Index (1x).
	HoldReleaseSpecified
	// HoldPrivateConsultation holds all calls except the one at Index (2x).
	HoldPrivateConsultation
)

// HoldAction is a decoded AT+CHLD request.
type HoldAction struct {
	Command HoldCommand
	// Index is only meaningful for HoldReleaseSpecified and
	// HoldPrivateConsultation.
	Index CallIndex
}

// CallActionKind selects how an outgoing call is addressed.
type CallActionKind int

const (
	CallActionDial CallActionKind = iota
	CallActionMemory
	CallActionRedialLast
)

// CallAction describes an outgoing call requested by the HF (ATD, ATD>, AT+BLDN).
type CallAction struct {
	Kind CallActionKind
	// Number is set for CallActionDial, Memory for CallActionMemory.
	Number string
	Memory string
}

// String renders the action for logging without leaking full numbers.
func (a CallAction) String() string {
	switch a.Kind {
	case CallActionDial:
		return "dial"
	case CallActionMemory:
		return "memory:" + a.Memory
	default:
		return "redial_last"
	}
}
