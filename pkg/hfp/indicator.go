package hfp

import "fmt"

// IndicatorKind names one of the Audio-Gateway status indicators reported via
// +CIND/+CIEV.
type IndicatorKind int

const (
	IndicatorService IndicatorKind = iota + 1
	IndicatorCall
	IndicatorCallSetup
	IndicatorCallHeld
	IndicatorSignal
	IndicatorRoam
	IndicatorBatteryCharge
)

// String returns the indicator name used in +CIND.
func (k IndicatorKind) String() string {
	switch k {
	case IndicatorService:
		return "service"
	case IndicatorCall:
		return "call"
	case IndicatorCallSetup:
		return "callsetup"
	case IndicatorCallHeld:
		return "callheld"
	case IndicatorSignal:
		return "signal"
	case IndicatorRoam:
		return "roam"
	case IndicatorBatteryCharge:
		return "battchg"
	default:
		return "unknown"
	}
}

// Indicator is a single indicator value.
type Indicator struct {
	Kind  IndicatorKind
	Value uint8
}

// String renders the indicator as "name(value)".
func (i Indicator) String() string { return fmt.Sprintf("%s(%d)", i.Kind, i.Value) }

// Service returns the service-availability indicator.
func Service(available bool) Indicator { return Indicator{Kind: IndicatorService, Value: boolValue(available)} }

// Signal returns the signal-strength indicator for s.
func Signal(s SignalStrength) Indicator { return Indicator{Kind: IndicatorSignal, Value: s.IndicatorValue()} }

// Roam returns the roaming indicator.
func Roam(roaming bool) Indicator { return Indicator{Kind: IndicatorRoam, Value: boolValue(roaming)} }

// BatteryLevel returns the AG battery indicator. Values above
// [MaxBatteryLevel] are clamped.
func BatteryLevel(level uint8) Indicator {
	return Indicator{Kind: IndicatorBatteryCharge, Value: min(level, MaxBatteryLevel)}
}

// MaxBatteryLevel is the highest battchg indicator value and the default
// battery level of a new session.
const MaxBatteryLevel uint8 = 5

func boolValue(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// SignalStrength is the network signal level reported by the call manager.
// The zero value means "unknown" and is never produced by a well-formed
// snapshot.
type SignalStrength uint8

const (
	SignalNone SignalStrength = iota + 1
	SignalVeryLow
	SignalLow
	SignalMedium
	SignalHigh
	SignalVeryHigh
)

// IndicatorValue maps s onto the 0–5 signal indicator range. SignalNone maps
// to 0; every other level keeps its numeric value, clamped to 5.
func (s SignalStrength) IndicatorValue() uint8 {
	if s <= SignalNone {
		return 0
	}
	return min(uint8(s), 5)
}

// String returns the level name.
func (s SignalStrength) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalVeryLow:
		return "very_low"
	case SignalLow:
		return "low"
	case SignalMedium:
		return "medium"
	case SignalHigh:
		return "high"
	case SignalVeryHigh:
		return "very_high"
	default:
		return "unknown"
	}
}

// Ptr returns a pointer to a copy of s.
func (s SignalStrength) Ptr() *SignalStrength { return &s }

// NetworkInformation is a (possibly partial) network status snapshot from the
// call manager. A nil field means "not reported".
type NetworkInformation struct {
	ServiceAvailable *bool
	SignalStrength   *SignalStrength
	Roaming          *bool
}

// Complete reports whether every field is present.
func (n NetworkInformation) Complete() bool {
	return n.ServiceAvailable != nil && n.SignalStrength != nil && n.Roaming != nil
}

// Bool returns a pointer to a copy of b.
func Bool(b bool) *bool { return &b }

// CallIndicators groups the three call-related indicators.
type CallIndicators struct {
	Call      uint8
	CallSetup uint8
	CallHeld  uint8
}

// Call setup indicator values.
const (
	CallSetupNone             uint8 = 0
	CallSetupIncoming         uint8 = 1
	CallSetupOutgoingDialing  uint8 = 2
	CallSetupOutgoingAlerting uint8 = 3
)

// Call held indicator values.
const (
	CallHeldNone          uint8 = 0
	CallHeldHeldAndActive uint8 = 1
	CallHeldOnHold        uint8 = 2
)

// Changes returns the indicators that differ between c and next, in the
// order call, callsetup, callheld. That order matches the sequence the
// profile expects when a call is answered or connects.
func (c CallIndicators) Changes(next CallIndicators) []Indicator {
	var out []Indicator
	if c.Call != next.Call {
		out = append(out, Indicator{Kind: IndicatorCall, Value: next.Call})
	}
	if c.CallSetup != next.CallSetup {
		out = append(out, Indicator{Kind: IndicatorCallSetup, Value: next.CallSetup})
	}
	if c.CallHeld != next.CallHeld {
		out = append(out, Indicator{Kind: IndicatorCallHeld, Value: next.CallHeld})
	}
	return out
}

// AgIndicators is the full indicator snapshot answered to AT+CIND?.
type AgIndicators struct {
	Service      uint8
	Signal       uint8
	Roam         uint8
	BatteryLevel uint8
	Calls        CallIndicators
}
