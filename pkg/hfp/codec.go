package hfp

import (
	"fmt"
	"time"
)

// CodecID is the codec identifier negotiated with AT+BCS.
type CodecID uint8

const (
	// CodecCVSD is the narrow-band baseline codec every HF supports.
	CodecCVSD CodecID = 1

	// CodecMSBC is the wide-band speech codec.
	CodecMSBC CodecID = 2

	// CodecLC3SWB is the super-wide-band codec introduced in HFP 1.9.
	CodecLC3SWB CodecID = 3
)

// String returns the conventional codec name.
func (c CodecID) String() string {
	switch c {
	case CodecCVSD:
		return "CVSD"
	case CodecMSBC:
		return "mSBC"
	case CodecLC3SWB:
		return "LC3-SWB"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// IsBaseline reports whether c is the mandatory fallback codec.
func (c CodecID) IsBaseline() bool { return c == CodecCVSD }

// Ptr returns a pointer to a copy of c. Handy when filling optional fields.
func (c CodecID) Ptr() *CodecID { return &c }

// DefaultCodecs is the codec set used when nothing has been negotiated yet.
var DefaultCodecs = []CodecID{CodecCVSD}

// Transport is the synchronous link flavour.
type Transport int

const (
	TransportSCO Transport = iota
	TransportESCO
)

// String returns "SCO" or "eSCO".
func (t Transport) String() string {
	if t == TransportESCO {
		return "eSCO"
	}
	return "SCO"
}

// CodecParams describes one synchronous connection parameter set from the
// profile's table (S1–S4, D0–D1, T1–T2). An SCO connect attempt is given an
// ordered list of sets and the controller tries them in turn.
type CodecParams struct {
	// Name is the parameter set label from the profile (e.g. "T2").
	Name string

	// Codec is the air codec carried by the link.
	Codec CodecID

	// Transport selects SCO or eSCO.
	Transport Transport

	// MaxLatency is the maximum link latency.
	MaxLatency time.Duration

	// RetransmissionEffort is 0 (none), 1 (power) or 2 (quality).
	RetransmissionEffort uint8

	// PacketTypes is the allowed packet-type mask for the link.
	PacketTypes uint16
}

var (
	paramsT2 = CodecParams{Name: "T2", Codec: CodecMSBC, Transport: TransportESCO, MaxLatency: 13 * time.Millisecond, RetransmissionEffort: 2, PacketTypes: 0x0008}
	paramsT1 = CodecParams{Name: "T1", Codec: CodecMSBC, Transport: TransportESCO, MaxLatency: 8 * time.Millisecond, RetransmissionEffort: 2, PacketTypes: 0x0008}
	paramsS4 = CodecParams{Name: "S4", Codec: CodecCVSD, Transport: TransportESCO, MaxLatency: 12 * time.Millisecond, RetransmissionEffort: 2, PacketTypes: 0x0008}
	paramsS1 = CodecParams{Name: "S1", Codec: CodecCVSD, Transport: TransportESCO, MaxLatency: 7 * time.Millisecond, RetransmissionEffort: 1, PacketTypes: 0x0008}
	paramsD1 = CodecParams{Name: "D1", Codec: CodecCVSD, Transport: TransportSCO, MaxLatency: 0xffff * time.Millisecond, RetransmissionEffort: 0, PacketTypes: 0x0004}
)

// ParamSets returns the ordered parameter sets to try for codec, best first.
// escoS4 reports whether both sides support the S4 setting for CVSD.
func ParamSets(codec CodecID, escoS4 bool) []CodecParams {
	switch codec {
	case CodecMSBC, CodecLC3SWB:
		t2, t1 := paramsT2, paramsT1
		t2.Codec, t1.Codec = codec, codec
		return []CodecParams{t2, t1}
	default:
		if escoS4 {
			return []CodecParams{paramsS4, paramsS1, paramsD1}
		}
		return []CodecParams{paramsS1, paramsD1}
	}
}
