package hfp

import "fmt"

// UpdateKind classifies an [AgUpdate].
type UpdateKind int

const (
	UpdateIndicator UpdateKind = iota + 1
	UpdateCodecSetup
	UpdateOK
	UpdateError
	UpdateRing
	UpdateCallWaiting
	UpdateSpeakerGain
	UpdateMicrophoneGain
)

// String returns the kind name.
func (k UpdateKind) String() string {
	switch k {
	case UpdateIndicator:
		return "indicator"
	case UpdateCodecSetup:
		return "codec_setup"
	case UpdateOK:
		return "ok"
	case UpdateError:
		return "error"
	case UpdateRing:
		return "ring"
	case UpdateCallWaiting:
		return "call_waiting"
	case UpdateSpeakerGain:
		return "speaker_gain"
	case UpdateMicrophoneGain:
		return "microphone_gain"
	default:
		return "unknown"
	}
}

// AgUpdate is an unsolicited or procedure-driven message the gateway asks the
// signaling engine to deliver to the HF. Only the fields relevant to Kind are
// set.
type AgUpdate struct {
	Kind UpdateKind

	// Indicator is set for UpdateIndicator.
	Indicator Indicator

	// Codec is set for UpdateCodecSetup. Nil lets the engine pick the best
	// codec both sides support.
	Codec *CodecID

	// Number is the caller number for UpdateRing and UpdateCallWaiting.
	Number string

	// Gain is set for UpdateSpeakerGain and UpdateMicrophoneGain.
	Gain uint8
}

// String renders the update for logs.
func (u AgUpdate) String() string {
	switch u.Kind {
	case UpdateIndicator:
		return "indicator " + u.Indicator.String()
	case UpdateCodecSetup:
		if u.Codec == nil {
			return "codec_setup(auto)"
		}
		return "codec_setup(" + u.Codec.String() + ")"
	case UpdateSpeakerGain, UpdateMicrophoneGain:
		return fmt.Sprintf("%s(%d)", u.Kind, u.Gain)
	default:
		return u.Kind.String()
	}
}

// IndicatorUpdate wraps ind in an [AgUpdate].
func IndicatorUpdate(ind Indicator) AgUpdate { return AgUpdate{Kind: UpdateIndicator, Indicator: ind} }

// CodecSetup returns a codec-connection-setup update. A nil codec lets the
// signaling engine choose.
func CodecSetup(codec *CodecID) AgUpdate { return AgUpdate{Kind: UpdateCodecSetup, Codec: codec} }

// OK returns a bare OK acknowledgement.
func OK() AgUpdate { return AgUpdate{Kind: UpdateOK} }

// Ring returns an incoming-call alert for number.
func Ring(number string) AgUpdate { return AgUpdate{Kind: UpdateRing, Number: number} }

// CallWaiting returns a call-waiting notification for number.
func CallWaiting(number string) AgUpdate { return AgUpdate{Kind: UpdateCallWaiting, Number: number} }

// SpeakerGain returns a speaker gain update.
func SpeakerGain(level uint8) AgUpdate { return AgUpdate{Kind: UpdateSpeakerGain, Gain: level} }

// MicrophoneGain returns a microphone gain update.
func MicrophoneGain(level uint8) AgUpdate { return AgUpdate{Kind: UpdateMicrophoneGain, Gain: level} }
