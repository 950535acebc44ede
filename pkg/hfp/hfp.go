// Package hfp defines the value types shared by the Hands-Free Profile
// Audio-Gateway packages: peer identities, audio codecs and their SCO
// parameter sets, status indicators, call states and the outbound updates the
// gateway pushes to a headset.
//
// The types are deliberately plain values so they can be passed freely
// between the session goroutine and collaborator implementations without
// synchronisation. Encoding them into AT commands is the job of a signaling
// engine (see package signaling) and is not done here.
package hfp

import (
	"fmt"
	"strings"
)

// PeerID identifies a remote Hands-Free device by its Bluetooth address in
// canonical upper-case colon notation (e.g. "00:1A:7D:DA:71:13").
type PeerID string

// ParsePeerID normalises s into a [PeerID]. It accepts both colon and
// underscore separated addresses, the latter being the form used in BlueZ
// object paths.
func ParsePeerID(s string) (PeerID, error) {
	s = strings.ToUpper(strings.ReplaceAll(s, "_", ":"))
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return "", fmt.Errorf("hfp: invalid peer address %q", s)
	}
	for _, p := range parts {
		if len(p) != 2 {
			return "", fmt.Errorf("hfp: invalid peer address %q", s)
		}
		for _, c := range p {
			if !strings.ContainsRune("0123456789ABCDEF", c) {
				return "", fmt.Errorf("hfp: invalid peer address %q", s)
			}
		}
	}
	return PeerID(s), nil
}

// String returns the address form of the peer identifier.
func (p PeerID) String() string { return string(p) }

// AgFeatures is the bitmask of Audio-Gateway supported features reported to
// the HF in response to AT+BRSF.
type AgFeatures uint32

// Audio-Gateway feature bits, as assigned by the Hands-Free Profile.
const (
	AgFeatureThreeWayCalling AgFeatures = 1 << iota
	AgFeatureECNR
	AgFeatureVoiceRecognition
	AgFeatureInBandRing
	AgFeatureAttachVoiceTag
	AgFeatureRejectCall
	AgFeatureEnhancedCallStatus
	AgFeatureEnhancedCallControl
	AgFeatureExtendedErrors
	AgFeatureCodecNegotiation
	AgFeatureHFIndicators
	AgFeatureESCOS4
)

// Has reports whether all bits of want are set in f.
func (f AgFeatures) Has(want AgFeatures) bool { return f&want == want }

// HfIndicator identifies a Hands-Free indicator reported with AT+BIEV.
type HfIndicator uint16

const (
	// HfIndicatorEnhancedSafety reports whether the HF is in a driving-safety mode.
	HfIndicatorEnhancedSafety HfIndicator = 1

	// HfIndicatorBatteryLevel reports the HF battery level in percent (0–100).
	HfIndicatorBatteryLevel HfIndicator = 2
)

// String returns the human-readable name of the HF indicator.
func (i HfIndicator) String() string {
	switch i {
	case HfIndicatorEnhancedSafety:
		return "enhanced_safety"
	case HfIndicatorBatteryLevel:
		return "battery_level"
	default:
		return fmt.Sprintf("hf_indicator(%d)", uint16(i))
	}
}

// DtmfCode is a single DTMF tone: one of 0-9, *, #, A-D.
type DtmfCode byte

// Valid reports whether c is a legal DTMF tone.
func (c DtmfCode) Valid() bool {
	return strings.IndexByte("0123456789*#ABCD", byte(c)) >= 0
}

// MaxGain is the highest speaker or microphone gain level the profile allows.
const MaxGain = 15
