package signaling

import "github.com/MrWong99/hfpag/pkg/hfp"

// Result is the outcome of a procedure, reported back to the HF as OK or
// ERROR.
type Result int

const (
	ResultOK Result = iota
	ResultError
)

// String returns "OK" or "ERROR".
func (r Result) String() string {
	if r == ResultOK {
		return "OK"
	}
	return "ERROR"
}

// ResultOf collapses ok into a [Result].
func ResultOf(ok bool) Result {
	if ok {
		return ResultOK
	}
	return ResultError
}

// Request is a decoded procedure request from the HF. The concrete types in
// this file are the complete set; a session switches on them.
type Request interface {
	// Name returns a short stable identifier used in logs and metrics.
	Name() string
}

// GetAgFeatures asks for the AG supported features (AT+BRSF).
type GetAgFeatures struct {
	Respond func(hfp.AgFeatures)
}

// GetAgIndicatorStatus asks for the current indicator values (AT+CIND?).
type GetAgIndicatorStatus struct {
	Respond func(hfp.AgIndicators)
}

// GetNetworkOperatorName asks for the operator name (AT+COPS?). ok is false
// when no name is available.
type GetNetworkOperatorName struct {
	Respond func(name string, ok bool)
}

// GetSubscriberNumbers asks for the subscriber numbers (AT+CNUM).
type GetSubscriberNumbers struct {
	Respond func(numbers []string)
}

// SendDtmf asks the AG to generate a DTMF tone (AT+VTS).
type SendDtmf struct {
	Code    hfp.DtmfCode
	Respond func(Result)
}

// SendHfIndicator reports an HF indicator value (AT+BIEV).
type SendHfIndicator struct {
	Indicator hfp.HfIndicator
	Value     int
	Respond   func()
}

// SetNrec toggles noise reduction and echo cancellation on the AG (AT+NREC).
type SetNrec struct {
	Enable  bool
	Respond func(Result)
}

// SpeakerVolumeSync reports the HF speaker gain (AT+VGS).
type SpeakerVolumeSync struct {
	Level   uint8
	Respond func()
}

// MicrophoneVolumeSync reports the HF microphone gain (AT+VGM).
type MicrophoneVolumeSync struct {
	Level   uint8
	Respond func()
}

// QueryCurrentCalls asks for the current call list (AT+CLCC).
type QueryCurrentCalls struct {
	Respond func([]hfp.CallInfo)
}

// Answer answers the incoming call (ATA).
type Answer struct {
	Respond func(Result)
}

// HangUp terminates the current call or rejects the incoming one (AT+CHUP).
type HangUp struct {
	Respond func(Result)
}

// Hold performs a call-hold action (AT+CHLD).
type Hold struct {
	Action  hfp.HoldAction
	Respond func(Result)
}

// InitiateOutgoingCall places a new call (ATD, ATD>, AT+BLDN).
type InitiateOutgoingCall struct {
	Action  hfp.CallAction
	Respond func(Result)
}

// SynchronousConnectionSetup is the HF confirming the codec selected in a
// codec connection procedure (AT+BCS). The AG acknowledges, then sets up the
// audio link; Respond reports whether the link came up.
type SynchronousConnectionSetup struct {
	Selected hfp.CodecID
	Respond  func(Result)
}

// SynchronousConnectionRelease asks the AG to release the audio link and
// route call audio to the gateway.
type SynchronousConnectionRelease struct {
	Respond func(Result)
}

// RestartCodecConnectionSetup is the HF asking the AG to start a codec
// connection procedure (AT+BCC).
type RestartCodecConnectionSetup struct {
	Respond func(Result)
}

func (GetAgFeatures) Name() string                { return "get_ag_features" }
func (GetAgIndicatorStatus) Name() string         { return "get_ag_indicator_status" }
func (GetNetworkOperatorName) Name() string       { return "get_network_operator_name" }
func (GetSubscriberNumbers) Name() string         { return "get_subscriber_numbers" }
func (SendDtmf) Name() string                     { return "send_dtmf" }
func (SendHfIndicator) Name() string              { return "send_hf_indicator" }
func (SetNrec) Name() string                      { return "set_nrec" }
func (SpeakerVolumeSync) Name() string            { return "speaker_volume_sync" }
func (MicrophoneVolumeSync) Name() string         { return "microphone_volume_sync" }
func (QueryCurrentCalls) Name() string            { return "query_current_calls" }
func (Answer) Name() string                       { return "answer" }
func (HangUp) Name() string                       { return "hang_up" }
func (Hold) Name() string                         { return "hold" }
func (InitiateOutgoingCall) Name() string         { return "initiate_outgoing_call" }
func (SynchronousConnectionSetup) Name() string   { return "synchronous_connection_setup" }
func (SynchronousConnectionRelease) Name() string { return "synchronous_connection_release" }
func (RestartCodecConnectionSetup) Name() string  { return "restart_codec_connection_setup" }
