package peer

import (
	"context"

	"github.com/MrWong99/hfpag/internal/calls"
	"github.com/MrWong99/hfpag/internal/indicators"
	"github.com/MrWong99/hfpag/pkg/callmanager"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// dispatch handles one HF request and answers its continuation. Call-manager
// failures never leave this function as errors; they are logged and
// reported to the HF as ERROR or an empty answer.
func (s *Session) dispatch(ctx context.Context, req signaling.Request) {
	result := signaling.ResultOK.String()
	respond := func(r signaling.Result, fn func(signaling.Result)) {
		result = r.String()
		fn(r)
	}

	switch r := req.(type) {
	case signaling.GetAgFeatures:
		r.Respond(s.cfg.Features)

	case signaling.GetAgIndicatorStatus:
		r.Respond(indicators.Status(s.network.Snapshot(), s.battery, s.calls.Indicators()))

	case signaling.GetNetworkOperatorName:
		name, ok := s.operatorName(ctx)
		r.Respond(name, ok)

	case signaling.GetSubscriberNumbers:
		r.Respond(s.subscriberNumbers(ctx))

	case signaling.SendDtmf:
		respond(s.managerOp(ctx, "send_dtmf", func(m callmanager.Manager) error {
			return m.SendDTMF(ctx, r.Code)
		}), r.Respond)

	case signaling.SendHfIndicator:
		s.handleHfIndicator(ctx, r.Indicator, r.Value)
		r.Respond()

	case signaling.SetNrec:
		respond(s.managerOp(ctx, "set_nrec", func(m callmanager.Manager) error {
			return m.SetNRECMode(ctx, r.Enable)
		}), r.Respond)

	case signaling.SpeakerVolumeSync:
		s.gain.reportSpeaker(r.Level)
		r.Respond()

	case signaling.MicrophoneVolumeSync:
		s.gain.reportMicrophone(r.Level)
		r.Respond()

	case signaling.QueryCurrentCalls:
		r.Respond(s.calls.Current())

	case signaling.Answer:
		steps, err := s.calls.Answer()
		respond(s.runSteps(ctx, "answer", steps, err), r.Respond)

	case signaling.HangUp:
		steps, err := s.calls.HangUp()
		respond(s.runSteps(ctx, "hang_up", steps, err), r.Respond)

	case signaling.Hold:
		steps, err := s.calls.Hold(r.Action)
		respond(s.runSteps(ctx, "hold", steps, err), r.Respond)

	case signaling.InitiateOutgoingCall:
		respond(s.outgoingCall(ctx, r.Action), r.Respond)

	case signaling.SynchronousConnectionSetup:
		result = s.handleScoSetup(ctx, r)

	case signaling.SynchronousConnectionRelease:
		result = s.handleScoRelease(ctx, r).String()

	case signaling.RestartCodecConnectionSetup:
		s.handleRestartCodecSetup(ctx, r)

	default:
		s.log.Warn("peer: unhandled signaling request", "request", req.Name())
		result = "unhandled"
	}

	s.metrics.RecordSignalingRequest(ctx, req.Name(), result)
}

// managerOp runs a one-shot call-manager operation and collapses its outcome.
func (s *Session) managerOp(ctx context.Context, op string, fn func(callmanager.Manager) error) signaling.Result {
	if s.manager == nil {
		s.log.Info("peer: no call manager", "op", op)
		return signaling.ResultError
	}
	if err := fn(s.manager.mgr); err != nil {
		s.log.Warn("peer: call manager operation failed", "op", op, "err", err)
		s.metrics.RecordCallManagerError(ctx, op)
		return signaling.ResultError
	}
	return signaling.ResultOK
}

// runSteps carries out a call-control plan in order, stopping at the first
// failure.
func (s *Session) runSteps(ctx context.Context, op string, steps []calls.Step, planErr error) signaling.Result {
	if planErr != nil {
		s.log.Info("peer: call control rejected", "op", op, "err", planErr)
		return signaling.ResultError
	}
	for _, st := range steps {
		var err error
		switch st.Op {
		case calls.OpActivate:
			err = st.Call.Handle.RequestActive(ctx)
		case calls.OpHold:
			err = st.Call.Handle.RequestHold(ctx)
		case calls.OpTerminate:
			err = st.Call.Handle.RequestTerminate(ctx)
		}
		if err != nil {
			s.log.Warn("peer: call control failed",
				"op", op,
				"step", st.Op,
				"call", st.Call.Index,
				"err", err)
			s.metrics.RecordCallManagerError(ctx, op)
			return signaling.ResultError
		}
	}
	return signaling.ResultOK
}

// outgoingCall places a new call. An active call is put on hold first when
// the HF supports three-way calling; otherwise the request is refused.
func (s *Session) outgoingCall(ctx context.Context, action hfp.CallAction) signaling.Result {
	if s.calls.IsCallActive() {
		if !s.engine.ThreeWayCallingSupported() {
			s.log.Info("peer: outgoing call refused, call in progress without three-way calling")
			return signaling.ResultError
		}
		if res := s.runSteps(ctx, "hold_for_outgoing", s.calls.HoldActive(), nil); res != signaling.ResultOK {
			return res
		}
	}
	return s.managerOp(ctx, "outgoing_call", func(m callmanager.Manager) error {
		return m.RequestOutgoingCall(ctx, action)
	})
}

func (s *Session) operatorName(ctx context.Context) (string, bool) {
	if s.manager == nil || !s.engine.OperatorNameFormatReady() {
		return "", false
	}
	name, err := s.manager.mgr.QueryOperator(ctx)
	if err != nil {
		s.log.Warn("peer: query operator failed", "err", err)
		s.metrics.RecordCallManagerError(ctx, "query_operator")
		return "", false
	}
	return name, name != ""
}

func (s *Session) subscriberNumbers(ctx context.Context) []string {
	if s.manager == nil {
		return nil
	}
	nums, err := s.manager.mgr.SubscriberNumbers(ctx)
	if err != nil {
		s.log.Warn("peer: subscriber numbers failed", "err", err)
		s.metrics.RecordCallManagerError(ctx, "subscriber_numbers")
		return nil
	}
	return nums
}

// handleHfIndicator mirrors an HF indicator report. Headset battery levels
// are passed on to the call manager.
func (s *Session) handleHfIndicator(ctx context.Context, ind hfp.HfIndicator, value int) {
	s.hfIndicators[ind] = value
	if ind != hfp.HfIndicatorBatteryLevel || s.manager == nil {
		return
	}
	percent := uint8(min(max(value, 0), 100))
	s.manager.mgr.ReportHeadsetBatteryLevel(ctx, s.peer, percent)
}
