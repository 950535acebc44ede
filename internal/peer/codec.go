package peer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/hfpag/internal/observe"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// negotiate starts a codec connection procedure. codec forces a codec; nil
// offers the last negotiated one, or lets the engine pick. An HF without
// codec negotiation gets a CVSD link right away.
func (s *Session) negotiate(ctx context.Context, codec *hfp.CodecID) {
	s.setupStart = time.Now()
	if !s.engine.CodecNegotiationSupported() {
		s.connectDirect(ctx)
		return
	}
	if codec == nil {
		if c, ok := s.engine.SelectedCodec(); ok {
			codec = c.Ptr()
		}
	}
	s.log.Debug("peer: codec connection setup", "codec", codecName(codec))
	if !s.send(ctx, signaling.MarkerCodecConnectionSetup, hfp.CodecSetup(codec)) {
		// Nothing will confirm the procedure; the next sync pass retries.
		s.log.Info("peer: codec connection setup not delivered", "codec", codecName(codec))
		s.setSco(ctx, scoState{kind: ScoInactive})
		s.setupStart = time.Time{}
		s.answerParked(signaling.ResultError)
	}
}

// connectDirect brings up a CVSD link without a codec procedure.
func (s *Session) connectDirect(ctx context.Context) {
	link, err := s.profile.ConnectSCO(ctx, s.peer, hfp.ParamSets(hfp.CodecCVSD, s.escoS4()))
	if err != nil {
		s.log.Warn("peer: connect sco failed", "codec", hfp.CodecCVSD, "err", err)
		s.setSco(ctx, scoState{kind: ScoInactive})
		return
	}
	if err := s.activate(ctx, link, hfp.CodecCVSD); err != nil {
		s.log.Warn("peer: sco setup abandoned", "err", err)
	}
}

// handleScoSetup answers the HF's codec confirmation. The acknowledgement
// goes out before the link is attempted; the request's own response reports
// whether the link came up. If a non-baseline codec is rejected, the
// procedure restarts once with CVSD and the response waits for that outcome.
func (s *Session) handleScoSetup(ctx context.Context, req signaling.SynchronousConnectionSetup) string {
	ctx, span := observe.StartSpan(ctx, "peer.sco_setup", trace.WithAttributes(
		attribute.String("peer", s.peer.String()),
		attribute.String("codec", req.Selected.String()),
	))
	defer span.End()
	log := observe.WithTrace(ctx, s.log)

	if s.sco.kind == ScoActive {
		log.Info("peer: superseding active sco link")
		s.setSco(ctx, scoState{kind: ScoSettingUp})
	}

	s.send(ctx, signaling.MarkerCodecConnectionSetup, hfp.OK())

	link, err := s.profile.ConnectSCO(ctx, s.peer, hfp.ParamSets(req.Selected, s.escoS4()))
	if err != nil {
		span.RecordError(err)
		if !req.Selected.IsBaseline() && !s.fellBack {
			log.Info("peer: codec rejected, falling back", "codec", req.Selected, "err", err)
			s.metrics.RecordCodecFallback(ctx, req.Selected.String())
			s.fellBack = true
			s.parked = append(s.parked, req.Respond)
			s.negotiate(ctx, hfp.CodecCVSD.Ptr())
			return "deferred"
		}
		log.Warn("peer: connect sco failed", "codec", req.Selected, "err", err)
		if s.sco.kind == ScoSettingUp {
			s.setSco(ctx, scoState{kind: ScoInactive})
		}
		s.respondSetup(req.Respond, signaling.ResultError)
		return signaling.ResultError.String()
	}

	if err := s.activate(ctx, link, req.Selected); err != nil {
		span.RecordError(err)
		log.Warn("peer: sco setup abandoned", "err", err)
		s.respondSetup(req.Respond, signaling.ResultError)
		return signaling.ResultError.String()
	}
	s.respondSetup(req.Respond, signaling.ResultOK)
	return signaling.ResultOK.String()
}

// activate hands a fresh link to a guard and moves to ScoActive. On error the
// link is closed and the SCO state is left as it was.
func (s *Session) activate(ctx context.Context, link bearer.Link, codec hfp.CodecID) error {
	g, err := acquire(ctx, s.peer, link, codec, s.backend, s.pauser, s.log)
	if err != nil {
		return err
	}
	s.setSco(ctx, scoState{kind: ScoActive, guard: g})
	if !s.setupStart.IsZero() {
		s.metrics.RecordScoSetup(ctx, time.Since(s.setupStart), codec.String())
		s.setupStart = time.Time{}
	}
	s.log.Info("peer: sco link active", "codec", codec, "params", link.Params().Name)
	return nil
}

// respondSetup answers respond and every response parked by a fallback.
func (s *Session) respondSetup(respond func(signaling.Result), res signaling.Result) {
	respond(res)
	s.answerParked(res)
}

func (s *Session) answerParked(res signaling.Result) {
	parked := s.parked
	s.parked = nil
	for _, r := range parked {
		r(res)
	}
}

// handleRestartCodecSetup acknowledges the HF's request and starts a fresh
// codec procedure unless a link is already up.
func (s *Session) handleRestartCodecSetup(ctx context.Context, req signaling.RestartCodecConnectionSetup) {
	req.Respond(signaling.ResultOK)
	if s.sco.kind == ScoActive {
		return
	}
	s.setSco(ctx, scoState{kind: ScoSettingUp})
	s.fellBack = false
	s.negotiate(ctx, nil)
}

// handleScoRelease drops the active link and moves call audio to the
// gateway.
func (s *Session) handleScoRelease(ctx context.Context, req signaling.SynchronousConnectionRelease) signaling.Result {
	if s.sco.kind != ScoActive {
		req.Respond(signaling.ResultError)
		return signaling.ResultError
	}
	s.setSco(ctx, scoState{kind: ScoTearingDown})
	if call, ok := s.calls.Active(); ok && s.manager != nil {
		if err := call.Handle.RequestTransferAudio(ctx); err != nil {
			s.log.Warn("peer: transfer audio to gateway failed", "call", call.Index, "err", err)
			s.metrics.RecordCallManagerError(ctx, "transfer_audio")
		}
	}
	req.Respond(signaling.ResultOK)
	return signaling.ResultOK
}

func codecName(c *hfp.CodecID) string {
	if c == nil {
		return "auto"
	}
	return c.String()
}
