package peer

import (
	"context"
	"sync/atomic"

	"github.com/MrWong99/hfpag/pkg/callmanager"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
)

// gainEvent is a gain change requested by the call manager.
type gainEvent struct {
	microphone bool
	level      uint8
}

// gainControl is the session's side of the call manager gain channel. The
// manager calls it from its own goroutines; requests are handed to the loop
// through events. The mirrored levels are what the headset last reported.
type gainControl struct {
	speaker    atomic.Uint32
	microphone atomic.Uint32

	events chan gainEvent
	done   <-chan struct{}
}

var _ callmanager.GainEndpoint = (*gainControl)(nil)

func newGainControl(done <-chan struct{}) *gainControl {
	return &gainControl{events: make(chan gainEvent), done: done}
}

// SetSpeakerGain implements [callmanager.GainEndpoint].
func (g *gainControl) SetSpeakerGain(level uint8) { g.post(gainEvent{level: level}) }

// SetMicrophoneGain implements [callmanager.GainEndpoint].
func (g *gainControl) SetMicrophoneGain(level uint8) {
	g.post(gainEvent{microphone: true, level: level})
}

// SpeakerGain implements [callmanager.GainEndpoint].
func (g *gainControl) SpeakerGain() uint8 { return uint8(g.speaker.Load()) }

// MicrophoneGain implements [callmanager.GainEndpoint].
func (g *gainControl) MicrophoneGain() uint8 { return uint8(g.microphone.Load()) }

// post blocks until the loop takes ev or the session is gone.
func (g *gainControl) post(ev gainEvent) {
	ev.level = min(ev.level, hfp.MaxGain)
	select {
	case g.events <- ev:
	case <-g.done:
	}
}

func (g *gainControl) reportSpeaker(level uint8) {
	g.speaker.Store(uint32(min(level, hfp.MaxGain)))
}

func (g *gainControl) reportMicrophone(level uint8) {
	g.microphone.Store(uint32(min(level, hfp.MaxGain)))
}

func (s *Session) handleGain(ctx context.Context, ev gainEvent) {
	if ev.microphone {
		s.send(ctx, signaling.MarkerVolumeSynchronization, hfp.MicrophoneGain(ev.level))
		s.gain.reportMicrophone(ev.level)
		return
	}
	s.send(ctx, signaling.MarkerVolumeSynchronization, hfp.SpeakerGain(ev.level))
	s.gain.reportSpeaker(ev.level)
}
