package audio

import (
	"context"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

// PauseToken keeps a competing audio source paused until released.
type PauseToken interface {
	// Release resumes the paused source. It is safe to call more than once.
	Release()
}

// Pauser pauses competing local audio sources while a call owns the audio
// path. Pausing is best effort: callers log a failure and continue.
type Pauser interface {
	// Pause pauses whatever competes with peer's call audio. A nil token with
	// a nil error means nothing needed pausing.
	Pause(ctx context.Context, peer hfp.PeerID) (PauseToken, error)
}

// NopPauser never pauses anything.
type NopPauser struct{}

// Pause implements [Pauser].
func (NopPauser) Pause(context.Context, hfp.PeerID) (PauseToken, error) { return nil, nil }
