package peer

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audiomock "github.com/MrWong99/hfpag/pkg/audio/mock"
	bearermock "github.com/MrWong99/hfpag/pkg/bearer/mock"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

const guardPeer hfp.PeerID = "00:11:22:33:44:55"

func newGuardFixture(t *testing.T) (*audiomock.Backend, *audiomock.Pauser, *bearermock.Link) {
	t.Helper()
	backend := audiomock.NewBackend()
	require.NoError(t, backend.Connect(t.Context(), guardPeer, hfp.DefaultCodecs))
	return backend, &audiomock.Pauser{}, bearermock.NewLink(hfp.ParamSets(hfp.CodecCVSD, false)[0])
}

func TestAcquire_ReleasesOnceAfterLastClone(t *testing.T) {
	t.Parallel()

	backend, pauser, link := newGuardFixture(t)
	g, err := acquire(t.Context(), guardPeer, link, hfp.CodecCVSD, backend, pauser, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.True(t, backend.Started(guardPeer))
	assert.Equal(t, hfp.CodecCVSD, g.Codec())
	assert.Same(t, link, g.Link())

	clone := g.Clone()
	g.Release()
	g.Release()
	assert.True(t, backend.Started(guardPeer), "clone still holds the audio")
	assert.False(t, link.IsClosed())

	clone.Release()
	assert.False(t, backend.Started(guardPeer))
	assert.Equal(t, 1, backend.StopCount(guardPeer))
	assert.Equal(t, 1, link.CloseCount())
	require.Len(t, pauser.Issued(), 1)
	assert.Equal(t, 1, pauser.Issued()[0].Released())

	assert.Panics(t, func() { g.Clone() })
}

func TestAcquire_StartFailureClosesLink(t *testing.T) {
	t.Parallel()

	backend, pauser, link := newGuardFixture(t)
	backend.StartError = errors.New("device busy")

	g, err := acquire(t.Context(), guardPeer, link, hfp.CodecMSBC, backend, pauser, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.StartError)
	assert.Nil(t, g)
	assert.True(t, link.IsClosed())
	assert.Equal(t, 1, pauser.Issued()[0].Released())
}

func TestAcquire_PauseFailureIsTolerated(t *testing.T) {
	t.Parallel()

	backend, pauser, link := newGuardFixture(t)
	pauser.PauseError = errors.New("no media player")

	g, err := acquire(t.Context(), guardPeer, link, hfp.CodecCVSD, backend, pauser, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	g.Release()
	assert.True(t, link.IsClosed())
	assert.Equal(t, 1, backend.StopCount(guardPeer))
}

func TestGuard_DisarmSkipsStop(t *testing.T) {
	t.Parallel()

	backend, _, link := newGuardFixture(t)
	g, err := acquire(t.Context(), guardPeer, link, hfp.CodecCVSD, backend, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	g.disarm()
	g.Release()
	assert.Zero(t, backend.StopCount(guardPeer))
	assert.True(t, link.IsClosed())
}
