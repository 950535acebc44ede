package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/internal/config"
	"github.com/MrWong99/hfpag/pkg/audio"
	audiomock "github.com/MrWong99/hfpag/pkg/audio/mock"
)

func TestRegistry_Backend(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	want := audiomock.NewBackend()
	var gotEntry config.BackendEntry
	r.RegisterBackend("loopback", func(e config.BackendEntry) (audio.Backend, error) {
		gotEntry = e
		return want, nil
	})

	entry := config.BackendEntry{Name: "loopback", Options: map[string]any{"latency": "20ms"}}
	b, err := r.CreateBackend(entry)
	require.NoError(t, err)
	assert.Same(t, want, b)
	assert.Equal(t, "20ms", gotEntry.Options["latency"])
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	_, err := r.CreateBackend(config.BackendEntry{Name: "pipewire"})
	assert.ErrorIs(t, err, config.ErrNotRegistered)
	_, err = r.CreatePauser(config.BackendEntry{Name: "mpris"})
	assert.ErrorIs(t, err, config.ErrNotRegistered)
}

func TestRegistry_DefaultPauser(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	p, err := r.CreatePauser(config.BackendEntry{})
	require.NoError(t, err)
	assert.IsType(t, audio.NopPauser{}, p)
}
