package app_test

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/internal/app"
	"github.com/MrWong99/hfpag/internal/config"
	"github.com/MrWong99/hfpag/internal/gateway"
	"github.com/MrWong99/hfpag/pkg/audio"
	audiomock "github.com/MrWong99/hfpag/pkg/audio/mock"
	"github.com/MrWong99/hfpag/pkg/bearer/bluez"
	bearermock "github.com/MrWong99/hfpag/pkg/bearer/mock"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
	sigmock "github.com/MrWong99/hfpag/pkg/signaling/mock"
)

const (
	testPeer hfp.PeerID = "00:11:22:33:44:55"

	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

const initialYAML = `
server:
  log_level: info
  admin_addr: 127.0.0.1:0
gateway:
  features:
    codec_negotiation: true
audio:
  backend:
    name: loopback
`

const reloadedYAML = `
server:
  log_level: debug
  admin_addr: 127.0.0.1:0
gateway:
  features:
    codec_negotiation: true
audio:
  backend:
    name: loopback
`

func testRegistry(b audio.Backend) *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterBackend("loopback", func(config.BackendEntry) (audio.Backend, error) { return b, nil })
	return reg
}

func testDeps(level *slog.LevelVar) gateway.Deps {
	return gateway.Deps{
		Profile: &bearermock.Profile{},
		NewEngine: func(hfp.PeerID, hfp.AgFeatures) signaling.Engine {
			return sigmock.NewEngine()
		},
		Level:  level,
		Logger: slog.New(slog.DiscardHandler),
	}
}

// writeConfig writes content to path and moves its mtime forward so the
// watcher notices even on coarse-grained filesystems.
func writeConfig(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestApp_RunServesAdminAndReloadsConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hfpag.yaml")
	writeConfig(t, path, initialYAML, time.Now().Add(-time.Hour))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	level := new(slog.LevelVar)
	incoming := make(chan bluez.Incoming, 1)
	a, err := app.New(t.Context(), cfg, testRegistry(audiomock.NewBackend()), testDeps(level),
		app.WithConfigPath(path, 20*time.Millisecond),
		app.WithIncoming(incoming),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	require.NotEmpty(t, a.AdminAddr())
	assert.Equal(t, slog.LevelInfo, level.Level())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://" + a.AdminAddr()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, waitFor, tick)

	local, remote := bearermock.NewChannel()
	t.Cleanup(func() { _ = remote.Close() })
	incoming <- bluez.Incoming{Peer: testPeer, Channel: local}
	require.Eventually(t, func() bool {
		return len(a.Gateway().Sessions()) == 1
	}, waitFor, tick)

	writeConfig(t, path, reloadedYAML, time.Now())
	require.Eventually(t, func() bool { return level.Level() == slog.LevelDebug }, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, a.Gateway().Sessions())

	_, err = http.Get(url + "/healthz")
	assert.Error(t, err, "admin endpoint still serving after Run")
}

func TestApp_WithoutAdmin(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Audio: config.AudioConfig{Backend: config.BackendEntry{Name: "loopback"}}}
	backend := audiomock.NewBackend()
	a, err := app.New(t.Context(), cfg, testRegistry(backend), testDeps(nil))
	require.NoError(t, err)
	assert.Empty(t, a.AdminAddr())

	backend.Close()
	assert.Error(t, a.Run(t.Context()), "backend event stream closed")
	assert.NoError(t, a.Shutdown(context.Background()))
	assert.NoError(t, a.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *config.Config
		opts []app.Option
	}{
		{
			name: "unknown backend",
			cfg:  &config.Config{Audio: config.AudioConfig{Backend: config.BackendEntry{Name: "pipewire"}}},
		},
		{
			name: "missing config file",
			cfg:  &config.Config{Audio: config.AudioConfig{Backend: config.BackendEntry{Name: "loopback"}}},
			opts: []app.Option{app.WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml"), 0)},
		},
		{
			name: "bad admin address",
			cfg: &config.Config{
				Server: config.ServerConfig{AdminAddr: "not-an-address"},
				Audio:  config.AudioConfig{Backend: config.BackendEntry{Name: "loopback"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := app.New(t.Context(), tt.cfg, testRegistry(audiomock.NewBackend()), testDeps(nil), tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestShutdown_DeadlineExceeded(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Audio: config.AudioConfig{Backend: config.BackendEntry{Name: "loopback"}}}
	a, err := app.New(t.Context(), cfg, testRegistry(audiomock.NewBackend()), testDeps(nil))
	require.NoError(t, err)
	t.Cleanup(a.Gateway().Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Shutdown(ctx), context.Canceled)
}
