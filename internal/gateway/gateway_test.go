package gateway_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/internal/config"
	"github.com/MrWong99/hfpag/internal/gateway"
	"github.com/MrWong99/hfpag/pkg/audio"
	audiomock "github.com/MrWong99/hfpag/pkg/audio/mock"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/bearer/bluez"
	bearermock "github.com/MrWong99/hfpag/pkg/bearer/mock"
	cmmock "github.com/MrWong99/hfpag/pkg/callmanager/mock"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
	sigmock "github.com/MrWong99/hfpag/pkg/signaling/mock"
)

const (
	peerA hfp.PeerID = "00:11:22:33:44:55"
	peerB hfp.PeerID = "66:77:88:99:AA:BB"

	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// engines hands out one mock engine per peer.
type engines struct {
	mu    sync.Mutex
	byKey map[hfp.PeerID]*sigmock.Engine
}

func (e *engines) factory(p hfp.PeerID, _ hfp.AgFeatures) signaling.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	eng := sigmock.NewEngine()
	eng.IndicatorReporting = true
	e.byKey[p] = eng
	return eng
}

func (e *engines) get(p hfp.PeerID) *sigmock.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.byKey[p]
}

type fixture struct {
	gw      *gateway.Gateway
	engines *engines
	profile *bearermock.Profile
	backend *audiomock.Backend
	level   *slog.LevelVar
}

func newFixture(t *testing.T, cfg config.GatewayConfig) *fixture {
	t.Helper()
	f := &fixture{
		engines: &engines{byKey: make(map[hfp.PeerID]*sigmock.Engine)},
		profile: &bearermock.Profile{},
		backend: audiomock.NewBackend(),
		level:   new(slog.LevelVar),
	}
	gw, err := gateway.New(cfg, gateway.Deps{
		Profile:   f.profile,
		Backend:   f.backend,
		NewEngine: f.engines.factory,
		Level:     f.level,
		Logger:    slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	f.gw = gw
	t.Cleanup(gw.Shutdown)
	return f
}

// connect opens a signaling bearer for p and waits until its session uses it.
func (f *fixture) connect(t *testing.T, p hfp.PeerID) *sigmock.Engine {
	t.Helper()
	local, remote := bearermock.NewChannel()
	t.Cleanup(func() { _ = remote.Close() })
	require.NoError(t, f.gw.Connected(t.Context(), p, local))
	require.Eventually(t, func() bool {
		eng := f.engines.get(p)
		return eng != nil && eng.Connected()
	}, waitFor, tick, "session never connected")
	return f.engines.get(p)
}

func TestNew_RequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := gateway.New(config.GatewayConfig{}, gateway.Deps{Backend: audiomock.NewBackend()})
	assert.Error(t, err)
}

func TestGateway_ConnectedStartsOneSessionPerPeer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	f.connect(t, peerA)
	f.connect(t, peerB)

	assert.Equal(t, []hfp.PeerID{peerA, peerB}, f.gw.Sessions())
	assert.True(t, f.backend.Connected(peerA))
	assert.True(t, f.backend.Connected(peerB))
}

func TestGateway_Disconnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	f.connect(t, peerA)

	require.NoError(t, f.gw.Disconnect(t.Context(), peerA))
	require.Eventually(t, func() bool { return len(f.gw.Sessions()) == 0 }, waitFor, tick)
	assert.Eventually(t, func() bool { return !f.backend.Connected(peerA) }, waitFor, tick)

	assert.NoError(t, f.gw.Disconnect(t.Context(), peerA), "unknown peers are not an error")
}

func TestGateway_ReconnectAfterSessionEnded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	first := f.connect(t, peerA)
	first.Terminate(nil)
	require.Eventually(t, func() bool { return len(f.gw.Sessions()) == 0 }, waitFor, tick)

	second := f.connect(t, peerA)
	assert.NotSame(t, first, second)
	assert.Equal(t, []hfp.PeerID{peerA}, f.gw.Sessions())
}

func TestGateway_SetBatteryPercent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	a := f.connect(t, peerA)
	b := f.connect(t, peerB)

	f.gw.SetBatteryPercent(t.Context(), 100)

	for _, eng := range []*sigmock.Engine{a, b} {
		assert.Eventually(t, func() bool {
			for _, ind := range eng.Indicators() {
				if ind == hfp.BatteryLevel(5) {
					return true
				}
			}
			return false
		}, waitFor, tick)
	}
}

func TestGateway_AttachCallManager(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	f.connect(t, peerA)

	m := cmmock.NewManager(&hfp.NetworkInformation{
		ServiceAvailable: hfp.Bool(true),
		SignalStrength:   hfp.SignalHigh.Ptr(),
		Roaming:          hfp.Bool(false),
	})
	require.NoError(t, f.gw.AttachCallManager(t.Context(), peerA, "modem0", m))
	assert.Eventually(t, func() bool { return m.Gain() != nil }, waitFor, tick)
}

func TestGateway_SearchResultFollowsBehavior(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	params := bearer.ConnectParams{RFCOMMChannel: 5}

	require.NoError(t, f.gw.SearchResult(t.Context(), peerA, params))
	require.Eventually(t, func() bool { return len(f.gw.Sessions()) == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return len(f.profile.Connects()) > 0 }, 50*time.Millisecond, tick)

	local, remote := bearermock.NewChannel()
	t.Cleanup(func() { _ = remote.Close() })
	f.profile.ConnectResult = local

	oldCfg := &config.Config{}
	newCfg := &config.Config{Gateway: config.GatewayConfig{Autoconnect: true}}
	f.gw.ApplyConfig(oldCfg, newCfg, config.Diff(oldCfg, newCfg))

	require.NoError(t, f.gw.SearchResult(t.Context(), peerA, params))
	require.Eventually(t, func() bool {
		eng := f.engines.get(peerA)
		return eng != nil && eng.Connected()
	}, waitFor, tick)
	assert.Equal(t, params, f.profile.Connects()[0].Params)
}

func TestGateway_ApplyConfigLogLevel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	oldCfg := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	newCfg := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	f.gw.ApplyConfig(oldCfg, newCfg, config.Diff(oldCfg, newCfg))
	assert.Equal(t, slog.LevelDebug, f.level.Level())
}

func TestGateway_RunRoutesIncomingAndBackendEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	incoming := make(chan bluez.Incoming, 1)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- f.gw.Run(ctx, incoming) }()

	local, remote := bearermock.NewChannel()
	t.Cleanup(func() { _ = remote.Close() })
	incoming <- bluez.Incoming{Peer: peerA, Channel: local}
	require.Eventually(t, func() bool {
		eng := f.engines.get(peerA)
		return eng != nil && eng.Connected()
	}, waitFor, tick)

	// Events for peers without a session are dropped, not turned into
	// sessions.
	f.backend.Emit(audio.Event{Peer: peerB, Kind: audio.EventStopped})
	assert.Never(t, func() bool { return len(f.gw.Sessions()) > 1 }, 50*time.Millisecond, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, f.gw.Sessions())

	local2, remote2 := bearermock.NewChannel()
	t.Cleanup(func() { _ = remote2.Close() })
	assert.ErrorIs(t, f.gw.Connected(t.Context(), peerB, local2), gateway.ErrClosed)
}

func TestGateway_RunStopsWhenBackendCloses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	f.backend.Close()
	assert.Error(t, f.gw.Run(t.Context(), nil))
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	backend := audiomock.NewBackend()
	reg.RegisterBackend("loopback", func(config.BackendEntry) (audio.Backend, error) { return backend, nil })

	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogWarn},
		Audio:  config.AudioConfig{Backend: config.BackendEntry{Name: "loopback"}},
	}
	level := new(slog.LevelVar)
	eng := &engines{byKey: make(map[hfp.PeerID]*sigmock.Engine)}
	gw, err := gateway.NewFromConfig(cfg, reg, gateway.Deps{
		Profile:   &bearermock.Profile{},
		NewEngine: eng.factory,
		Level:     level,
		Logger:    slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(gw.Shutdown)
	assert.Equal(t, slog.LevelWarn, level.Level())

	cfg.Audio.Backend.Name = "pipewire"
	_, err = gateway.NewFromConfig(cfg, reg, gateway.Deps{Profile: &bearermock.Profile{}, NewEngine: eng.factory})
	assert.ErrorIs(t, err, config.ErrNotRegistered)
}
