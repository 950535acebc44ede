package peer_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/internal/peer"
	audiomock "github.com/MrWong99/hfpag/pkg/audio/mock"
	"github.com/MrWong99/hfpag/pkg/bearer"
	bearermock "github.com/MrWong99/hfpag/pkg/bearer/mock"
	cmmock "github.com/MrWong99/hfpag/pkg/callmanager/mock"
	"github.com/MrWong99/hfpag/pkg/hfp"
	"github.com/MrWong99/hfpag/pkg/signaling"
	sigmock "github.com/MrWong99/hfpag/pkg/signaling/mock"
)

const (
	testPeer hfp.PeerID = "00:11:22:33:44:55"

	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var fullNetwork = hfp.NetworkInformation{
	ServiceAvailable: hfp.Bool(true),
	SignalStrength:   hfp.SignalHigh.Ptr(),
	Roaming:          hfp.Bool(false),
}

// harness runs one session against mock collaborators.
type harness struct {
	t       *testing.T
	eng     *sigmock.Engine
	profile *bearermock.Profile
	backend *audiomock.Backend
	pauser  *audiomock.Pauser
	remote  bearer.Channel
	h       *peer.Handle
}

type option func(*harness, *peer.Config)

func withConfig(fn func(*peer.Config)) option {
	return func(_ *harness, c *peer.Config) { fn(c) }
}

func withEngine(fn func(*sigmock.Engine)) option {
	return func(hs *harness, _ *peer.Config) { fn(hs.eng) }
}

// newHarness spawns a session. The signaling bearer is not attached yet.
func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	hs := &harness{
		t:       t,
		eng:     sigmock.NewEngine(),
		profile: &bearermock.Profile{},
		backend: audiomock.NewBackend(),
		pauser:  &audiomock.Pauser{},
	}
	hs.eng.IndicatorReporting = true
	hs.eng.CallWaitingNotifications = true

	cfg := peer.Config{
		Features:     hfp.AgFeatureThreeWayCalling | hfp.AgFeatureCodecNegotiation | hfp.AgFeatureHFIndicators,
		RingInterval: 20 * time.Millisecond,
	}
	for _, o := range opts {
		o(hs, &cfg)
	}

	h, err := peer.Spawn(t.Context(), testPeer, cfg, peer.Deps{
		Engine:  hs.eng,
		Profile: hs.profile,
		Backend: hs.backend,
		Pauser:  hs.pauser,
		Logger:  slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	hs.h = h
	t.Cleanup(func() {
		h.Close()
		<-h.Done()
	})
	return hs
}

// connected spawns a session and attaches a signaling bearer to it.
func connected(t *testing.T, opts ...option) *harness {
	t.Helper()
	hs := newHarness(t, opts...)
	local, remote := bearermock.NewChannel()
	hs.remote = remote
	t.Cleanup(func() { _ = remote.Close() })

	hs.send(peer.ProfileConnected{Channel: local})
	require.Eventually(t, hs.eng.Connected, waitFor, tick, "signaling never connected")
	require.Eventually(t, func() bool { return hs.backend.Connected(testPeer) }, waitFor, tick,
		"audio backend never connected")
	return hs
}

func (hs *harness) send(req peer.Request) {
	hs.t.Helper()
	require.NoError(hs.t, hs.h.Send(hs.t.Context(), req))
}

// stop shuts the session down and returns its result.
func (hs *harness) stop() peer.Result {
	hs.t.Helper()
	hs.send(peer.Shutdown{})
	return hs.h.Result()
}

// attach hands the session a call manager with a complete network snapshot
// and waits until it is in use.
func (hs *harness) attach() *cmmock.Manager {
	hs.t.Helper()
	initial := fullNetwork
	m := cmmock.NewManager(&initial)
	hs.send(peer.AttachCallManager{Manager: m})
	require.Eventually(hs.t, func() bool { return m.Gain() != nil }, waitFor, tick, "manager never attached")
	return m
}

// pushResult sends a request that answers with a [signaling.Result] and
// waits for the answer.
func (hs *harness) pushResult(mk func(respond func(signaling.Result)) signaling.Request) signaling.Result {
	hs.t.Helper()
	ch := make(chan signaling.Result, 1)
	hs.eng.Push(mk(func(r signaling.Result) { ch <- r }))
	select {
	case r := <-ch:
		return r
	case <-time.After(waitFor):
		hs.t.Fatal("request was never answered")
		return signaling.ResultError
	}
}

// updatesOf returns the delivered updates of kind.
func (hs *harness) updatesOf(kind hfp.UpdateKind) []hfp.AgUpdate {
	var out []hfp.AgUpdate
	for _, s := range hs.eng.Updates() {
		if s.Update.Kind == kind {
			out = append(out, s.Update)
		}
	}
	return out
}

func (hs *harness) hasIndicator(want hfp.Indicator) bool {
	for _, ind := range hs.eng.Indicators() {
		if ind == want {
			return true
		}
	}
	return false
}

func (hs *harness) started() bool { return hs.backend.Started(testPeer) }

func cvsdLink() *bearermock.Link {
	return bearermock.NewLink(hfp.ParamSets(hfp.CodecCVSD, false)[0])
}
