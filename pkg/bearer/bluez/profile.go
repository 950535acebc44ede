//go:build linux

// Package bluez implements [bearer.Connector] on top of the BlueZ D-Bus
// profile API.
//
// A [Profile] exports an org.bluez.Profile1 object for the Hands-Free Audio
// Gateway service and registers it with org.bluez.ProfileManager1. BlueZ then
// hands over RFCOMM sockets through NewConnection, both for connections the
// gateway initiates with [Profile.Connect] and for connections the HF opens
// on its own, which are delivered on [Profile.Incoming].
//
// Synchronous audio links are not handled here; BlueZ does not expose SCO
// sockets through the profile API.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	dbus "github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

const (
	bluezService        = "org.bluez"
	profileIface        = "org.bluez.Profile1"
	profileManagerIface = "org.bluez.ProfileManager1"
	deviceIface         = "org.bluez.Device1"

	// AudioGatewayUUID is the Hands-Free Audio Gateway service class.
	AudioGatewayUUID = "0000111f-0000-1000-8000-00805f9b34fb"

	// HandsFreeUUID is the Hands-Free unit service class.
	HandsFreeUUID = "0000111e-0000-1000-8000-00805f9b34fb"

	// profileVersion is HFP 1.9.
	profileVersion uint16 = 0x0109

	defaultObjectPath = dbus.ObjectPath("/org/hfpag/profile/ag")
)

// ErrClosed is returned once the profile has been unregistered.
var ErrClosed = errors.New("bluez: profile closed")

var errRejected = &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []any{"no receiver"}}

// Bus is the subset of *dbus.Conn the profile uses.
type Bus interface {
	Export(v any, path dbus.ObjectPath, iface string) error
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// Incoming is a service level connection opened by the HF.
type Incoming struct {
	Peer    hfp.PeerID
	Channel bearer.Channel
}

// Option configures a [Profile].
type Option func(*Profile)

// WithAdapter selects the local adapter (default "hci0").
func WithAdapter(name string) Option {
	return func(p *Profile) { p.adapter = name }
}

// WithObjectPath overrides the object path the Profile1 object is exported at.
func WithObjectPath(path dbus.ObjectPath) Option {
	return func(p *Profile) { p.path = path }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(p *Profile) { p.log = l }
}

// Profile is the BlueZ-backed bearer connector. It is safe for concurrent use.
type Profile struct {
	bus      Bus
	adapter  string
	path     dbus.ObjectPath
	features hfp.AgFeatures
	log      *slog.Logger

	mu       sync.Mutex
	closed   bool
	waiters  map[hfp.PeerID]chan bearer.Channel
	incoming chan Incoming
}

var _ bearer.Connector = (*Profile)(nil)

// New creates an unregistered profile on bus. Call [Profile.Register] before
// use.
func New(bus Bus, features hfp.AgFeatures, opts ...Option) *Profile {
	p := &Profile{
		bus:      bus,
		adapter:  "hci0",
		path:     defaultObjectPath,
		features: features,
		log:      slog.Default(),
		waiters:  make(map[hfp.PeerID]chan bearer.Channel),
		incoming: make(chan Incoming, 8),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Register exports the Profile1 object and registers it with BlueZ.
func (p *Profile) Register(ctx context.Context) error {
	if err := p.bus.Export(&handler{p: p}, p.path, profileIface); err != nil {
		return fmt.Errorf("bluez: export profile: %w", err)
	}
	opts := map[string]dbus.Variant{
		"Name":     dbus.MakeVariant("Hands-Free Voice gateway"),
		"Role":     dbus.MakeVariant("server"),
		"Version":  dbus.MakeVariant(profileVersion),
		"Features": dbus.MakeVariant(uint16(p.features & 0x1f)),
	}
	pm := p.bus.Object(bluezService, "/org/bluez")
	if call := pm.CallWithContext(ctx, profileManagerIface+".RegisterProfile", 0, p.path, AudioGatewayUUID, opts); call.Err != nil {
		_ = p.bus.Export(nil, p.path, profileIface)
		return fmt.Errorf("bluez: register profile: %w", call.Err)
	}
	p.log.Info("bluez: profile registered", "path", p.path, "adapter", p.adapter)
	return nil
}

// Close unregisters the profile and closes the incoming stream. It is safe
// to call more than once.
func (p *Profile) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.incoming)
	p.mu.Unlock()

	var errs []error
	pm := p.bus.Object(bluezService, "/org/bluez")
	if call := pm.Call(profileManagerIface+".UnregisterProfile", 0, p.path); call.Err != nil {
		errs = append(errs, fmt.Errorf("bluez: unregister profile: %w", call.Err))
	}
	if err := p.bus.Export(nil, p.path, profileIface); err != nil {
		errs = append(errs, fmt.Errorf("bluez: unexport profile: %w", err))
	}
	return errors.Join(errs...)
}

// Incoming returns connections opened by HF devices. The channel is closed by
// [Profile.Close].
func (p *Profile) Incoming() <-chan Incoming { return p.incoming }

// Connect implements [bearer.Connector]. It asks BlueZ to connect the
// Hands-Free profile on peer and waits for the socket to be handed over.
// params is ignored: BlueZ resolves the RFCOMM channel through SDP.
func (p *Profile) Connect(ctx context.Context, peer hfp.PeerID, _ bearer.ConnectParams) (bearer.Channel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if _, busy := p.waiters[peer]; busy {
		p.mu.Unlock()
		return nil, fmt.Errorf("bluez: connect %s: already in progress", peer)
	}
	wait := make(chan bearer.Channel, 1)
	p.waiters[peer] = wait
	p.mu.Unlock()

	delivered := false
	defer func() {
		p.mu.Lock()
		if p.waiters[peer] == wait {
			delete(p.waiters, peer)
		}
		p.mu.Unlock()
		if delivered {
			return
		}
		// A socket may have raced in after we gave up.
		select {
		case ch := <-wait:
			_ = ch.Close()
		default:
		}
	}()

	dev := p.bus.Object(bluezService, devicePath(p.adapter, peer))
	if call := dev.CallWithContext(ctx, deviceIface+".ConnectProfile", 0, HandsFreeUUID); call.Err != nil {
		if strings.HasSuffix(errorName(call.Err), ".Rejected") {
			return nil, fmt.Errorf("bluez: connect %s: %w", peer, bearer.ErrRejected)
		}
		return nil, fmt.Errorf("bluez: connect %s: %w", peer, call.Err)
	}

	select {
	case ch := <-wait:
		delivered = true
		return ch, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("bluez: connect %s: %w", peer, ctx.Err())
	}
}

// deliver hands a freshly received socket to a pending Connect for peer, or
// to the incoming stream. It reports false if nobody took it.
func (p *Profile) deliver(peer hfp.PeerID, ch bearer.Channel) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if wait, ok := p.waiters[peer]; ok {
		delete(p.waiters, peer)
		wait <- ch
		return true
	}
	select {
	case p.incoming <- Incoming{Peer: peer, Channel: ch}:
		return true
	default:
		return false
	}
}

// ─── org.bluez.Profile1 ──────────────────────────────────────────────────────

// handler is the object exported on the bus. BlueZ calls its methods on the
// D-Bus dispatch goroutine, so none of them may block.
type handler struct {
	p *Profile
}

// Release is called when BlueZ unregisters the profile.
func (h *handler) Release() *dbus.Error {
	h.p.log.Info("bluez: profile released by daemon")
	return nil
}

// Cancel is called when a pending request is cancelled.
func (h *handler) Cancel() *dbus.Error { return nil }

// RequestDisconnection is informational; the session notices the closed
// socket on its own.
func (h *handler) RequestDisconnection(dev dbus.ObjectPath) *dbus.Error {
	h.p.log.Debug("bluez: disconnection requested", "device", dev)
	return nil
}

// NewConnection receives the RFCOMM socket for dev.
func (h *handler) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	peer, err := peerFromPath(dev)
	if err != nil {
		_ = unix.Close(int(fd))
		return dbus.MakeFailedError(err)
	}
	// A non-blocking fd lets os.NewFile hand back a pollable file, so reads
	// can be interrupted by Close.
	if err := unix.SetNonblock(int(fd), true); err != nil {
		_ = unix.Close(int(fd))
		return dbus.MakeFailedError(fmt.Errorf("bluez: set nonblock: %w", err))
	}
	ch := os.NewFile(uintptr(fd), "rfcomm:"+peer.String())
	if !h.p.deliver(peer, ch) {
		_ = ch.Close()
		h.p.log.Warn("bluez: connection rejected", "peer", peer)
		return errRejected
	}
	h.p.log.Info("bluez: new connection", "peer", peer)
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// errorName returns the D-Bus error name carried by err, or "".
func errorName(err error) string {
	var v dbus.Error
	if errors.As(err, &v) {
		return v.Name
	}
	var p *dbus.Error
	if errors.As(err, &p) {
		return p.Name
	}
	return ""
}

// devicePath returns the BlueZ object path of peer on adapter.
func devicePath(adapter string, peer hfp.PeerID) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + adapter + "/dev_" + strings.ReplaceAll(peer.String(), ":", "_"))
}

// peerFromPath extracts the peer address from a .../dev_XX_XX_XX_XX_XX_XX path.
func peerFromPath(p dbus.ObjectPath) (hfp.PeerID, error) {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return "", fmt.Errorf("bluez: not a device path: %q", s)
	}
	return hfp.ParsePeerID(s[idx+len("/dev_"):])
}
