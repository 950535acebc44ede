//go:build linux

package bluez

import (
	"io"
	"testing"

	dbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

const testPeer = hfp.PeerID("00:1A:7D:DA:71:13")

// socketPair returns a connected pair of unix stream sockets standing in for
// the RFCOMM fd BlueZ passes over the bus.
func socketPair(t *testing.T) (local int, remote int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fds[1]) })
	return fds[0], fds[1]
}

func TestPeerFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    dbus.ObjectPath
		want    hfp.PeerID
		wantErr bool
	}{
		{name: "device", path: "/org/bluez/hci0/dev_00_1A_7D_DA_71_13", want: testPeer},
		{name: "lower case", path: "/org/bluez/hci1/dev_00_1a_7d_da_71_13", want: testPeer},
		{name: "adapter only", path: "/org/bluez/hci0", wantErr: true},
		{name: "truncated", path: "/org/bluez/hci0/dev_00_1A", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := peerFromPath(tc.path)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDevicePath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_00_1A_7D_DA_71_13"), devicePath("hci0", testPeer))
}

func TestNewConnection_DeliversIncoming(t *testing.T) {
	t.Parallel()

	p := New(nil, hfp.AgFeatureThreeWayCalling)
	h := &handler{p: p}
	fd, remote := socketPair(t)

	require.Nil(t, h.NewConnection(devicePath("hci0", testPeer), dbus.UnixFD(fd), nil))

	in := <-p.Incoming()
	assert.Equal(t, testPeer, in.Peer)
	t.Cleanup(func() { _ = in.Channel.Close() })

	_, err := unix.Write(remote, []byte("AT+BRSF=0\r"))
	require.NoError(t, err)
	buf := make([]byte, 10)
	_, err = io.ReadFull(in.Channel, buf)
	require.NoError(t, err)
	assert.Equal(t, "AT+BRSF=0\r", string(buf))
}

func TestNewConnection_PrefersPendingConnect(t *testing.T) {
	t.Parallel()

	p := New(nil, 0)
	h := &handler{p: p}
	wait := make(chan bearer.Channel, 1)
	p.waiters[testPeer] = wait
	fd, _ := socketPair(t)

	require.Nil(t, h.NewConnection(devicePath("hci0", testPeer), dbus.UnixFD(fd), nil))

	ch := <-wait
	t.Cleanup(func() { _ = ch.Close() })
	assert.NotContains(t, p.waiters, testPeer)
	assert.Empty(t, p.incoming)
}

func TestNewConnection_RejectsBadPath(t *testing.T) {
	t.Parallel()

	p := New(nil, 0)
	h := &handler{p: p}
	fd, _ := socketPair(t)

	dErr := h.NewConnection("/org/bluez/hci0", dbus.UnixFD(fd), nil)
	require.NotNil(t, dErr)
	assert.Empty(t, p.incoming)
}

func TestNewConnection_RejectsWhenNobodyListens(t *testing.T) {
	t.Parallel()

	p := New(nil, 0)
	h := &handler{p: p}
	for range cap(p.incoming) {
		fd, _ := socketPair(t)
		require.Nil(t, h.NewConnection(devicePath("hci0", testPeer), dbus.UnixFD(fd), nil))
	}
	fd, remote := socketPair(t)

	dErr := h.NewConnection(devicePath("hci0", testPeer), dbus.UnixFD(fd), nil)
	require.NotNil(t, dErr)
	assert.Equal(t, "org.bluez.Error.Rejected", dErr.Name)

	// The rejected socket is closed, so the remote end sees EOF.
	n, err := unix.Read(remote, make([]byte, 1))
	assert.NoError(t, err)
	assert.Zero(t, n)

	for range cap(p.incoming) {
		in := <-p.incoming
		_ = in.Channel.Close()
	}
}
