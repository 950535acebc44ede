// Package mock provides in-memory implementations of the [bearer.Profile],
// [bearer.Channel] and [bearer.Link] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every call so tests can
// assert on arguments, and expose fields that control return values.
//
// Typical usage:
//
//	link := mock.NewLink(hfp.ParamSets(hfp.CodecCVSD, false)[0])
//	profile := &mock.Profile{}
//	profile.PushConnectSCO(link, nil)
//	got, err := profile.ConnectSCO(ctx, "00:11:22:33:44:55", sets)
package mock

import (
	"context"
	"net"
	"sync"

	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

// ─── Channel ─────────────────────────────────────────────────────────────────

// NewChannel returns both ends of an in-memory bearer channel. The first is
// handed to the code under test; the second plays the remote HF. Closing
// either end makes reads on the other fail.
func NewChannel() (local, remote bearer.Channel) {
	a, b := net.Pipe()
	return a, b
}

// ─── Link ────────────────────────────────────────────────────────────────────

// Link is a mock [bearer.Link].
type Link struct {
	params hfp.CodecParams

	mu         sync.Mutex
	closed     chan struct{}
	closeOnce  sync.Once
	CloseCalls int
}

// NewLink returns an open link that reports params.
func NewLink(params hfp.CodecParams) *Link {
	return &Link{params: params, closed: make(chan struct{})}
}

// Params implements [bearer.Link].
func (l *Link) Params() hfp.CodecParams { return l.params }

// Closed implements [bearer.Link].
func (l *Link) Closed() <-chan struct{} { return l.closed }

// Close implements [bearer.Link]. Records the call.
func (l *Link) Close() error {
	l.mu.Lock()
	l.CloseCalls++
	l.mu.Unlock()
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

// Drop simulates the remote side tearing the link down.
func (l *Link) Drop() {
	l.closeOnce.Do(func() { close(l.closed) })
}

// IsClosed reports whether the link has been closed by either side.
func (l *Link) IsClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// CloseCount returns how many times Close was called.
func (l *Link) CloseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.CloseCalls
}

// ─── Profile ─────────────────────────────────────────────────────────────────

// ConnectCall records a single [Profile.Connect] invocation.
type ConnectCall struct {
	Peer   hfp.PeerID
	Params bearer.ConnectParams
}

// SCOCall records a single ConnectSCO or AcceptSCO invocation.
type SCOCall struct {
	Peer hfp.PeerID
	Sets []hfp.CodecParams
}

type scoResult struct {
	link bearer.Link
	err  error
}

// Profile is a mock [bearer.Profile].
//
// ConnectSCO results are consumed from a FIFO filled with PushConnectSCO;
// when the queue is empty ConnectSCO fails with [bearer.ErrRejected].
// AcceptSCO blocks until a link is offered with OfferIncoming or ctx is done.
type Profile struct {
	mu sync.Mutex

	// ConnectResult and ConnectError are returned by Connect.
	ConnectResult bearer.Channel
	ConnectError  error

	ConnectCalls    []ConnectCall
	ConnectSCOCalls []SCOCall
	AcceptSCOCalls  []SCOCall

	connectSCO []scoResult
	incoming   chan bearer.Link
	accepting  chan struct{}
}

// Connect implements [bearer.Connector].
func (p *Profile) Connect(_ context.Context, peer hfp.PeerID, params bearer.ConnectParams) (bearer.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Peer: peer, Params: params})
	return p.ConnectResult, p.ConnectError
}

// PushConnectSCO queues the result of the next ConnectSCO call.
func (p *Profile) PushConnectSCO(link bearer.Link, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectSCO = append(p.connectSCO, scoResult{link: link, err: err})
}

// ConnectSCO implements [bearer.SCO].
func (p *Profile) ConnectSCO(_ context.Context, peer hfp.PeerID, sets []hfp.CodecParams) (bearer.Link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectSCOCalls = append(p.ConnectSCOCalls, SCOCall{Peer: peer, Sets: sets})
	if len(p.connectSCO) == 0 {
		return nil, bearer.ErrRejected
	}
	res := p.connectSCO[0]
	p.connectSCO = p.connectSCO[1:]
	return res.link, res.err
}

func (p *Profile) channels() (chan bearer.Link, chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.incoming == nil {
		p.incoming = make(chan bearer.Link)
		p.accepting = make(chan struct{}, 16)
	}
	return p.incoming, p.accepting
}

// AcceptSCO implements [bearer.SCO].
func (p *Profile) AcceptSCO(ctx context.Context, peer hfp.PeerID, sets []hfp.CodecParams) (bearer.Link, error) {
	incoming, accepting := p.channels()
	p.mu.Lock()
	p.AcceptSCOCalls = append(p.AcceptSCOCalls, SCOCall{Peer: peer, Sets: sets})
	p.mu.Unlock()
	select {
	case accepting <- struct{}{}:
	default:
	}
	select {
	case link := <-incoming:
		return link, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Accepting returns a channel that receives a value every time AcceptSCO
// starts waiting.
func (p *Profile) Accepting() <-chan struct{} {
	_, accepting := p.channels()
	return accepting
}

// OfferIncoming delivers link to a pending AcceptSCO. It blocks until an
// acceptor takes it or ctx is done.
func (p *Profile) OfferIncoming(ctx context.Context, link bearer.Link) error {
	incoming, _ := p.channels()
	select {
	case incoming <- link:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connects returns a copy of the recorded Connect calls.
func (p *Profile) Connects() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ConnectCall(nil), p.ConnectCalls...)
}

// SCOConnectCalls returns a copy of the recorded ConnectSCO calls.
func (p *Profile) SCOConnectCalls() []SCOCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SCOCall, len(p.ConnectSCOCalls))
	copy(out, p.ConnectSCOCalls)
	return out
}
