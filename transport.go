package rpc

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/stanford-oval/transparent-rpc/wire"
)

// Transport is the external collaborator the engine needs: a bidirectional,
// ordered, message-boundary-preserving stream. The engine never looks past
// this interface, so TCP, a websocket, or an in-process pipe can all back
// an Endpoint as long as Send/Recv preserve FIFO order.
type Transport interface {
	// Send transmits one frame. Implementations must serialise concurrent
	// callers themselves if the underlying stream is not safe for
	// concurrent writes; the engine calls Send from at most one goroutine
	// at a time per direction, but End/Destroy may race with it.
	Send(wire.Frame) error

	// Recv blocks for the next frame. It returns io.EOF once the peer has
	// cleanly closed its end.
	Recv() (wire.Frame, error)

	// Close releases the transport's resources. Close must be safe to
	// call more than once and must cause a blocked Recv to return.
	Close() error
}

// connTransport is the reference Transport over a net.Conn, framing
// messages with the wire package's length/compress/checksum codec. This
// is what the reference binaries in cmd/ dial; the tests use the pipe
// transport below instead.
type connTransport struct {
	conn net.Conn

	writeMu sync.Mutex
}

// NewConnTransport adapts conn into a Transport using the wire package's
// frame codec, in the style of the reference codec's client/server codec
// wrapping an io.ReadWriteCloser.
func NewConnTransport(conn net.Conn) Transport {
	return &connTransport{conn: conn}
}

func (t *connTransport) Send(f wire.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.WriteFrame(t.conn, f)
}

func (t *connTransport) Recv() (wire.Frame, error) {
	f, err := wire.ReadFrame(t.conn)
	if err != nil {
		if err == io.EOF {
			return wire.Frame{}, io.EOF
		}
		return wire.Frame{}, fmt.Errorf("rpc: read frame: %w", err)
	}
	return f, nil
}

func (t *connTransport) Close() error {
	return t.conn.Close()
}

// pipeTransport pairs two in-process Transports over channels buffered to
// 64 frames each way (Send blocks once a direction is full), for tests and for in-process peers that don't need real sockets. It
// preserves FIFO order and message boundaries exactly, without any of the
// connTransport codec's encode/decode cost, handy for exercising the
// engine itself rather than the wire format.
type pipeTransport struct {
	out    chan wire.Frame
	in     chan wire.Frame
	closed chan struct{}
	once   sync.Once
}

// NewPipeTransportPair returns two Transports, each endpoint of an
// in-process duplex pipe; frames sent on one arrive, in order, on the
// other's Recv.
func NewPipeTransportPair() (Transport, Transport) {
	ab := make(chan wire.Frame, 64)
	ba := make(chan wire.Frame, 64)
	a := &pipeTransport{out: ab, in: ba, closed: make(chan struct{})}
	b := &pipeTransport{out: ba, in: ab, closed: make(chan struct{})}
	return a, b
}

func (t *pipeTransport) Send(f wire.Frame) error {
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	case t.out <- f:
		return nil
	}
}

func (t *pipeTransport) Recv() (wire.Frame, error) {
	select {
	case f := <-t.in:
		return f, nil
	case <-t.closed:
		return wire.Frame{}, io.EOF
	}
}

func (t *pipeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}
