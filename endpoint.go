package rpc

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/stanford-oval/transparent-rpc/wire"
)

// Endpoint is one side of the bidirectional RPC channel: it wraps a
// Transport and owns the stub registry, the proxy registry, and the
// pending-call table described in spec §3.
type Endpoint struct {
	transport Transport
	log       *logrus.Entry

	stubs   *stubRegistry
	proxies *proxyRegistry

	mu      sync.Mutex
	closed  bool
	pending map[int64]*future
	callSeq atomic.Int64

	writeMu sync.Mutex

	// OnError, OnEnd, and OnClose mirror the transport events named in
	// spec §6. They are called from the endpoint's read-loop goroutine
	// and must not block.
	OnError func(error)
	OnEnd   func()
	OnClose func(hadError bool)

	// OnNewObject is an optional, Go-specific convenience hook (not part
	// of spec §6's API surface) called whenever a new-object frame
	// creates a fresh proxy. The bootstrap mechanism that hands the first
	// oid to an application is explicitly out of scope for this engine
	// (spec §1); this hook is what the reference cmd/ binaries use to
	// learn the server's root oid without inventing a second protocol.
	OnNewObject func(OID, *Proxy)

	wg sync.WaitGroup
}

// NewEndpoint wraps transport in an Endpoint and starts its read loop.
func NewEndpoint(transport Transport) *Endpoint {
	e := &Endpoint{
		transport: transport,
		log:       logrus.WithField("component", "rpc.endpoint"),
		stubs:     newStubRegistry(),
		proxies:   newProxyRegistry(),
		pending:   make(map[int64]*future),
	}
	e.wg.Add(1)
	go e.readLoop()
	return e
}

// SetLogger overrides the endpoint's diagnostic logger, e.g. to attach a
// connection id or route logs to a different output.
func (e *Endpoint) SetLogger(log *logrus.Entry) {
	e.log = log
}

// AddStub implements spec §4.1's AddStub for application-initiated export:
// unlike stubs discovered while marshalling a call's arguments, the
// announcement is written immediately since the caller is not mid-marshal
// for an outbound call. The returned func releases the stub exactly as a
// peer-sent free would, giving every caller a way to free its own object
// even if it doesn't implement Freeable.
func (e *Endpoint) AddStub(obj Stubbable) (OID, func(), error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return "", nil, ErrClosedEndpoint
	}

	stub, fresh, free, err := e.stubs.addStub(obj)
	if err != nil {
		return "", nil, err
	}
	if fresh {
		if err := e.sendFrame(frameForNewObject(stub)); err != nil {
			return "", nil, err
		}
	}
	return stub.oid, free, nil
}

// GetProxy returns the proxy currently registered for oid, if any. It
// does not create one; proxies only come into being on receipt of a
// new-object frame (spec §4.2).
func (e *Endpoint) GetProxy(oid OID) (*Proxy, bool) {
	return e.proxies.lookup(oid)
}

// FreeProxy releases the proxy for oid, notifying the peer unless the
// endpoint is already closed (spec §4.2).
func (e *Endpoint) FreeProxy(oid OID) {
	e.freeProxy(oid)
}

func (e *Endpoint) freeProxy(oid OID) {
	e.proxies.handleFree(oid)

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	if err := e.sendFrame(wire.Frame{Control: wire.ControlFree, Obj: string(oid)}); err != nil {
		e.log.WithError(err).WithField("oid", oid).Warn("failed to send free notice")
	}
}

// sendFrame serialises writes to the transport so that an announcement
// sequence (new-object frames followed by the call/reply that references
// them) cannot be interleaved with another goroutine's frame.
func (e *Endpoint) sendFrame(f wire.Frame) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.sendFrameLocked(f)
}

// sendFrameLocked is sendFrame for a caller that already holds writeMu,
// e.g. one in the middle of an announceAndSendLocked sequence.
func (e *Endpoint) sendFrameLocked(f wire.Frame) error {
	return e.transport.Send(f)
}

// announceAndSend writes a new-object frame for each freshly discovered
// stub, in discovery order, then writes main, all under the same write
// lock so nothing else can interleave between the announcements and the
// frame that depends on them (spec §5's ordering invariant).
func (e *Endpoint) announceAndSend(newStubs []*Stub, main wire.Frame) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.announceAndSendLocked(newStubs, main)
}

// announceAndSendLocked is announceAndSend for a caller that already
// holds writeMu across the marshalling that produced newStubs and main,
// e.g. Endpoint.marshalRegisterAndSendCall. Marshalling a Stubbable commits
// it to the stub registry before this is ever reached (stub.go's addStub),
// so writeMu has to be held from before that commit through this send:
// otherwise a second marshaller could observe the same object as
// already-registered and write its own frame first, putting an oid on the
// wire with no preceding new-object announcement (spec §5, §8).
func (e *Endpoint) announceAndSendLocked(newStubs []*Stub, main wire.Frame) error {
	for _, stub := range newStubs {
		if err := e.sendFrameLocked(frameForNewObject(stub)); err != nil {
			return err
		}
	}
	return e.sendFrameLocked(main)
}

// End closes the underlying transport gracefully, failing any pending
// calls and suppressing further sends.
func (e *Endpoint) End() error {
	return e.close()
}

// Destroy forces immediate closure, identically to End at this layer: the
// engine has no separate "graceful drain" state, since a pending call
// is only ever settled by a reply or by closure (spec §4.6).
func (e *Endpoint) Destroy() error {
	return e.close()
}

func (e *Endpoint) close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.transport.Close()
	e.failAllPending()
	return err
}

// readLoop consumes frames until the transport is closed or errors,
// implementing spec §4.4's closure cascade and the event re-emission of
// spec §6.
func (e *Endpoint) readLoop() {
	defer e.wg.Done()

	var readErr error
	for {
		f, err := e.transport.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		e.route(f)
	}

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.failAllPending()

	if readErr != nil && e.OnError != nil {
		e.OnError(readErr)
	}
	if e.OnEnd != nil {
		e.OnEnd()
	}
	if e.OnClose != nil {
		e.OnClose(readErr != nil)
	}
}

// Wait blocks until the endpoint's read loop has exited, e.g. after End
// or Destroy. It is mainly useful in tests and short-lived CLI tools.
func (e *Endpoint) Wait() {
	e.wg.Wait()
}

func frameForNewObject(stub *Stub) wire.Frame {
	return wire.Frame{
		Control: wire.ControlNewObject,
		Obj:     string(stub.oid),
		Methods: stub.methods,
	}
}

func frameForCall(id int64, oid OID, method string, params []any) wire.Frame {
	return wire.Frame{
		Control: wire.ControlCall,
		ID:      id,
		Obj:     string(oid),
		Method:  method,
		Params:  params,
	}
}

func frameForReply(id int64, reply any, hasReply bool) wire.Frame {
	return wire.Frame{
		Control:  wire.ControlReply,
		ID:       id,
		Reply:    reply,
		HasReply: hasReply,
	}
}

func frameForErrorReply(id int64, err error) wire.Frame {
	f := wire.Frame{Control: wire.ControlReply, ID: id, HasError: true}

	var remote *RemoteError
	if re, ok := err.(*RemoteError); ok {
		remote = re
	}
	switch {
	case remote != nil:
		f.Error = string(remote.Class)
		f.Message = remote.Message
		f.Stack = remote.Stack
		f.Code = remote.Code
	default:
		f.Error = string(RemoteGenericError)
		f.Message = err.Error()
		if coder, ok := err.(interface{ Code() string }); ok {
			f.Code = coder.Code()
		}
	}
	return f
}
