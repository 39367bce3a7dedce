package rpc

import (
	"context"
	"sync"
)

// future is the Go rendering of the spec's promise: a single value or
// error, settled exactly once, that a waiter can block on or abandon via
// context.
type future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(v any) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

func (f *future) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

func (f *future) wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call implements the outbound half of spec §4.4. It rejects immediately,
// without touching the transport, if the endpoint is closed. Any number of
// calls may be outstanding concurrently; marshalling one call's arguments
// never invokes application code (RPCInvoke runs only from handleInboundCall,
// on its own goroutine), so there is no reentrancy hazard to guard against
// here; see DESIGN.md.
func (e *Endpoint) Call(ctx context.Context, oid OID, method string, args []any) (any, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosedEndpoint
	}

	fut := newFuture()

	id, err := e.marshalRegisterAndSendCall(oid, method, args, fut)
	if err != nil {
		return nil, err
	}

	v, err := fut.wait(ctx)
	if err != nil {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
	}
	return v, err
}

// marshalRegisterAndSendCall holds writeMu across marshalling args,
// registering the pending call, and sending the call frame, the same way
// the reference client's Send holds client.mu across registerCall and
// codec.WriteRequest together. Without one lock spanning the whole
// sequence, two concurrent Calls sharing an not-yet-stubbed argument could
// interleave so that the second call's frame reaches the wire before the
// first call's new-object announcement for the stub it just minted. The
// call id is allocated only after marshalling succeeds, so a marshalling
// error consumes no id.
func (e *Endpoint) marshalRegisterAndSendCall(oid OID, method string, args []any, fut *future) (int64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	marshalled, newStubs, err := e.marshalArgs(args)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, ErrClosedEndpoint
	}
	id := e.callSeq.Add(1)
	e.pending[id] = fut
	e.mu.Unlock()

	if err := e.announceAndSendLocked(newStubs, frameForCall(id, oid, method, marshalled)); err != nil {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return 0, err
	}
	return id, nil
}

func (e *Endpoint) marshalArgs(args []any) ([]any, []*Stub, error) {
	var newStubs []*Stub
	out := make([]any, len(args))
	for i, a := range args {
		m, err := e.marshal(a, &newStubs)
		if err != nil {
			return nil, nil, err
		}
		out[i] = m
	}
	return out, newStubs, nil
}

// handleInboundCall implements spec §4.4's inbound-call half. It runs on
// its own goroutine per call so that a slow stub method cannot stall the
// endpoint's read loop or delay unrelated replies.
func (e *Endpoint) handleInboundCall(ctx context.Context, id int64, obj OID, method string, wireParams []any) {
	reply, err := e.invokeStub(ctx, obj, method, wireParams)
	if err != nil {
		e.sendErrorReply(id, err)
		return
	}

	// Marshalling and sending the reply share writeMu for the same reason
	// Call's marshalRegisterAndSendCall does: a stub discovered here must
	// not lose the race to announce itself before some other concurrent
	// marshaller's frame references the same oid.
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var newStubs []*Stub
	marshalled, merr := e.marshal(reply, &newStubs)
	if merr != nil {
		if sendErr := e.sendFrameLocked(frameForErrorReply(id, merr)); sendErr != nil {
			e.log.WithError(sendErr).WithField("call_id", id).Warn("failed to send error reply")
		}
		return
	}

	frame := frameForReply(id, marshalled, true)
	if sendErr := e.announceAndSendLocked(newStubs, frame); sendErr != nil {
		e.log.WithError(sendErr).WithField("call_id", id).Warn("failed to send reply")
	}
}

func (e *Endpoint) invokeStub(ctx context.Context, obj OID, method string, wireParams []any) (any, error) {
	stub, ok := e.stubs.lookup(obj)
	if !ok {
		return nil, &InvalidObjectError{Oid: obj}
	}
	args, err := e.unmarshalAll(wireParams)
	if err != nil {
		return nil, err
	}
	return stub.Invoke(ctx, method, args)
}

func (e *Endpoint) sendErrorReply(id int64, err error) {
	frame := frameForErrorReply(id, err)
	if sendErr := e.sendFrame(frame); sendErr != nil {
		e.log.WithError(sendErr).WithField("call_id", id).Warn("failed to send error reply")
	}
}

// handleReply implements spec §4.4's reply matching.
func (e *Endpoint) handleReply(id int64, hasError bool, errClass, message, stack, code string, hasReply bool, wireReply any) {
	e.mu.Lock()
	fut, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()

	if !ok {
		e.log.WithField("call_id", id).Warn("reply for unknown call id")
		return
	}

	if hasError {
		fut.reject(&RemoteError{
			Class:   classifyRemoteError(errClass),
			Message: message,
			Stack:   stack,
			Code:    code,
		})
		return
	}

	if !hasReply {
		fut.resolve(nil)
		return
	}

	v, err := e.unmarshal(wireReply)
	if err != nil {
		fut.reject(err)
		return
	}
	fut.resolve(v)
}

func classifyRemoteError(class string) RemoteErrorClass {
	switch RemoteErrorClass(class) {
	case RemoteSyntaxError:
		return RemoteSyntaxError
	case RemoteTypeError:
		return RemoteTypeError
	default:
		return RemoteGenericError
	}
}

// failAllPending implements spec §4.4's closure cascade: every pending
// call is rejected exactly once with ErrClosedEndpoint.
func (e *Endpoint) failAllPending() {
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[int64]*future)
	e.mu.Unlock()

	for _, fut := range pending {
		fut.reject(ErrClosedEndpoint)
	}
}
