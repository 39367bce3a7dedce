package rpc

import (
	"context"

	"github.com/stanford-oval/transparent-rpc/wire"
)

// route implements spec §4.5's message router: a switch on the frame's
// control field dispatching to the stub registry, the proxy registry, or
// the call dispatcher.
func (e *Endpoint) route(f wire.Frame) {
	if f.Malformed {
		e.log.WithError(&MalformedFrameError{Reason: f.MalformedReason}).Warn("dropping malformed frame")
		return
	}

	switch f.Control {
	case wire.ControlNewObject:
		e.handleNewObject(OID(f.Obj), f.Methods)

	case wire.ControlCall:
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.handleInboundCall(context.Background(), f.ID, OID(f.Obj), f.Method, f.Params)
		}()

	case wire.ControlReply:
		e.handleReply(f.ID, f.HasError, f.Error, f.Message, f.Stack, f.Code, f.HasReply, f.Reply)

	case wire.ControlFree:
		e.handleFree(OID(f.Obj))

	default:
		e.log.WithField("control", f.Control).Warn("dropping frame with unrecognised control")
	}
}

// handleNewObject implements spec §4.2: an unknown oid gets a fresh
// proxy; a known oid is ignored, since the proxy registry already
// guarantees identity stability (spec §8 property 5).
func (e *Endpoint) handleNewObject(oid OID, methods []string) {
	proxy, fresh := e.proxies.getOrCreate(oid, e, methods)
	if fresh && e.OnNewObject != nil {
		e.OnNewObject(oid, proxy)
	}
}

// handleFree implements spec §4.5/§4.6: the oid is removed from whichever
// registry holds it. A free notice never references a local proxy by
// accident. It is the stub registry that matters here, since a peer
// frees a stub we exported, but stubs.handleFree and proxies.handleFree
// are both safe no-ops when the oid is absent, so calling both keeps this
// endpoint consistent no matter which side originated the oid.
func (e *Endpoint) handleFree(oid OID) {
	e.stubs.handleFree(oid)
	e.proxies.handleFree(oid)
}
