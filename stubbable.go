package rpc

import "context"

// Stubbable is implemented by application objects that want to be
// advertised to a peer as a stub. The engine never inspects an object's
// Go type to decide what it can do. RPCMethods is the sole source of
// truth for what a stub exposes, and RPCInvoke is the sole entry point
// for calling into it. How a concrete type maps a method name onto its
// own fields and methods is entirely up to the application; the engine
// treats it as an external collaborator (see package doc).
//
// RPCMethods returns the ordered list of method and getter names the
// object exposes. An entry of the form "get NAME" authorises both read
// and write of NAME; any other entry is a plain callable method name.
// The list is snapshotted once, when the object is first stubbed.
//
// RPCInvoke is called with method set to one of three shapes: a plain
// method name from RPCMethods, "get NAME", or "set NAME". For "get NAME"
// args is always empty; for "set NAME" args always has exactly one
// element. RPCInvoke may return a value that itself needs marshalling
// (including another Stubbable), or an error.
type Stubbable interface {
	RPCMethods() []string
	RPCInvoke(ctx context.Context, method string, args []any) (any, error)
}

// Freeable is an optional interface a Stubbable may implement to receive
// the release hook the stub registry installs when the object is first
// stubbed. The hook closes only over the registry's bookkeeping, never
// over the endpoint itself (spec §9's "free closure" property), so that
// an endpoint can be collected once the application drops its stubs.
//
// Implementing Freeable is never required: AddStub always returns a free
// function the caller can invoke directly instead.
type Freeable interface {
	Stubbable
	SetRPCFree(free func())
}
