// Package rpc implements a bidirectional, promise-oriented RPC engine.
//
// Two peers connect over an arbitrary message-boundary-preserving
// transport and exchange "stubs", local objects advertised to the other
// side, and "proxies", local handles standing in for an object the peer
// owns. Calling a method on a proxy sends a request across the wire and
// resolves a future once the owning side replies; objects returned from a
// stub method are themselves stubbed and arrive on the caller as a fresh
// proxy.
//
// The package does not define a transport, a wire codec, or a mechanism
// for declaring which methods an object exposes. Those are supplied by
// the host program. See Transport, Stubbable, and the wire subpackage for
// the reference renderings this module ships for its own binaries and
// tests.
package rpc
