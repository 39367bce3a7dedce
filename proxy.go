package rpc

import (
	"context"
	"strings"
	"sync"
)

// Proxy is a local handle standing in for an object the peer owns. Every
// declared method becomes a call site returning the peer's reply; every
// declared "get NAME" becomes a lazily-resolving accessor (spec §4.2).
// There is deliberately no Set; see DESIGN.md's open-question decision.
type Proxy struct {
	oid     OID
	ep      *Endpoint
	methods []string
	getters map[string]struct{}
	calls   map[string]struct{}
}

func newProxy(oid OID, ep *Endpoint, methods []string) *Proxy {
	p := &Proxy{
		oid:     oid,
		ep:      ep,
		methods: methods,
		getters: make(map[string]struct{}),
		calls:   make(map[string]struct{}),
	}
	for _, m := range methods {
		if name, ok := strings.CutPrefix(m, "get "); ok {
			p.getters[name] = struct{}{}
		} else {
			p.calls[name] = struct{}{}
		}
	}
	return p
}

// OID returns the proxy's oid, the same identifier its owning endpoint
// uses for the underlying stub.
func (p *Proxy) OID() OID { return p.oid }

// Methods lists the method and "get NAME" entries advertised for this
// proxy's underlying stub.
func (p *Proxy) Methods() []string { return p.methods }

// Call invokes a plain method on the remote stub and returns its reply.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) (any, error) {
	if _, ok := p.calls[method]; !ok {
		return nil, &InvalidMethodError{Oid: p.oid, Method: method}
	}
	return p.ep.Call(ctx, p.oid, method, args)
}

// Get resolves a "get NAME" accessor declared for this proxy.
func (p *Proxy) Get(ctx context.Context, name string) (any, error) {
	if _, ok := p.getters[name]; !ok {
		return nil, &InvalidMethodError{Oid: p.oid, Method: "get " + name}
	}
	return p.ep.Call(ctx, p.oid, "get "+name, nil)
}

// Free removes the proxy from its endpoint's registry and, unless the
// endpoint is already closed, notifies the peer so it can release the
// corresponding stub.
func (p *Proxy) Free() {
	p.ep.freeProxy(p.oid)
}

// proxyRegistry owns every proxy this endpoint holds for objects the peer
// has advertised, indexed by oid. A given oid always resolves to the same
// *Proxy instance for as long as it is live (spec §8 property 5).
type proxyRegistry struct {
	mu    sync.Mutex
	byOID map[OID]*Proxy
}

func newProxyRegistry() *proxyRegistry {
	return &proxyRegistry{byOID: make(map[OID]*Proxy)}
}

// getOrCreate returns the existing proxy for oid, or constructs and
// installs a new one from methods if none exists yet.
func (r *proxyRegistry) getOrCreate(oid OID, ep *Endpoint, methods []string) (*Proxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byOID[oid]; ok {
		return p, false
	}
	p := newProxy(oid, ep, methods)
	r.byOID[oid] = p
	return p, true
}

func (r *proxyRegistry) lookup(oid OID) (*Proxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byOID[oid]
	return p, ok
}

func (r *proxyRegistry) handleFree(oid OID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byOID, oid)
}
