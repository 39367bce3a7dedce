package rpc

import (
	"context"
	"strings"
	"sync"
)

// Stub is the local record for one object this endpoint has advertised to
// its peer: its oid, the application object, and the method snapshot
// taken when it was first stubbed.
type Stub struct {
	oid     OID
	target  Stubbable
	methods []string
	getters map[string]struct{}
	calls   map[string]struct{}
}

func newStub(oid OID, target Stubbable, methods []string) *Stub {
	s := &Stub{
		oid:     oid,
		target:  target,
		methods: methods,
		getters: make(map[string]struct{}),
		calls:   make(map[string]struct{}),
	}
	for _, m := range methods {
		if name, ok := strings.CutPrefix(m, "get "); ok {
			s.getters[name] = struct{}{}
		} else {
			s.calls[name] = struct{}{}
		}
	}
	return s
}

// Invoke dispatches one call/get/set against the stub's target, enforcing
// the method-list and arity contract of spec §4.1.
func (s *Stub) Invoke(ctx context.Context, method string, args []any) (any, error) {
	switch {
	case strings.HasPrefix(method, "get "):
		name := method[len("get "):]
		if _, ok := s.getters[name]; !ok {
			return nil, &InvalidMethodError{Oid: s.oid, Method: method}
		}
		if len(args) != 0 {
			return nil, &WrongArityError{Method: method, Got: len(args), Want: 0}
		}
		return s.target.RPCInvoke(ctx, method, nil)

	case strings.HasPrefix(method, "set "):
		name := method[len("set "):]
		if _, ok := s.getters[name]; !ok {
			return nil, &InvalidMethodError{Oid: s.oid, Method: method}
		}
		if len(args) != 1 {
			return nil, &WrongArityError{Method: method, Got: len(args), Want: 1}
		}
		return s.target.RPCInvoke(ctx, method, args)

	default:
		if _, ok := s.calls[method]; !ok {
			return nil, &InvalidMethodError{Oid: s.oid, Method: method}
		}
		return s.target.RPCInvoke(ctx, method, args)
	}
}

// stubRegistry owns every stub this endpoint has advertised, indexed both
// by oid and, while the stub is live, by the object's own identity so
// that repeated AddStub calls are idempotent (spec §8 property 3).
//
// The identity map is cleared synchronously by the free token rather than
// held weakly; see DESIGN.md for why that is the right tradeoff here.
type stubRegistry struct {
	mu       sync.Mutex
	gen      *oidGenerator
	byOID    map[OID]*Stub
	byObject map[Stubbable]*Stub
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		gen:      newOIDGenerator(),
		byOID:    make(map[OID]*Stub),
		byObject: make(map[Stubbable]*Stub),
	}
}

// addStub implements spec §4.1's AddStub. It returns the stub, whether a
// new oid was allocated (and therefore must be announced to the peer),
// and a free function the caller may invoke to release the oid.
func (r *stubRegistry) addStub(obj Stubbable) (stub *Stub, freshOID bool, free func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// byObject and byOID are always updated together (see freeFunc and
	// handleFree), so an entry here is always still live: a freed object
	// has no byObject entry at all, and the next addStub for it falls
	// through to mint a brand new oid.
	if existing, ok := r.byObject[obj]; ok {
		return existing, false, r.freeFunc(existing.oid, obj), nil
	}

	methods := obj.RPCMethods()
	if len(methods) == 0 {
		return nil, false, nil, &invalidStubbableError{}
	}

	oid := r.gen.next()
	stub = newStub(oid, obj, methods)
	r.byOID[oid] = stub
	r.byObject[obj] = stub

	free = r.freeFunc(oid, obj)
	if f, ok := obj.(Freeable); ok {
		f.SetRPCFree(free)
	}
	return stub, true, free, nil
}

func (r *stubRegistry) freeFunc(oid OID, obj Stubbable) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byOID, oid)
		delete(r.byObject, obj)
	}
}

// lookup implements spec §4.1's lookup.
func (r *stubRegistry) lookup(oid OID) (*Stub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byOID[oid]
	return s, ok
}

// handleFree removes oid from the registry if it is present there,
// without touching the identity map entry for any other oid.
func (r *stubRegistry) handleFree(oid OID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stub, ok := r.byOID[oid]
	if !ok {
		return
	}
	delete(r.byOID, oid)
	delete(r.byObject, stub.target)
}
