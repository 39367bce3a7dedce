package rpc

// oidRef is the wire shape of an object reference: exactly {"oid": "..."},
// distinguishable from ordinary data by having that one key and nothing
// else (spec §6).
type oidRef struct {
	Oid string
}

func asOIDRef(v any) (OID, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	raw, ok := m["oid"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	return OID(s), true
}

func oidRefValue(oid OID) map[string]any {
	return map[string]any{"oid": string(oid)}
}

// marshal rewrites v into wire form (spec §4.3). Every Stubbable it
// discovers that does not already have a live oid is auto-registered via
// the stub registry; those freshly-minted stubs are appended to newStubs
// in discovery order so the caller can announce them, in that order,
// before writing the frame that references them (spec §5's ordering
// invariant).
func (e *Endpoint) marshal(v any, newStubs *[]*Stub) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil

	case *Proxy:
		if val.ep != e {
			return nil, &InvalidObjectError{Oid: val.oid}
		}
		if _, ok := e.proxies.lookup(val.oid); !ok {
			return nil, &InvalidObjectError{Oid: val.oid}
		}
		return oidRefValue(val.oid), nil

	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			m, err := e.marshal(el, newStubs)
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, el := range val {
			m, err := e.marshal(el, newStubs)
			if err != nil {
				return nil, err
			}
			out[k] = m
		}
		return out, nil

	case Stubbable:
		stub, fresh, _, err := e.stubs.addStub(val)
		if err != nil {
			return nil, err
		}
		if fresh {
			*newStubs = append(*newStubs, stub)
		}
		return oidRefValue(stub.oid), nil

	default:
		// Primitives (bool, string, the float64/int family, etc.) and any
		// other opaque data the wire codec can already carry structurally.
		return val, nil
	}
}

// unmarshal mirrors marshal, resolving {oid} descriptors back to the
// local object they name: the owning Stubbable's target if this
// endpoint owns the stub, otherwise the Proxy standing in for it.
func (e *Endpoint) unmarshal(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil

	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			u, err := e.unmarshal(el)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil

	case map[string]any:
		if oid, ok := asOIDRef(val); ok {
			if stub, ok := e.stubs.lookup(oid); ok {
				return stub.target, nil
			}
			if proxy, ok := e.proxies.lookup(oid); ok {
				return proxy, nil
			}
			return nil, &InvalidObjectError{Oid: oid}
		}
		out := make(map[string]any, len(val))
		for k, el := range val {
			u, err := e.unmarshal(el)
			if err != nil {
				return nil, err
			}
			out[k] = u
		}
		return out, nil

	default:
		return val, nil
	}
}

func (e *Endpoint) unmarshalAll(vs []any) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		u, err := e.unmarshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}
