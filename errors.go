package rpc

import "fmt"

// ErrClosedEndpoint is returned by Call and by AddStub when the endpoint
// has already been closed. It carries the ERR_SOCKET_CLOSED code.
var ErrClosedEndpoint = &closedEndpointError{}

const codeSocketClosed = "ERR_SOCKET_CLOSED"

type closedEndpointError struct{}

func (e *closedEndpointError) Error() string { return "rpc: endpoint is closed" }
func (e *closedEndpointError) Code() string  { return codeSocketClosed }

// InvalidObjectError reports an oid reference that resolves to neither a
// live stub nor a live proxy. It carries the ENXIO code.
type InvalidObjectError struct {
	Oid OID
}

func (e *InvalidObjectError) Error() string {
	return fmt.Sprintf("rpc: no such object %q", e.Oid)
}
func (e *InvalidObjectError) Code() string { return "ENXIO" }

// InvalidMethodError reports a method or getter name absent from the
// target's method snapshot.
type InvalidMethodError struct {
	Oid    OID
	Method string
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("rpc: object %q has no method %q", e.Oid, e.Method)
}

// WrongArityError reports a getter called with arguments, or a setter
// called with other than exactly one argument.
type WrongArityError struct {
	Method string
	Got    int
	Want   int
}

func (e *WrongArityError) Error() string {
	return fmt.Sprintf("rpc: %s expects %d argument(s), got %d", e.Method, e.Want, e.Got)
}

// MalformedFrameError reports a frame that could not be interpreted: a
// missing id, a non-list params, or other structural defect.
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("rpc: malformed frame: %s", e.Reason)
}

// RemoteErrorClass classifies a remote-thrown error the way the wire
// protocol's reply.error field does.
type RemoteErrorClass string

const (
	RemoteSyntaxError RemoteErrorClass = "SyntaxError"
	RemoteTypeError   RemoteErrorClass = "TypeError"
	RemoteGenericError RemoteErrorClass = "Error"
)

// RemoteError is the error value a caller's pending call is rejected with
// when the peer's stub method returned an error instead of a value.
type RemoteError struct {
	Class   RemoteErrorClass
	Message string
	Stack   string
	Code    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// invalidStubbableError is raised by AddStub when the target's method
// snapshot is empty.
type invalidStubbableError struct{}

func (e *invalidStubbableError) Error() string {
	return "rpc: object exposes no methods and cannot be stubbed"
}
