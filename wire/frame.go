// Package wire defines the on-the-wire frame shape exchanged between two
// RPC endpoints and the codec that serialises it.
package wire

// Control discriminates the four frame kinds the engine exchanges.
type Control string

const (
	ControlNewObject Control = "new-object"
	ControlCall       Control = "call"
	ControlReply      Control = "reply"
	ControlFree       Control = "free"
)

// Frame is the engine's in-memory rendering of one wire message. Only the
// fields relevant to Control are meaningful; the codec omits the rest when
// encoding.
type Frame struct {
	Control Control

	// new-object
	Obj     string
	Methods []string

	// call
	ID     int64
	Method string
	Params []any

	// reply
	HasReply bool
	Reply    any
	HasError bool
	Error    string // RemoteErrorClass
	Message  string
	Stack    string
	Code     string

	// free
	// Obj is reused for the freed oid.

	// Malformed is set by the codec when a frame could be decoded at the
	// transport level but not interpreted as any of the four control
	// kinds above (spec §4.5: "anything else: Ignore" / "malformed
	// frames ... never crash the endpoint"). A malformed frame carries no
	// other meaningful fields.
	Malformed       bool
	MalformedReason string
}
