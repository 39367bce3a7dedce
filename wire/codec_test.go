package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestWriteReadFrameNewObject(t *testing.T) {
	f := Frame{
		Control: ControlNewObject,
		Obj:     "host-1:1:1",
		Methods: []string{"frobnicate", "get value"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.Control, got.Control)
	assert.Equal(t, f.Obj, got.Obj)
	assert.Equal(t, f.Methods, got.Methods)
}

func TestWriteReadFrameCall(t *testing.T) {
	f := Frame{
		Control: ControlCall,
		ID:      9223372036854775807,
		Obj:     "host-1:1:1",
		Method:  "frobnicate",
		Params:  []any{"x", 7.0, nil},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Method, got.Method)
	assert.Equal(t, f.Params, got.Params)
}

func TestWriteReadFrameReplyError(t *testing.T) {
	f := Frame{
		Control:  ControlReply,
		ID:       42,
		HasError: true,
		Error:    "TypeError",
		Message:  "bad argument",
		Code:     "EBADARG",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.True(t, got.HasError)
	assert.False(t, got.HasReply)
	assert.Equal(t, f.Error, got.Error)
	assert.Equal(t, f.Message, got.Message)
	assert.Equal(t, f.Code, got.Code)
}

func TestWriteReadFrameFree(t *testing.T) {
	f := Frame{Control: ControlFree, Obj: "host-1:1:3"}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, ControlFree, got.Control)
	assert.Equal(t, f.Obj, got.Obj)
}

// A call frame whose id cannot be parsed decodes to a Malformed frame
// rather than a transport-level error, since the bytes themselves are
// intact protobuf; only their meaning is unrecognised.
func TestFromStructMalformedCallID(t *testing.T) {
	f, err := fromStructForTest(map[string]any{
		"control": string(ControlCall),
		"id":      "not-a-number",
		"obj":     "host-1:1:1",
		"method":  "frobnicate",
		"params":  []any{},
	})
	require.NoError(t, err)
	assert.True(t, f.Malformed)
}

func TestFromStructUnknownControl(t *testing.T) {
	f, err := fromStructForTest(map[string]any{"control": "explode"})
	require.NoError(t, err)
	assert.True(t, f.Malformed)
}

func TestEncodeUnknownControlErrors(t *testing.T) {
	_, err := Encode(Frame{Control: Control("bogus")})
	assert.Error(t, err)
}

// ReadFrame still surfaces a hard error for byte-level corruption, as
// opposed to the semantic-level Malformed flag above.
func TestReadFrameChecksumMismatch(t *testing.T) {
	buf, err := Encode(Frame{Control: ControlFree, Obj: "x"})
	require.NoError(t, err)
	// Flip the first payload byte, after the 5-byte flag+checksum header
	// and the 1-byte length varint, so the checksum no longer matches.
	require.Greater(t, len(buf), 6)
	buf[6] ^= 0xFF

	_, err = ReadFrame(bytes.NewReader(buf))
	assert.Error(t, err)
}

func fromStructForTest(m map[string]any) (Frame, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return Frame{}, err
	}
	return fromStruct(s)
}
