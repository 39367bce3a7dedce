package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"

	"github.com/golang/snappy"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxFrameLen bounds a single encoded frame; it exists only to keep a
// corrupt length prefix from causing an unbounded allocation.
const maxFrameLen = 64 << 20

// UseSnappy toggles whether Encode ever considers the snappy-compressed
// form of a payload. It is a package-level switch, in the style of the
// reference codec's own compression toggle, so a deployment can disable
// compression without threading a flag through every Transport.
var UseSnappy = true

// toStruct renders a Frame as the dynamically-shaped envelope structpb can
// carry. A fixed protobuf message schema cannot represent Params/Reply,
// since those are arbitrary application data (see SPEC_FULL.md §10).
func toStruct(f Frame) (*structpb.Struct, error) {
	env := map[string]any{"control": string(f.Control)}

	switch f.Control {
	case ControlNewObject:
		env["obj"] = f.Obj
		methods := make([]any, len(f.Methods))
		for i, m := range f.Methods {
			methods[i] = m
		}
		env["methods"] = methods

	case ControlCall:
		env["id"] = strconv.FormatInt(f.ID, 10)
		env["obj"] = f.Obj
		env["method"] = f.Method
		params := f.Params
		if params == nil {
			params = []any{}
		}
		env["params"] = params

	case ControlReply:
		env["id"] = strconv.FormatInt(f.ID, 10)
		if f.HasError {
			env["error"] = f.Error
			if f.Message != "" {
				env["message"] = f.Message
			}
			if f.Stack != "" {
				env["stack"] = f.Stack
			}
			if f.Code != "" {
				env["code"] = f.Code
			}
		} else if f.HasReply {
			env["reply"] = f.Reply
		}

	case ControlFree:
		env["obj"] = f.Obj

	default:
		return nil, fmt.Errorf("wire: unknown control %q", f.Control)
	}

	s, err := structpb.NewStruct(env)
	if err != nil {
		return nil, fmt.Errorf("wire: encode frame: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct) (Frame, error) {
	m := s.AsMap()

	control, _ := m["control"].(string)
	f := Frame{Control: Control(control)}

	switch f.Control {
	case ControlNewObject:
		f.Obj, _ = m["obj"].(string)
		if raw, ok := m["methods"].([]any); ok {
			f.Methods = make([]string, len(raw))
			for i, v := range raw {
				f.Methods[i], _ = v.(string)
			}
		}

	case ControlCall:
		id, ok := parseID(m["id"])
		if !ok {
			return malformed("call frame has no valid id"), nil
		}
		f.ID = id
		f.Obj, _ = m["obj"].(string)
		f.Method, _ = m["method"].(string)
		if raw, ok := m["params"].([]any); ok {
			f.Params = raw
		} else {
			return malformed("call frame has non-list params"), nil
		}

	case ControlReply:
		id, ok := parseID(m["id"])
		if !ok {
			return malformed("reply frame has no valid id"), nil
		}
		f.ID = id
		if errClass, ok := m["error"].(string); ok {
			f.HasError = true
			f.Error = errClass
			f.Message, _ = m["message"].(string)
			f.Stack, _ = m["stack"].(string)
			f.Code, _ = m["code"].(string)
		} else if v, ok := m["reply"]; ok {
			f.HasReply = true
			f.Reply = v
		}

	case ControlFree:
		f.Obj, _ = m["obj"].(string)

	default:
		return malformed(fmt.Sprintf("unknown control %q", control)), nil
	}

	return f, nil
}

// malformed builds a frame the router will log and drop rather than act
// on (spec §4.5: a frame that cannot be interpreted never crashes the
// endpoint).
func malformed(reason string) Frame {
	return Frame{Malformed: true, MalformedReason: reason}
}

func parseID(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Encode renders f as a self-delimited byte frame: a one-byte compression
// flag, the big-endian CRC32 of the payload, a varint payload length, and
// then the payload itself, the protobuf encoding of its envelope,
// snappy-compressed when that makes it shorter. This mirrors the reference RPC
// codec's length/compress/checksum pipeline (see DESIGN.md), generalised
// from a fixed header+body pair to one dynamically-shaped envelope.
func Encode(f Frame) ([]byte, error) {
	s, err := toStruct(f)
	if err != nil {
		return nil, err
	}
	raw, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal frame: %w", err)
	}

	payload := raw
	flag := byte(0)
	if UseSnappy {
		compressed := snappy.Encode(nil, raw)
		if len(compressed) < len(raw) {
			payload = compressed
			flag = 1
		}
	}

	checksum := crc32.ChecksumIEEE(payload)

	var hdr [1 + 4 + binary.MaxVarintLen64]byte
	hdr[0] = flag
	binary.BigEndian.PutUint32(hdr[1:5], checksum)
	n := binary.PutUvarint(hdr[5:], uint64(len(payload)))

	out := make([]byte, 0, 5+n+len(payload))
	out = append(out, hdr[:5+n]...)
	out = append(out, payload...)
	return out, nil
}

// WriteFrame writes one Encode-d frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	buf, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadFrame reads one frame previously written by WriteFrame or Encode.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	flag := hdr[0]
	checksum := binary.BigEndian.Uint32(hdr[1:5])

	size, err := binary.ReadUvarint(byteReader{r})
	if err != nil {
		return Frame{}, fmt.Errorf("wire: read frame length: %w", err)
	}
	if size > maxFrameLen {
		return Frame{}, fmt.Errorf("wire: frame of %d bytes exceeds limit", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame body: %w", err)
	}

	if crc32.ChecksumIEEE(payload) != checksum {
		return Frame{}, fmt.Errorf("wire: checksum mismatch")
	}

	raw := payload
	if flag == 1 {
		raw, err = snappy.Decode(nil, payload)
		if err != nil {
			return Frame{}, fmt.Errorf("wire: decompress frame: %w", err)
		}
	}

	s := &structpb.Struct{}
	if err := proto.Unmarshal(raw, s); err != nil {
		return Frame{}, fmt.Errorf("wire: unmarshal frame: %w", err)
	}
	return fromStruct(s)
}

// byteReader adapts an io.Reader to io.ByteReader one byte at a time, for
// binary.ReadUvarint. Frame headers are read rarely enough relative to
// payload size that this is not worth buffering.
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
