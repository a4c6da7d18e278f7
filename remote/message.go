package remote

import (
	"bytes"
	"fmt"
	"io"

	"github.com/danderson/uia"
	"github.com/danderson/uia/wire"
)

// msgType is the type of a bridge message.
type msgType byte

const (
	msgTypeCall msgType = iota + 1
	msgTypeReturn
	msgTypeError
)

// op is the operation requested by a call message.
type op byte

const (
	opGetProperty op = iota + 1
	opGetStandalone
	opCallMethod
	opList
)

func (o op) String() string {
	switch o {
	case opGetProperty:
		return "get_property"
	case opGetStandalone:
		return "get_standalone"
	case opCallMethod:
		return "call_method"
	case opList:
		return "list"
	default:
		return fmt.Sprintf("op(%d)", byte(o))
	}
}

const protocolVersion = 1

// headerLen is the encoded size of a header. It is a multiple of 8,
// so body alignment is the same relative to the body or the whole
// message.
const headerLen = 16

// header is a bridge message header.
type header struct {
	Type    msgType
	Op      op
	Version uint8
	// Serial is the serial for this message. It must be non-zero.
	Serial uint32
	// ReplySerial is the serial of the call being answered. Required
	// for msgTypeReturn and msgTypeError.
	ReplySerial uint32
	// Length is the length of the message body.
	Length uint32
}

// Valid checks that the message header is valid for its message
// type.
func (h *header) Valid() error {
	if h.Version != protocolVersion {
		return fmt.Errorf("unsupported protocol version %d", h.Version)
	}
	if h.Serial == 0 {
		return fmt.Errorf("invalid message with zero Serial")
	}
	if h.Length > wire.MaxLength {
		return fmt.Errorf("message body length %d exceeds maximum of %d", h.Length, wire.MaxLength)
	}
	switch h.Type {
	case msgTypeCall:
		if h.Op < opGetProperty || h.Op > opList {
			return fmt.Errorf("unknown operation %s", h.Op)
		}
	case msgTypeReturn, msgTypeError:
		if h.ReplySerial == 0 {
			return fmt.Errorf("missing required header field ReplySerial")
		}
	default:
		return fmt.Errorf("invalid message type %d", h.Type)
	}
	return nil
}

func (h *header) encode(e *wire.Encoder) {
	e.ByteOrderFlag()
	e.Uint8(uint8(h.Type))
	e.Uint8(uint8(h.Op))
	e.Uint8(h.Version)
	e.Uint32(h.Serial)
	e.Uint32(h.ReplySerial)
	e.Uint32(h.Length)
}

func (h *header) decode(d *wire.Decoder) error {
	if err := d.ByteOrderFlag(); err != nil {
		return err
	}
	var err error
	u8 := func() uint8 {
		if err != nil {
			return 0
		}
		var ret uint8
		ret, err = d.Uint8()
		return ret
	}
	u32 := func() uint32 {
		if err != nil {
			return 0
		}
		var ret uint32
		ret, err = d.Uint32()
		return ret
	}
	h.Type = msgType(u8())
	h.Op = op(u8())
	h.Version = u8()
	h.Serial = u32()
	h.ReplySerial = u32()
	h.Length = u32()
	return err
}

// msg is a received message.
type msg struct {
	header
	order wire.ByteOrder
	body  []byte
}

func (m *msg) Decoder() *wire.Decoder {
	return &wire.Decoder{
		Order: m.order,
		In:    bytes.NewReader(m.body),
	}
}

// readMsg reads one complete message from r.
func readMsg(r io.Reader) (*msg, error) {
	dec := wire.Decoder{
		Order: wire.NativeEndian,
		In:    r,
	}
	var ret msg
	if err := ret.header.decode(&dec); err != nil {
		return nil, err
	}
	if err := ret.Valid(); err != nil {
		return nil, fmt.Errorf("received invalid header: %w", err)
	}
	ret.order = dec.Order
	var err error
	ret.body, err = dec.Read(int(ret.Length))
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// encodeMsg encodes a complete message with the given header and
// body into e.Out, which is reset first. body may be nil. Bodies
// longer than [wire.MaxLength] are rejected, since the peer would
// drop the connection on receiving them.
func encodeMsg(e *wire.Encoder, hdr *header, body func(*wire.Encoder) error) error {
	e.Out = e.Out[:0]
	hdr.Version = protocolVersion
	hdr.encode(e)
	if len(e.Out) != headerLen {
		panic(fmt.Sprintf("encoded header is %d bytes, want %d", len(e.Out), headerLen))
	}
	if body != nil {
		if err := body(e); err != nil {
			return err
		}
	}
	n := len(e.Out) - headerLen
	if n > wire.MaxLength {
		return messageTooLongError{n}
	}
	hdr.Length = uint32(n)
	e.Order.PutUint32(e.Out[headerLen-4:], hdr.Length)
	return nil
}

// maxErrorDetail bounds the detail string of error replies, so that
// an error reply always fits in a message.
const maxErrorDetail = 64 << 10

func encodeError(name string, err error) func(*wire.Encoder) error {
	detail := err.Error()
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail]
	}
	return func(e *wire.Encoder) error {
		e.String(name)
		e.String(detail)
		return nil
	}
}

// Request bodies.

type propertyRequest struct {
	Pattern uia.GUID
	Index   int32
	Cached  bool
	Type    uia.Type
}

func (r *propertyRequest) encode(e *wire.Encoder) error {
	e.GUID(r.Pattern)
	e.Int32(r.Index)
	e.Bool(r.Cached)
	e.Uint8(uint8(r.Type))
	return nil
}

func (r *propertyRequest) decode(d *wire.Decoder) (err error) {
	if r.Pattern, err = d.GUID(); err != nil {
		return err
	}
	if r.Index, err = d.Int32(); err != nil {
		return err
	}
	if r.Cached, err = d.Bool(); err != nil {
		return err
	}
	t, err := d.Uint8()
	r.Type = uia.Type(t)
	return err
}

type methodRequest struct {
	Pattern uia.GUID
	Index   int32
	Params  []uia.Variant
}

func (r *methodRequest) encode(e *wire.Encoder) error {
	e.GUID(r.Pattern)
	e.Int32(r.Index)
	return e.Variants(r.Params)
}

func (r *methodRequest) decode(d *wire.Decoder) (err error) {
	if r.Pattern, err = d.GUID(); err != nil {
		return err
	}
	if r.Index, err = d.Int32(); err != nil {
		return err
	}
	r.Params, err = d.Variants()
	return err
}

// Hosted describes a pattern instance hosted by a [Server].
type Hosted struct {
	// ID is the hosted pattern's GUID.
	ID uia.GUID
	// Pattern is the hosted pattern's name.
	Pattern string
}

func encodeHosted(e *wire.Encoder, hs []Hosted) error {
	return e.Array(func() error {
		for _, h := range hs {
			e.Pad(8)
			e.GUID(h.ID)
			e.String(h.Pattern)
		}
		return nil
	})
}

func decodeHosted(d *wire.Decoder) ([]Hosted, error) {
	var ret []Hosted
	_, err := d.Array(func(int) error {
		if err := d.Pad(8); err != nil {
			return err
		}
		var (
			h   Hosted
			err error
		)
		if h.ID, err = d.GUID(); err != nil {
			return err
		}
		if h.Pattern, err = d.String(); err != nil {
			return err
		}
		ret = append(ret, h)
		return nil
	})
	return ret, err
}
