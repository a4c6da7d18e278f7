package wire

import (
	"fmt"
	"math"

	"github.com/danderson/uia"
)

// An Encoder writes a bridge message to a byte slice.
//
// Methods insert padding as needed to align values to their size,
// except for [Encoder.Write] which outputs bytes verbatim.
type Encoder struct {
	// Order is the byte order to use when encoding multi-byte values.
	Order ByteOrder
	// Out is the encoded output.
	Out []byte
}

// Pad inserts padding bytes as needed to make the message a multiple
// of align bytes. If the message is already correctly aligned, no
// padding is inserted.
func (e *Encoder) Pad(align int) {
	extra := len(e.Out) % align
	if extra == 0 {
		return
	}
	var pad [8]byte
	e.Out = append(e.Out, pad[:align-extra]...)
}

// Write writes bs as-is to the output. It is the caller's
// responsibility to ensure correct padding.
func (e *Encoder) Write(bs []byte) {
	e.Out = append(e.Out, bs...)
}

// String writes a length-prefixed, NUL-terminated string.
func (e *Encoder) String(s string) {
	e.Uint32(uint32(len(s)))
	e.Out = append(e.Out, s...)
	e.Out = append(e.Out, 0)
}

// Uint8 writes a uint8.
func (e *Encoder) Uint8(u8 uint8) {
	e.Out = append(e.Out, u8)
}

// Uint32 writes a uint32.
func (e *Encoder) Uint32(u32 uint32) {
	e.Pad(4)
	e.Out = e.Order.AppendUint32(e.Out, u32)
}

// Uint64 writes a uint64.
func (e *Encoder) Uint64(u64 uint64) {
	e.Pad(8)
	e.Out = e.Order.AppendUint64(e.Out, u64)
}

// Bool writes a bool as a 32-bit 0 or 1.
func (e *Encoder) Bool(b bool) {
	if b {
		e.Uint32(1)
	} else {
		e.Uint32(0)
	}
}

// Int32 writes an int32.
func (e *Encoder) Int32(i int32) {
	e.Uint32(uint32(i))
}

// Float64 writes a float64 as its IEEE 754 bit pattern.
func (e *Encoder) Float64(f float64) {
	e.Uint64(math.Float64bits(f))
}

// GUID writes a GUID as 16 raw bytes.
func (e *Encoder) GUID(id uia.GUID) {
	e.Out = append(e.Out, id[:]...)
}

// Variant writes a type-tagged value. Empty variants are written as
// a bare zero tag.
func (e *Encoder) Variant(v uia.Variant) error {
	e.Pad(8)
	e.Uint8(uint8(v.Type))
	switch v.Type {
	case uia.TypeInvalid:
	case uia.TypeBool:
		e.Bool(v.Bool)
	case uia.TypeInt:
		e.Int32(v.Int)
	case uia.TypeDouble:
		e.Float64(v.Double)
	case uia.TypeString:
		e.String(v.String)
	case uia.TypeElement:
		e.Uint64(v.Element.Token())
	default:
		return fmt.Errorf("cannot encode variant of unknown type %s", v.Type)
	}
	return nil
}

// Variants writes a variant buffer.
func (e *Encoder) Variants(vs []uia.Variant) error {
	return e.Array(func() error {
		for _, v := range vs {
			if err := e.Variant(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Array writes an array to the output.
//
// Array elements must be added within the provided elements
// function. The array is prefixed with its length in bytes, and its
// elements start 8-byte aligned.
func (e *Encoder) Array(elements func() error) error {
	e.Pad(4)
	offset := len(e.Out)
	e.Uint32(0)
	e.Pad(8)

	start := len(e.Out)
	err := elements()
	end := len(e.Out)
	e.Order.PutUint32(e.Out[offset:], uint32(end-start))

	return err
}

// ByteOrderFlag writes the byte order flag ('l' or 'B') that
// matches [Encoder.Order].
func (e *Encoder) ByteOrderFlag() {
	e.Write([]byte{e.Order.flag()})
}
