package wire

import (
	"fmt"
	"io"
	"math"

	"github.com/danderson/uia"
)

// MaxLength is the largest string or array length the decoder
// accepts. Bridge message bodies are bounded by it too.
const MaxLength = 1 << 24

// A Decoder reads a bridge message from a byte stream.
//
// Methods advance the read cursor as needed to skip alignment
// padding, except for [Decoder.Read] which reads bytes verbatim.
type Decoder struct {
	// Order is the byte order to use when reading multi-byte values.
	Order ByteOrder
	// In is the input stream to read.
	In io.Reader

	// offset is the number of bytes consumed off the front of In,
	// modulo 8. Alignment depends on the global offset within the
	// message, and cannot be derived from local context partway
	// through decoding.
	offset int
}

// Pad consumes padding bytes as needed to make the next read happen
// at a multiple of align bytes. If the decoder is already correctly
// aligned, no bytes are consumed.
func (d *Decoder) Pad(align int) error {
	extra := d.offset % align
	if extra == 0 {
		return nil
	}
	skip := align - extra
	if _, err := io.CopyN(io.Discard, d.In, int64(skip)); err != nil {
		return err
	}
	d.offset = (d.offset + skip) % 8
	return nil
}

// Read reads n bytes, with no framing or padding.
func (d *Decoder) Read(n int) ([]byte, error) {
	bs := make([]byte, n)
	if _, err := io.ReadFull(d.In, bs); err != nil {
		return nil, err
	}
	d.offset = (d.offset + n) % 8
	return bs, nil
}

func (d *Decoder) length() (int, error) {
	ln, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if ln > MaxLength {
		return 0, fmt.Errorf("length %d exceeds maximum of %d", ln, MaxLength)
	}
	return int(ln), nil
}

// String reads a length-prefixed, NUL-terminated string.
func (d *Decoder) String() (string, error) {
	ln, err := d.length()
	if err != nil {
		return "", err
	}
	ret, err := d.Read(ln + 1)
	if err != nil {
		return "", err
	}
	if ret[ln] != 0 {
		return "", fmt.Errorf("string is not NUL-terminated")
	}
	return string(ret[:ln]), nil
}

// Uint8 reads a uint8.
func (d *Decoder) Uint8() (uint8, error) {
	bs, err := d.Read(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// Uint32 reads a uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.Pad(4); err != nil {
		return 0, err
	}
	bs, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(bs), nil
}

// Uint64 reads a uint64.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.Pad(8); err != nil {
		return 0, err
	}
	bs, err := d.Read(8)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint64(bs), nil
}

// Bool reads a bool written by [Encoder.Bool].
func (d *Decoder) Bool() (bool, error) {
	u, err := d.Uint32()
	if err != nil {
		return false, err
	}
	switch u {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value %d", u)
	}
}

// Int32 reads an int32.
func (d *Decoder) Int32() (int32, error) {
	u, err := d.Uint32()
	return int32(u), err
}

// Float64 reads a float64.
func (d *Decoder) Float64() (float64, error) {
	u, err := d.Uint64()
	return math.Float64frombits(u), err
}

// GUID reads a GUID written by [Encoder.GUID].
func (d *Decoder) GUID() (uia.GUID, error) {
	var ret uia.GUID
	bs, err := d.Read(len(ret))
	if err != nil {
		return ret, err
	}
	copy(ret[:], bs)
	return ret, nil
}

// Variant reads a type-tagged value.
func (d *Decoder) Variant() (uia.Variant, error) {
	if err := d.Pad(8); err != nil {
		return uia.Variant{}, err
	}
	tag, err := d.Uint8()
	if err != nil {
		return uia.Variant{}, err
	}
	switch t := uia.Type(tag); t {
	case uia.TypeInvalid:
		return uia.Variant{}, nil
	case uia.TypeBool:
		b, err := d.Bool()
		return uia.BoolVariant(b), err
	case uia.TypeInt:
		i, err := d.Int32()
		return uia.IntVariant(i), err
	case uia.TypeDouble:
		f, err := d.Float64()
		return uia.DoubleVariant(f), err
	case uia.TypeString:
		s, err := d.String()
		return uia.StringVariant(s), err
	case uia.TypeElement:
		tok, err := d.Uint64()
		return uia.ElementVariant(uia.ElementFromToken(tok)), err
	default:
		return uia.Variant{}, fmt.Errorf("unknown variant type tag %d", tag)
	}
}

// Variants reads a variant buffer.
func (d *Decoder) Variants() ([]uia.Variant, error) {
	ret := []uia.Variant{}
	_, err := d.Array(func(int) error {
		v, err := d.Variant()
		if err != nil {
			return err
		}
		ret = append(ret, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Array reads an array.
//
// readElement is called repeatedly while there is array data
// remaining to process, passing in the array index of the element to
// be decoded. readElement must completely consume all array bytes
// from the input, and must not read beyond the end of the array data.
//
// Array returns the number of array elements that were processed.
func (d *Decoder) Array(readElement func(int) error) (int, error) {
	ln, err := d.length()
	if err != nil {
		return 0, err
	}
	if err := d.Pad(8); err != nil {
		return 0, err
	}
	if ln == 0 {
		return 0, nil
	}
	outer := d.In
	limit := &io.LimitedReader{
		R: outer,
		N: int64(ln),
	}
	d.In = limit
	defer func() {
		d.In = outer
	}()
	idx := 0
	for limit.N > 0 {
		if err := readElement(idx); err != nil {
			return idx, err
		}
		idx++
	}
	return idx, nil
}

// ByteOrderFlag reads a byte order flag, and sets [Decoder.Order] to
// match it.
func (d *Decoder) ByteOrderFlag() error {
	v, err := d.Uint8()
	if err != nil {
		return err
	}
	d.Order, err = orderForFlag(v)
	return err
}
