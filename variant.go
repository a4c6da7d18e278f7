package uia

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Element is an opaque reference to a UI element.
//
// Elements are tokens issued and released by the native automation
// layer. This package passes them through unchanged and never
// acquires or releases them.
type Element struct {
	token uint64
}

// ElementFromToken returns the Element for a native token.
func ElementFromToken(token uint64) Element { return Element{token} }

// Token returns the native token of e.
func (e Element) Token() uint64 { return e.token }

// Equal reports whether e and o are the same token.
func (e Element) Equal(o Element) bool { return e.token == o.token }

// IsZero reports whether e is the null element reference.
func (e Element) IsZero() bool { return e.token == 0 }

func (e Element) String() string {
	if e.IsZero() {
		return "element(null)"
	}
	return fmt.Sprintf("element(%#x)", e.token)
}

// Variant is a type-tagged value in the native wire representation.
//
// Only the payload field matching Type is meaningful. The zero
// Variant is empty, and marks a method out-parameter that has not
// been written yet.
type Variant struct {
	Type    Type
	Bool    bool
	Int     int32
	Double  float64
	String  string
	Element Element
}

// BoolVariant returns a Variant holding b.
func BoolVariant(b bool) Variant { return Variant{Type: TypeBool, Bool: b} }

// IntVariant returns a Variant holding i.
func IntVariant(i int32) Variant { return Variant{Type: TypeInt, Int: i} }

// DoubleVariant returns a Variant holding f.
func DoubleVariant(f float64) Variant { return Variant{Type: TypeDouble, Double: f} }

// StringVariant returns a Variant holding s.
func StringVariant(s string) Variant { return Variant{Type: TypeString, String: s} }

// ElementVariant returns a Variant holding e.
func ElementVariant(e Element) Variant { return Variant{Type: TypeElement, Element: e} }

// IsEmpty reports whether v holds no value.
func (v Variant) IsEmpty() bool { return v.Type == TypeInvalid }

// Value returns v's payload as a Go value of the canonical type for
// v.Type, or nil if v is empty.
func (v Variant) Value() any {
	switch v.Type {
	case TypeBool:
		return v.Bool
	case TypeInt:
		return v.Int
	case TypeDouble:
		return v.Double
	case TypeString:
		return v.String
	case TypeElement:
		return v.Element
	default:
		return nil
	}
}

// Format implements fmt.Formatter, so that the payload is printed
// rather than the whole union.
func (v Variant) Format(f fmt.State, verb rune) {
	switch v.Type {
	case TypeInvalid:
		fmt.Fprint(f, "<empty>")
	case TypeString:
		fmt.Fprintf(f, "%s(%s)", v.Type, strconv.Quote(v.String))
	default:
		fmt.Fprintf(f, "%s(%v)", v.Type, v.Value())
	}
}

// Encode converts v to a Variant of semantic type t.
//
// v's Go type must carry exactly t (see [TypeOf]); no numeric or
// string coercion is performed.
func Encode(v any, t Type) (Variant, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return Variant{}, typeErr(nil, "cannot encode nil as %s", t)
	}
	enc, err := encoderFor(rv.Type())
	if err != nil {
		return Variant{}, err
	}
	if enc.typ != t {
		return Variant{}, typeErr(rv.Type(), "value carries type %s, want %s", enc.typ, t)
	}
	return enc.fn(rv), nil
}

// Decode converts w to a Go value of the canonical Go type for t.
//
// w must be tagged with type t.
func Decode(w Variant, t Type) (any, error) {
	gt := t.GoType()
	if gt == nil {
		return nil, TypeError{t.String(), fmt.Errorf("not a valid automation type")}
	}
	dec, err := decoderFor(gt)
	if err != nil {
		return nil, err
	}
	ret := reflect.New(gt).Elem()
	if err := dec.fn(w, ret); err != nil {
		return nil, err
	}
	return ret.Interface(), nil
}

// A valueEncoder converts Go values of one type to Variants.
type valueEncoder struct {
	typ Type
	fn  func(reflect.Value) Variant
}

// A valueDecoder writes Variants of one semantic type into settable
// Go values of one Go type.
type valueDecoder struct {
	typ Type
	fn  func(Variant, reflect.Value) error
}

var (
	encoders cache[reflect.Type, valueEncoder]
	decoders cache[reflect.Type, valueDecoder]
)

func encoderFor(t reflect.Type) (ret valueEncoder, err error) {
	if ret, err := encoders.Get(t); err == nil {
		return ret, nil
	} else if !isNotFound(err) {
		return valueEncoder{}, err
	}
	defer func(t reflect.Type) {
		if err != nil {
			encoders.SetErr(t, err)
		} else {
			encoders.Set(t, ret)
		}
	}(t)

	typ, err := TypeOf(t)
	if err != nil {
		return valueEncoder{}, err
	}
	ret.typ = typ
	switch typ {
	case TypeBool:
		ret.fn = func(v reflect.Value) Variant { return BoolVariant(v.Bool()) }
	case TypeInt:
		ret.fn = func(v reflect.Value) Variant { return IntVariant(int32(v.Int())) }
	case TypeDouble:
		ret.fn = func(v reflect.Value) Variant { return DoubleVariant(v.Float()) }
	case TypeString:
		ret.fn = func(v reflect.Value) Variant { return StringVariant(v.String()) }
	case TypeElement:
		ret.fn = func(v reflect.Value) Variant { return ElementVariant(v.Interface().(Element)) }
	default:
		panic("unreachable")
	}
	return ret, nil
}

func decoderFor(t reflect.Type) (ret valueDecoder, err error) {
	if ret, err := decoders.Get(t); err == nil {
		return ret, nil
	} else if !isNotFound(err) {
		return valueDecoder{}, err
	}
	defer func(t reflect.Type) {
		if err != nil {
			decoders.SetErr(t, err)
		} else {
			decoders.Set(t, ret)
		}
	}(t)

	typ, err := TypeOf(t)
	if err != nil {
		return valueDecoder{}, err
	}
	ret.typ = typ
	check := func(w Variant) error {
		if w.Type != typ {
			return typeErr(t, "got wire value of type %s, want %s", w.Type, typ)
		}
		return nil
	}
	switch typ {
	case TypeBool:
		ret.fn = func(w Variant, v reflect.Value) error {
			if err := check(w); err != nil {
				return err
			}
			v.SetBool(w.Bool)
			return nil
		}
	case TypeInt:
		ret.fn = func(w Variant, v reflect.Value) error {
			if err := check(w); err != nil {
				return err
			}
			v.SetInt(int64(w.Int))
			return nil
		}
	case TypeDouble:
		ret.fn = func(w Variant, v reflect.Value) error {
			if err := check(w); err != nil {
				return err
			}
			v.SetFloat(w.Double)
			return nil
		}
	case TypeString:
		ret.fn = func(w Variant, v reflect.Value) error {
			if err := check(w); err != nil {
				return err
			}
			v.SetString(w.String)
			return nil
		}
	case TypeElement:
		ret.fn = func(w Variant, v reflect.Value) error {
			if err := check(w); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(w.Element))
			return nil
		}
	default:
		panic("unreachable")
	}
	return ret, nil
}

// Equal reports whether v and o hold the same typed value. Doubles
// compare by bit pattern, so that NaN equals itself and -0 differs
// from +0.
func (v Variant) Equal(o Variant) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeInvalid:
		return true
	case TypeBool:
		return v.Bool == o.Bool
	case TypeInt:
		return v.Int == o.Int
	case TypeDouble:
		return math.Float64bits(v.Double) == math.Float64bits(o.Double)
	case TypeString:
		return v.String == o.String
	case TypeElement:
		return v.Element == o.Element
	default:
		return false
	}
}
