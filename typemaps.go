package uia

import (
	"fmt"
	"reflect"
)

// Type is a semantic value type that can cross the automation
// boundary.
type Type uint8

const (
	// TypeInvalid is the zero Type. It is the type of an empty
	// [Variant].
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeDouble
	TypeString
	TypeElement
)

func (t Type) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeElement:
		return "element"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the five supported semantic
// types.
func (t Type) Valid() bool {
	return t >= TypeBool && t <= TypeElement
}

var (
	elementType = reflect.TypeFor[Element]()
	errorType   = reflect.TypeFor[error]()

	// typeToGo maps each semantic type to its canonical Go type.
	typeToGo = map[Type]reflect.Type{
		TypeBool:    reflect.TypeFor[bool](),
		TypeInt:     reflect.TypeFor[int32](),
		TypeDouble:  reflect.TypeFor[float64](),
		TypeString:  reflect.TypeFor[string](),
		TypeElement: elementType,
	}

	// kindToType maps the reflect.Kinds that carry a semantic type to
	// that type. Named types with these underlying kinds are
	// accepted.
	kindToType = map[reflect.Kind]Type{
		reflect.Bool:    TypeBool,
		reflect.Int32:   TypeInt,
		reflect.Float64: TypeDouble,
		reflect.String:  TypeString,
	}
)

// TypeOf returns the semantic type carried by values of the Go type
// t.
//
// bool, int32, float64, string, [Element], and named types with one
// of the first four as their underlying type are supported. Any other
// type results in a [TypeError].
func TypeOf(t reflect.Type) (Type, error) {
	if t == nil {
		return TypeInvalid, typeErr(t, "nil type")
	}
	if t == elementType {
		return TypeElement, nil
	}
	if ret, ok := kindToType[t.Kind()]; ok {
		return ret, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Uint:
		return TypeInvalid, typeErr(t, "int and uint aren't portable, use int32")
	case reflect.Int8, reflect.Int16, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInvalid, typeErr(t, "the only integer type is int32")
	case reflect.Float32:
		return TypeInvalid, typeErr(t, "float32 has no corresponding type, use float64")
	case reflect.Pointer:
		return TypeInvalid, typeErr(t, "pointers cannot cross the automation boundary")
	}
	return TypeInvalid, typeErr(t, "no automation type mapping")
}

// GoType returns the canonical Go type for t, or nil if t is not a
// valid semantic type.
func (t Type) GoType() reflect.Type {
	return typeToGo[t]
}
