package uia

import (
	"reflect"

	"github.com/google/uuid"
)

// GUID is a globally unique identifier for a pattern or property.
type GUID = uuid.UUID

// ParseGUID parses a GUID in any of the forms accepted by
// [uuid.Parse], including the braced "{xxxxxxxx-...}" form.
func ParseGUID(s string) (GUID, error) {
	return uuid.Parse(s)
}

// MustParseGUID is like ParseGUID, but panics if s is not a valid
// GUID. It is intended for package-level pattern declarations.
func MustParseGUID(s string) GUID {
	return uuid.MustParse(s)
}

// ReturnValue is the reserved parameter name of a method's synthetic
// return value slot. It is not a valid Go identifier, and so cannot
// collide with a declared parameter name.
const ReturnValue = "$return"

// Direction is the direction in which a method parameter crosses the
// automation boundary.
type Direction uint8

const (
	// DirIn parameters flow from consumer to provider.
	DirIn Direction = iota
	// DirOut parameters flow from provider to consumer.
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}

// Pattern declares a custom automation pattern.
//
// Go interfaces cannot carry identifiers, parameter names or a
// declaration order (reflection lists interface methods sorted by
// name), so a Pattern supplies them explicitly. Properties and
// Methods are in declaration order, which determines the ordinal
// indices used on the wire. [Describe] checks that the declaration,
// the Provider interface and the Consumer interface all agree.
type Pattern struct {
	// ID is the pattern's global identifier.
	ID GUID
	// Name is the pattern's programmatic name.
	Name string
	// Provider is the interface implemented by controls that offer
	// the pattern.
	Provider reflect.Type
	// Consumer is the interface used by automation clients to talk
	// to a pattern instance.
	Consumer reflect.Type

	Properties []PropertyDecl
	Methods    []MethodDecl
}

// PropertyDecl declares a read-only pattern property.
type PropertyDecl struct {
	// Name is the provider getter's name. The consumer interface
	// must offer Current<Name> and Cached<Name>.
	Name string
	// ID is the property's global identifier.
	ID GUID
	// Standalone marks a property that is registered and fetched
	// on its own, rather than through the pattern's indexed
	// properties.
	Standalone bool
}

// Property declares a pattern property.
func Property(name string, id GUID) PropertyDecl {
	return PropertyDecl{Name: name, ID: id}
}

// StandaloneProperty declares a property that bypasses the pattern's
// indexed property path.
func StandaloneProperty(name string, id GUID) PropertyDecl {
	return PropertyDecl{Name: name, ID: id, Standalone: true}
}

// ParamDecl declares one method parameter.
type ParamDecl struct {
	Name string
	Dir  Direction
}

// In declares an in-parameter.
func In(name string) ParamDecl { return ParamDecl{name, DirIn} }

// Out declares an out-parameter.
func Out(name string) ParamDecl { return ParamDecl{name, DirOut} }

// Return declares the method's return value slot.
func Return() ParamDecl { return ParamDecl{ReturnValue, DirOut} }

// MethodDecl declares a pattern method.
type MethodDecl struct {
	Name string
	// Params are the parameters in provider declaration order.
	Params []ParamDecl
	// Consumer is the parameter names in the order the consumer
	// interface uses, or nil if the consumer uses the provider's
	// order.
	Consumer []string
}

// Method declares a pattern method with the given parameters, in
// provider order.
//
// The provider's Go method takes the in-parameters as arguments in
// the order given, and returns the return slot (if any) followed by
// the out-parameters in the order given, optionally followed by an
// error.
func Method(name string, params ...ParamDecl) MethodDecl {
	return MethodDecl{Name: name, Params: params}
}

// ConsumerOrder returns a copy of m whose consumer interface orders
// parameters as given. names must be a permutation of m's parameter
// names; [Describe] reports an error otherwise. The return slot may
// be listed by [ReturnValue] or omitted.
func (m MethodDecl) ConsumerOrder(names ...string) MethodDecl {
	m.Consumer = append([]string(nil), names...)
	return m
}
