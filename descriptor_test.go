package uia

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDescribe(t *testing.T) {
	got, err := Describe(thingPattern())
	if err != nil {
		t.Fatalf("Describe(Thing) got err: %v", err)
	}

	var (
		int32Type   = reflect.TypeFor[int32]()
		stringType  = reflect.TypeFor[string]()
		boolType    = reflect.TypeFor[bool]()
		float64Type = reflect.TypeFor[float64]()
	)
	want := &Descriptor{
		ID:       thingID,
		Name:     "Thing",
		Provider: reflect.TypeFor[thingProvider](),
		Consumer: reflect.TypeFor[thingConsumer](),
		Properties: []*PropertyDescriptor{
			{
				Name:         "Abc",
				ID:           thingAbcID,
				Type:         TypeInt,
				Index:        0,
				ProviderType: int32Type,
				ConsumerType: int32Type,
			},
			{
				Name:          "Name",
				ID:            thingNameID,
				Type:          TypeString,
				Index:         1,
				ProviderType:  stringType,
				ConsumerType:  stringType,
				ProviderError: true,
			},
			{
				Name:         "Target",
				ID:           thingTargetID,
				Type:         TypeElement,
				Index:        2,
				ProviderType: elementType,
				ConsumerType: elementType,
			},
			{
				Name:         "Ratio",
				ID:           thingRatioID,
				Type:         TypeDouble,
				Index:        3,
				ProviderType: reflect.TypeFor[meters](),
				ConsumerType: float64Type,
			},
		},
		Standalone: []*PropertyDescriptor{
			{
				Name:         "Flag",
				ID:           thingFlagID,
				Type:         TypeBool,
				Index:        -1,
				Standalone:   true,
				ProviderType: boolType,
				ConsumerType: boolType,
			},
		},
		Methods: []*MethodDescriptor{
			{
				Name:  "Permute",
				Index: 0,
				Params: []ParamDescriptor{
					{"a", DirIn, TypeInt, int32Type},
					{"b", DirIn, TypeString, stringType},
					{"c", DirOut, TypeBool, boolType},
					{ReturnValue, DirOut, TypeDouble, float64Type},
				},
				InCount:       2,
				OutCount:      2,
				ReturnSlot:    3,
				ProviderIn:    []int{0, 1},
				ProviderOut:   []int{3, 2},
				ConsumerIn:    []int{1, 0},
				ConsumerOut:   []int{3, 2},
				ConsumerTypes: []reflect.Type{stringType, int32Type, float64Type, boolType},
			},
			{
				Name:          "Reset",
				Index:         1,
				ReturnSlot:    -1,
				ProviderOut:   []int{},
				ProviderError: true,
			},
		},
	}
	if diff := cmp.Diff(got, want, typeComparer); diff != "" {
		t.Errorf("Describe(Thing) wrong descriptor (-got+want):\n%s", diff)
	}

	again, err := Describe(thingPattern())
	if err != nil {
		t.Fatalf("second Describe(Thing) got err: %v", err)
	}
	if diff := cmp.Diff(again, got, typeComparer); diff != "" {
		t.Errorf("Describe(Thing) is not deterministic (-second+first):\n%s", diff)
	}
}

func TestDescriptorString(t *testing.T) {
	d, err := Describe(thingPattern())
	if err != nil {
		t.Fatalf("Describe(Thing) got err: %v", err)
	}
	want := `pattern Thing {5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e01} {
  property Abc int [#0] {5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e02}
  property Name string [#1] {5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e03}
  property Target element [#2] {5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e04}
  property Ratio double [#3] {5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e05}
  property Flag bool [standalone] {5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e06}
  method Permute(in a int, in b string, out c bool, out return double) [#0]
  method Reset() [#1]
}`
	if diff := cmp.Diff(d.String(), want); diff != "" {
		t.Errorf("Descriptor.String() wrong output (-got+want):\n%s", diff)
	}
}

func TestDescriptorLookup(t *testing.T) {
	d, err := Describe(thingPattern())
	if err != nil {
		t.Fatalf("Describe(Thing) got err: %v", err)
	}
	if p, ok := d.Property("Ratio"); !ok || p.Index != 3 {
		t.Errorf(`Property("Ratio") = %v, %v, want index 3`, p, ok)
	}
	if p, ok := d.Property("Flag"); !ok || !p.Standalone {
		t.Errorf(`Property("Flag") = %v, %v, want standalone`, p, ok)
	}
	if p, ok := d.Property("Nope"); ok {
		t.Errorf(`Property("Nope") = %v, want not found`, p)
	}
	if m, ok := d.Method("Reset"); !ok || m.Index != 1 {
		t.Errorf(`Method("Reset") = %v, %v, want index 1`, m, ok)
	}
	if m, ok := d.Method("Abc"); ok {
		t.Errorf(`Method("Abc") = %v, want not found`, m)
	}
}

type abcProvider interface {
	Abc() int32
}

type abcConsumer interface {
	CurrentAbc() (int32, error)
	CachedAbc() (int32, error)
}

type noCachedConsumer interface {
	CurrentAbc() (int32, error)
}

type stringAbcConsumer interface {
	CurrentAbc() (string, error)
	CachedAbc() (string, error)
}

type disagreeConsumer interface {
	CurrentAbc() (int32, error)
	CachedAbc() (count, error)
}

type noErrorConsumer interface {
	CurrentAbc() int32
	CachedAbc() int32
}

type intAbcProvider interface {
	Abc() int
}

type argAbcProvider interface {
	Abc(x int32) int32
}

type extraProvider interface {
	Abc() int32
	Extra()
}

type extraConsumer interface {
	CurrentAbc() (int32, error)
	CachedAbc() (int32, error)
	Extra() error
}

func abcPattern() Pattern {
	return Pattern{
		ID:         thingID,
		Name:       "Abc",
		Provider:   reflect.TypeFor[abcProvider](),
		Consumer:   reflect.TypeFor[abcConsumer](),
		Properties: []PropertyDecl{Property("Abc", thingAbcID)},
	}
}

func TestDescribeErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Pattern)
	}{
		{"missing name", func(p *Pattern) { p.Name = "" }},
		{"missing id", func(p *Pattern) { p.ID = GUID{} }},
		{"provider not interface", func(p *Pattern) { p.Provider = reflect.TypeFor[*thingImpl]() }},
		{"nil consumer", func(p *Pattern) { p.Consumer = nil }},
		{"missing property id", func(p *Pattern) { p.Properties[0].ID = GUID{} }},
		{"missing property name", func(p *Pattern) { p.Properties[0].Name = "" }},
		{"duplicate property", func(p *Pattern) { p.Properties = append(p.Properties, p.Properties[0]) }},
		{"missing cached getter", func(p *Pattern) { p.Consumer = reflect.TypeFor[noCachedConsumer]() }},
		{"consumer type mismatch", func(p *Pattern) { p.Consumer = reflect.TypeFor[stringAbcConsumer]() }},
		{"getters disagree", func(p *Pattern) { p.Consumer = reflect.TypeFor[disagreeConsumer]() }},
		{"consumer getter without error", func(p *Pattern) { p.Consumer = reflect.TypeFor[noErrorConsumer]() }},
		{"unsupported type", func(p *Pattern) { p.Provider = reflect.TypeFor[intAbcProvider]() }},
		{"getter with arguments", func(p *Pattern) { p.Provider = reflect.TypeFor[argAbcProvider]() }},
		{"undeclared provider method", func(p *Pattern) { p.Provider = reflect.TypeFor[extraProvider]() }},
		{"undeclared consumer method", func(p *Pattern) { p.Consumer = reflect.TypeFor[extraConsumer]() }},
		{"undeclared property", func(p *Pattern) { p.Properties = nil }},
		{"method not in provider", func(p *Pattern) { p.Methods = []MethodDecl{Method("Nope")} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := abcPattern()
			tc.edit(&p)
			got, err := Describe(p)
			if err == nil {
				t.Fatalf("Describe succeeded, want error. Descriptor:\n%s", got)
			}
			if !errors.As(err, new(SchemaError)) {
				t.Fatalf("Describe error is %T (%v), want SchemaError", err, err)
			}
		})
	}
}

func TestDescribeMethodErrors(t *testing.T) {
	tests := []struct {
		name string
		decl MethodDecl
	}{
		{"missing parameter", Method("Permute", In("a"), In("b"), Return())},
		{"extra parameter", Method("Permute", In("a"), In("b"), In("z"), Out("c"), Return())},
		{"no return slot", Method("Permute", In("a"), In("b"), Out("c"), Out("d"))},
		{"return as in", Method("Permute", In("a"), In("b"), Out("c"), ParamDecl{ReturnValue, DirIn})},
		{"duplicate parameter", Method("Permute", In("a"), In("a"), Out("c"), Return())},
		{"unnamed parameter", Method("Permute", In("a"), In(""), Out("c"), Return())},
		{"swapped provider types", Method("Permute", In("b"), In("a"), Out("c"), Return()).ConsumerOrder("b", "a", "c")},
		{"consumer order missing", Method("Permute", In("a"), In("b"), Out("c"), Return()).ConsumerOrder("b", "a")},
		{"consumer order unknown", Method("Permute", In("a"), In("b"), Out("c"), Return()).ConsumerOrder("b", "a", "d")},
		{"consumer order duplicate", Method("Permute", In("a"), In("b"), Out("c"), Return()).ConsumerOrder("b", "b", "c")},
		{"consumer order wrong types", Method("Permute", In("a"), In("b"), Out("c"), Return())},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := thingPattern()
			p.Methods[0] = tc.decl
			got, err := Describe(p)
			if err == nil {
				t.Fatalf("Describe succeeded, want error. Descriptor:\n%s", got)
			}
			if !errors.As(err, new(SchemaError)) {
				t.Fatalf("Describe error is %T (%v), want SchemaError", err, err)
			}
		})
	}
}

func TestDescribeUnsupportedTypeCause(t *testing.T) {
	p := abcPattern()
	p.Provider = reflect.TypeFor[intAbcProvider]()
	_, err := Describe(p)
	var se SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("Describe error is %T (%v), want SchemaError", err, err)
	}
	if se.Member != "Abc" {
		t.Errorf("SchemaError.Member = %q, want Abc", se.Member)
	}
	if !errors.As(err, new(TypeError)) {
		t.Errorf("SchemaError %v does not wrap a TypeError", err)
	}
}
