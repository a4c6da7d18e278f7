package uia

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/creachadair/mds/mapset"
	"github.com/google/uuid"
)

// Descriptor is the wire-level description of a [Pattern], shared by
// the consumer-side [Client] and the provider-side [Dispatcher].
//
// Descriptors are immutable once built. Both sides of the automation
// boundary must derive their descriptor from the same Pattern
// declaration, so that they agree on property and method indices.
type Descriptor struct {
	ID       GUID
	Name     string
	Provider reflect.Type
	Consumer reflect.Type

	// Properties are the pattern's indexed properties, in index
	// order.
	Properties []*PropertyDescriptor
	// Standalone are the pattern's standalone properties, in
	// declaration order. They have no index.
	Standalone []*PropertyDescriptor
	// Methods are the pattern's methods, in index order.
	Methods []*MethodDescriptor
}

// PropertyDescriptor describes one pattern property.
type PropertyDescriptor struct {
	Name string
	ID   GUID
	Type Type
	// Index is the property's ordinal among the pattern's indexed
	// properties, or -1 for standalone properties.
	Index      int
	Standalone bool
	// ProviderType is the Go type returned by the provider's
	// getter.
	ProviderType reflect.Type
	// ConsumerType is the Go type returned by the consumer's
	// Current and Cached getters.
	ConsumerType reflect.Type
	// ProviderError is whether the provider's getter returns a
	// trailing error.
	ProviderError bool
}

// ParamDescriptor describes one method parameter.
type ParamDescriptor struct {
	Name string
	Dir  Direction
	Type Type
	// GoType is the parameter's Go type in the provider interface.
	GoType reflect.Type
}

// IsReturn reports whether p is the method's return value slot.
func (p ParamDescriptor) IsReturn() bool { return p.Name == ReturnValue }

// MethodDescriptor describes one pattern method.
//
// Params are in wire order: all in-parameters, then all
// out-parameters. The permutation tables map Go argument and result
// positions on each side of the boundary to wire slots.
type MethodDescriptor struct {
	Name  string
	Index int

	Params   []ParamDescriptor
	InCount  int
	OutCount int
	// ReturnSlot is the wire slot of the return value, or -1 if the
	// method has none.
	ReturnSlot int

	// ProviderIn[i] is the wire slot of the provider method's i-th
	// argument.
	ProviderIn []int
	// ProviderOut[i] is the wire slot of the provider method's i-th
	// result, not counting a trailing error.
	ProviderOut []int
	// ProviderError is whether the provider method returns a
	// trailing error.
	ProviderError bool

	// ConsumerIn[i] is the wire slot of the consumer method's i-th
	// argument.
	ConsumerIn []int
	// ConsumerOut[i] is the wire slot of the consumer method's i-th
	// result, not counting the trailing error.
	ConsumerOut []int
	// ConsumerTypes are the consumer method's Go types, arguments
	// followed by results, not counting the trailing error.
	ConsumerTypes []reflect.Type
}

// Property returns the descriptor of the named property, indexed or
// standalone.
func (d *Descriptor) Property(name string) (*PropertyDescriptor, bool) {
	for _, ps := range [][]*PropertyDescriptor{d.Properties, d.Standalone} {
		if i := slices.IndexFunc(ps, func(p *PropertyDescriptor) bool { return p.Name == name }); i >= 0 {
			return ps[i], true
		}
	}
	return nil, false
}

// Method returns the descriptor of the named method.
func (d *Descriptor) Method(name string) (*MethodDescriptor, bool) {
	i := slices.IndexFunc(d.Methods, func(m *MethodDescriptor) bool { return m.Name == name })
	if i < 0 {
		return nil, false
	}
	return d.Methods[i], true
}

func (d *Descriptor) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "pattern %s {%s} {\n", d.Name, d.ID)
	for _, p := range d.Properties {
		fmt.Fprintf(&ret, "  %s\n", p)
	}
	for _, p := range d.Standalone {
		fmt.Fprintf(&ret, "  %s\n", p)
	}
	for _, m := range d.Methods {
		fmt.Fprintf(&ret, "  %s\n", m)
	}
	ret.WriteString("}")
	return ret.String()
}

func (p *PropertyDescriptor) String() string {
	if p.Standalone {
		return fmt.Sprintf("property %s %s [standalone] {%s}", p.Name, p.Type, p.ID)
	}
	return fmt.Sprintf("property %s %s [#%d] {%s}", p.Name, p.Type, p.Index, p.ID)
}

func (m *MethodDescriptor) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "method %s(", m.Name)
	for i, p := range m.Params {
		if i > 0 {
			ret.WriteString(", ")
		}
		name := p.Name
		if p.IsReturn() {
			name = "return"
		}
		fmt.Fprintf(&ret, "%s %s %s", p.Dir, name, p.Type)
	}
	fmt.Fprintf(&ret, ") [#%d]", m.Index)
	return ret.String()
}

// Describe builds the Descriptor for a pattern declaration.
//
// Describe checks that p is complete, that every declared member
// exists in both interfaces with agreeing shapes and types, and that
// neither interface has undeclared members. Any disagreement is
// reported as a [SchemaError].
//
// Describe is deterministic: describing the same declaration twice
// yields equal descriptors.
func Describe(p Pattern) (*Descriptor, error) {
	b := builder{p: p}
	return b.build()
}

type builder struct {
	p   Pattern
	ret *Descriptor

	// provider and consumer are the interface members accounted for
	// by the declaration so far.
	provider mapset.Set[string]
	consumer mapset.Set[string]
}

func (b *builder) errf(member string, msg string, args ...any) error {
	name := b.p.Name
	if name == "" {
		name = "<unnamed>"
	}
	return SchemaError{
		Pattern: name,
		Member:  member,
		Reason:  fmt.Errorf(msg, args...),
	}
}

func (b *builder) wrap(member string, err error) error {
	var se SchemaError
	if errors.As(err, &se) {
		return err
	}
	return b.errf(member, "%w", err)
}

func (b *builder) build() (*Descriptor, error) {
	p := b.p
	if p.Name == "" {
		return nil, b.errf("", "missing pattern name")
	}
	if p.ID == uuid.Nil {
		return nil, b.errf("", "missing pattern identifier")
	}
	if p.Provider == nil || p.Provider.Kind() != reflect.Interface {
		return nil, b.errf("", "provider type %v is not an interface", p.Provider)
	}
	if p.Consumer == nil || p.Consumer.Kind() != reflect.Interface {
		return nil, b.errf("", "consumer type %v is not an interface", p.Consumer)
	}

	b.ret = &Descriptor{
		ID:       p.ID,
		Name:     p.Name,
		Provider: p.Provider,
		Consumer: p.Consumer,
	}
	b.provider = mapset.New[string]()
	b.consumer = mapset.New[string]()

	for _, decl := range p.Properties {
		if err := b.property(decl); err != nil {
			return nil, err
		}
	}
	for _, decl := range p.Methods {
		if err := b.method(decl); err != nil {
			return nil, err
		}
	}

	for i := range p.Provider.NumMethod() {
		if n := p.Provider.Method(i).Name; !b.provider.Has(n) {
			return nil, b.errf(n, "provider method %s is not declared in the pattern", n)
		}
	}
	for i := range p.Consumer.NumMethod() {
		if n := p.Consumer.Method(i).Name; !b.consumer.Has(n) {
			return nil, b.errf(n, "consumer method %s does not correspond to any declared property or method", n)
		}
	}

	return b.ret, nil
}

// claim records that member name is accounted for, and reports an
// error if it already was.
func (b *builder) claim(name string) error {
	if name == "" {
		return b.errf("", "missing member name")
	}
	if b.provider.Has(name) {
		return b.errf(name, "duplicate member declaration")
	}
	b.provider.Add(name)
	return nil
}

func (b *builder) property(decl PropertyDecl) error {
	if err := b.claim(decl.Name); err != nil {
		return err
	}
	if decl.ID == uuid.Nil {
		return b.errf(decl.Name, "missing property identifier")
	}

	pm, ok := b.p.Provider.MethodByName(decl.Name)
	if !ok {
		return b.errf(decl.Name, "provider %s has no getter %s", b.p.Provider, decl.Name)
	}
	pt := pm.Type
	if pt.NumIn() != 0 || pt.NumOut() < 1 || pt.NumOut() > 2 || (pt.NumOut() == 2 && pt.Out(1) != errorType) {
		return b.errf(decl.Name, "provider getter has signature %s, want func() T or func() (T, error)", pt)
	}
	typ, err := TypeOf(pt.Out(0))
	if err != nil {
		return b.wrap(decl.Name, err)
	}

	ret := &PropertyDescriptor{
		Name:          decl.Name,
		ID:            decl.ID,
		Type:          typ,
		Index:         -1,
		Standalone:    decl.Standalone,
		ProviderType:  pt.Out(0),
		ProviderError: pt.NumOut() == 2,
	}

	for _, prefix := range []string{"Current", "Cached"} {
		name := prefix + decl.Name
		cm, ok := b.p.Consumer.MethodByName(name)
		if !ok {
			return b.errf(decl.Name, "consumer %s has no getter %s", b.p.Consumer, name)
		}
		ct := cm.Type
		if ct.NumIn() != 0 || ct.NumOut() != 2 || ct.Out(1) != errorType {
			return b.errf(name, "consumer getter has signature %s, want func() (T, error)", ct)
		}
		if ret.ConsumerType == nil {
			ret.ConsumerType = ct.Out(0)
		} else if ct.Out(0) != ret.ConsumerType {
			return b.errf(name, "consumer getters disagree on type, %s vs. %s", ct.Out(0), ret.ConsumerType)
		}
		b.consumer.Add(name)
	}
	ctyp, err := TypeOf(ret.ConsumerType)
	if err != nil {
		return b.wrap("Current"+decl.Name, err)
	}
	if ctyp != typ {
		return b.errf(decl.Name, "consumer type %s (%s) does not match provider type %s (%s)", ret.ConsumerType, ctyp, ret.ProviderType, typ)
	}

	if decl.Standalone {
		b.ret.Standalone = append(b.ret.Standalone, ret)
	} else {
		ret.Index = len(b.ret.Properties)
		b.ret.Properties = append(b.ret.Properties, ret)
	}
	return nil
}

func (b *builder) method(decl MethodDecl) error {
	if err := b.claim(decl.Name); err != nil {
		return err
	}
	pm, ok := b.p.Provider.MethodByName(decl.Name)
	if !ok {
		return b.errf(decl.Name, "provider %s has no method %s", b.p.Provider, decl.Name)
	}
	cm, ok := b.p.Consumer.MethodByName(decl.Name)
	if !ok {
		return b.errf(decl.Name, "consumer %s has no method %s", b.p.Consumer, decl.Name)
	}
	b.consumer.Add(decl.Name)

	// Validate parameter names and directions, and split them by
	// direction, keeping declaration order.
	var (
		ins, outs []ParamDecl
		hasReturn bool
		names     = mapset.New[string]()
	)
	for _, param := range decl.Params {
		switch {
		case param.Name == "":
			return b.errf(decl.Name, "parameter with no name")
		case names.Has(param.Name):
			return b.errf(decl.Name, "duplicate parameter %q", param.Name)
		case param.Name == ReturnValue && param.Dir != DirOut:
			return b.errf(decl.Name, "return value slot must be an out-parameter")
		}
		names.Add(param.Name)
		if param.Name == ReturnValue {
			hasReturn = true
		}
		if param.Dir == DirIn {
			ins = append(ins, param)
		} else {
			outs = append(outs, param)
		}
	}

	ret := &MethodDescriptor{
		Name:       decl.Name,
		Index:      len(b.ret.Methods),
		InCount:    len(ins),
		OutCount:   len(outs),
		ReturnSlot: -1,
	}

	// Provider shape: ins as arguments, then results are the return
	// slot, the other outs, and an optional error.
	pt := pm.Type
	numOut := pt.NumOut()
	if numOut > 0 && pt.Out(numOut-1) == errorType {
		ret.ProviderError = true
		numOut--
	}
	if pt.NumIn() != len(ins) || numOut != len(outs) {
		return b.errf(decl.Name, "provider method has signature %s, want %d arguments and %d results (plus optional error)", pt, len(ins), len(outs))
	}

	// Wire order: all ins, then all outs.
	slot := map[string]int{}
	for i, param := range ins {
		typ, err := TypeOf(pt.In(i))
		if err != nil {
			return b.wrap(decl.Name+"."+param.Name, err)
		}
		slot[param.Name] = len(ret.Params)
		ret.ProviderIn = append(ret.ProviderIn, len(ret.Params))
		ret.Params = append(ret.Params, ParamDescriptor{param.Name, DirIn, typ, pt.In(i)})
	}
	outResult := 0
	if hasReturn {
		outResult = 1
	}
	providerOut := make([]int, len(outs))
	for _, param := range outs {
		res := 0
		if param.Name != ReturnValue {
			res = outResult
			outResult++
		}
		gt := pt.Out(res)
		typ, err := TypeOf(gt)
		if err != nil {
			return b.wrap(decl.Name+"."+paramLabel(param.Name), err)
		}
		slot[param.Name] = len(ret.Params)
		providerOut[res] = len(ret.Params)
		if param.Name == ReturnValue {
			ret.ReturnSlot = len(ret.Params)
		}
		ret.Params = append(ret.Params, ParamDescriptor{param.Name, DirOut, typ, gt})
	}
	ret.ProviderOut = providerOut

	// Consumer order, then consumer shape.
	order := decl.Consumer
	if order == nil {
		for _, param := range decl.Params {
			order = append(order, param.Name)
		}
	} else {
		got := mapset.New(order...)
		if len(got) != len(order) {
			return b.errf(decl.Name, "consumer parameter order %q has duplicates", order)
		}
		if hasReturn {
			got.Add(ReturnValue)
		}
		if !got.Equals(names) {
			return b.errf(decl.Name, "consumer parameters %v do not match provider parameters %v", sortedNames(got), sortedNames(names))
		}
	}
	if hasReturn {
		ret.ConsumerOut = append(ret.ConsumerOut, ret.ReturnSlot)
	}
	for _, name := range order {
		switch {
		case name == ReturnValue:
		case ret.Params[slot[name]].Dir == DirIn:
			ret.ConsumerIn = append(ret.ConsumerIn, slot[name])
		default:
			ret.ConsumerOut = append(ret.ConsumerOut, slot[name])
		}
	}

	ct := cm.Type
	if ct.NumIn() != len(ret.ConsumerIn) || ct.NumOut() != len(ret.ConsumerOut)+1 || ct.Out(ct.NumOut()-1) != errorType {
		return b.errf(decl.Name, "consumer method has signature %s, want %d arguments and %d results plus error", ct, len(ret.ConsumerIn), len(ret.ConsumerOut))
	}
	check := func(gt reflect.Type, wire int) error {
		typ, err := TypeOf(gt)
		if err != nil {
			return b.wrap(decl.Name+"."+paramLabel(ret.Params[wire].Name), err)
		}
		if want := ret.Params[wire].Type; typ != want {
			return b.errf(decl.Name, "consumer parameter %s has type %s (%s), provider has %s", paramLabel(ret.Params[wire].Name), gt, typ, want)
		}
		ret.ConsumerTypes = append(ret.ConsumerTypes, gt)
		return nil
	}
	for i, wire := range ret.ConsumerIn {
		if err := check(ct.In(i), wire); err != nil {
			return err
		}
	}
	for i, wire := range ret.ConsumerOut {
		if err := check(ct.Out(i), wire); err != nil {
			return err
		}
	}

	b.ret.Methods = append(b.ret.Methods, ret)
	return nil
}

func paramLabel(name string) string {
	if name == ReturnValue {
		return "<return>"
	}
	return name
}

func sortedNames(s mapset.Set[string]) []string {
	ret := make([]string, 0, len(s))
	for n := range s {
		ret = append(ret, paramLabel(n))
	}
	slices.Sort(ret)
	return ret
}
