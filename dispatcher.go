package uia

import (
	"errors"
	"fmt"
	"reflect"
)

// Dispatcher is the provider side of a pattern. It answers indexed
// native calls by invoking a concrete implementation of the pattern's
// provider interface.
//
// Dispatcher implements [Instance] and [StandaloneSource], so it can
// be handed directly to a [Client] when consumer and provider live in
// the same process.
//
// All dispatch happens synchronously on the calling goroutine.
type Dispatcher struct {
	desc *Descriptor

	props      []propFunc
	standalone map[string]propFunc
	methods    []methodFunc

	// standaloneIDs maps registered standalone property IDs to
	// property names. Nil until WithRegistration.
	standaloneIDs map[int]string
}

type (
	propFunc   func() (Variant, error)
	methodFunc func(params []Variant) error
)

// NewDispatcher returns a Dispatcher that serves the pattern
// described by desc using impl, which must implement desc.Provider.
func NewDispatcher(desc *Descriptor, impl any) (*Dispatcher, error) {
	v := reflect.ValueOf(impl)
	if !v.IsValid() {
		return nil, errors.New("nil provider implementation")
	}
	if !v.Type().Implements(desc.Provider) {
		return nil, typeErr(v.Type(), "does not implement provider interface %s of pattern %s", desc.Provider, desc.Name)
	}
	provider := reflect.New(desc.Provider).Elem()
	provider.Set(v)

	ret := &Dispatcher{
		desc:       desc,
		props:      make([]propFunc, len(desc.Properties)),
		standalone: make(map[string]propFunc, len(desc.Standalone)),
		methods:    make([]methodFunc, len(desc.Methods)),
	}
	for i, p := range desc.Properties {
		ret.props[i] = newPropFunc(p, provider.MethodByName(p.Name))
	}
	for _, p := range desc.Standalone {
		ret.standalone[p.Name] = newPropFunc(p, provider.MethodByName(p.Name))
	}
	for i, m := range desc.Methods {
		ret.methods[i] = newMethodFunc(m, provider.MethodByName(m.Name))
	}
	return ret, nil
}

// WithRegistration returns a copy of d that serves standalone
// properties by the numeric identifiers in rec. A nil rec serves no
// standalone properties.
func (d *Dispatcher) WithRegistration(rec *Registration) *Dispatcher {
	ret := *d
	if rec == nil {
		ret.standaloneIDs = nil
		return &ret
	}
	ret.standaloneIDs = make(map[int]string, len(rec.StandaloneIDs))
	for name, id := range rec.StandaloneIDs {
		ret.standaloneIDs[id] = name
	}
	return &ret
}

// Descriptor returns the descriptor of the dispatcher's pattern.
func (d *Dispatcher) Descriptor() *Descriptor { return d.desc }

// GetProperty returns the value of the indexed property, read from
// the provider implementation.
//
// Snapshot caching is the native layer's business: the provider
// always reports its live value, so cached is ignored.
func (d *Dispatcher) GetProperty(index int, cached bool, t Type) (Variant, error) {
	if index < 0 || index >= len(d.props) {
		return Variant{}, NotSupportedError{d.desc.Name, fmt.Sprintf("property #%d", index)}
	}
	p := d.desc.Properties[index]
	if t != p.Type {
		return Variant{}, TypeError{d.desc.Name + "." + p.Name, fmt.Errorf("requested as %s, property has type %s", t, p.Type)}
	}
	return d.props[index]()
}

// GetStandaloneProperty returns the value of the standalone property
// with the given registered identifier.
func (d *Dispatcher) GetStandaloneProperty(id int, cached bool, t Type) (Variant, error) {
	name, ok := d.standaloneIDs[id]
	if !ok {
		return Variant{}, NotSupportedError{d.desc.Name, fmt.Sprintf("standalone property id %d", id)}
	}
	p, _ := d.desc.Property(name)
	if t != p.Type {
		return Variant{}, TypeError{d.desc.Name + "." + p.Name, fmt.Errorf("requested as %s, property has type %s", t, p.Type)}
	}
	return d.standalone[name]()
}

// CallMethod calls the indexed method on the provider
// implementation. params must hold the method's in-parameters
// followed by room for its out-parameters, which CallMethod fills in.
func (d *Dispatcher) CallMethod(index int, params []Variant) error {
	if index < 0 || index >= len(d.methods) {
		return NotSupportedError{d.desc.Name, fmt.Sprintf("method #%d", index)}
	}
	return d.methods[index](params)
}

func newPropFunc(p *PropertyDescriptor, getter reflect.Value) propFunc {
	// Getters with the exact canonical signature skip reflect.Call.
	switch fn := getter.Interface().(type) {
	case func() bool:
		return func() (Variant, error) { return BoolVariant(fn()), nil }
	case func() int32:
		return func() (Variant, error) { return IntVariant(fn()), nil }
	case func() float64:
		return func() (Variant, error) { return DoubleVariant(fn()), nil }
	case func() string:
		return func() (Variant, error) { return StringVariant(fn()), nil }
	case func() Element:
		return func() (Variant, error) { return ElementVariant(fn()), nil }
	}

	enc, err := encoderFor(p.ProviderType)
	if err != nil {
		// Descriptor construction already validated the type.
		panic(err)
	}
	return func() (Variant, error) {
		rets := getter.Call(nil)
		if p.ProviderError {
			if err, _ := rets[1].Interface().(error); err != nil {
				return Variant{}, err
			}
		}
		return enc.fn(rets[0]), nil
	}
}

func newMethodFunc(m *MethodDescriptor, method reflect.Value) methodFunc {
	decs := make([]valueDecoder, len(m.ProviderIn))
	for i, slot := range m.ProviderIn {
		dec, err := decoderFor(m.Params[slot].GoType)
		if err != nil {
			panic(err)
		}
		decs[i] = dec
	}
	encs := make([]valueEncoder, len(m.ProviderOut))
	for i, slot := range m.ProviderOut {
		enc, err := encoderFor(m.Params[slot].GoType)
		if err != nil {
			panic(err)
		}
		encs[i] = enc
	}

	return func(params []Variant) error {
		if want := m.InCount + m.OutCount; len(params) != want {
			return TypeError{m.Name, fmt.Errorf("parameter buffer has %d slots, want %d", len(params), want)}
		}
		args := make([]reflect.Value, len(m.ProviderIn))
		for i, slot := range m.ProviderIn {
			arg := reflect.New(m.Params[slot].GoType).Elem()
			if err := decs[i].fn(params[slot], arg); err != nil {
				return fmt.Errorf("argument %s of %s: %w", m.Params[slot].Name, m.Name, err)
			}
			args[i] = arg
		}

		rets := method.Call(args)
		if m.ProviderError {
			if err, _ := rets[len(rets)-1].Interface().(error); err != nil {
				return err
			}
		}
		for i, slot := range m.ProviderOut {
			params[slot] = encs[i].fn(rets[i])
		}
		return nil
	}
}
