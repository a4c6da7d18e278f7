package uia

import (
	"errors"
	"fmt"
	"reflect"
)

// Instance is a native pattern instance: the handle through which an
// automation client reaches one control's implementation of one
// pattern.
//
// Instances are owned by the native automation layer. Neither
// [Client] nor [Dispatcher] ever closes or releases them. Unless the
// native layer documents otherwise, an Instance must not be used
// concurrently.
type Instance interface {
	// GetProperty reads the indexed property of type t. If cached
	// is true, GetProperty returns the value from the most recent
	// cached snapshot instead of the live value.
	GetProperty(index int, cached bool, t Type) (Variant, error)
	// CallMethod calls the indexed method. params holds all
	// in-parameters followed by all out-parameters; CallMethod
	// writes the out-parameters in place.
	CallMethod(index int, params []Variant) error
}

// StandaloneSource is implemented by native instances that can serve
// standalone properties, which are addressed by their registered
// numeric identifier rather than by index.
type StandaloneSource interface {
	GetStandaloneProperty(id int, cached bool, t Type) (Variant, error)
}

// Client is the consumer side of a pattern. It turns calls made by
// member name into indexed calls on a native [Instance].
//
// Typed consumer interfaces are implemented by thin wrappers that
// delegate to a Client (see [Current], [Cached] and [Client.Invoke]).
type Client struct {
	desc *Descriptor
	rec  *Registration
	inst Instance

	// members is the dispatch table, keyed by consumer member name.
	members map[string]memberFunc
}

type memberFunc func(args []any) ([]any, error)

// NewClient returns a Client for inst, which must be a native
// instance of the pattern described by desc.
//
// rec is the pattern's registration record. It is only consulted for
// standalone properties, and may be nil if the pattern has none.
func NewClient(desc *Descriptor, rec *Registration, inst Instance) *Client {
	ret := &Client{
		desc:    desc,
		rec:     rec,
		inst:    inst,
		members: map[string]memberFunc{},
	}
	for _, ps := range [][]*PropertyDescriptor{desc.Properties, desc.Standalone} {
		for _, p := range ps {
			ret.members["Current"+p.Name] = ret.getter(p, false)
			ret.members["Cached"+p.Name] = ret.getter(p, true)
		}
	}
	for _, m := range desc.Methods {
		ret.members[m.Name] = ret.caller(m)
	}
	return ret
}

// Descriptor returns the descriptor of the client's pattern.
func (c *Client) Descriptor() *Descriptor { return c.desc }

// Invoke calls the consumer interface member with the given name.
//
// member is either Current<Property>, Cached<Property>, or a method
// name. args are the member's Go arguments in consumer order. Invoke
// returns the member's Go results, not counting the trailing error:
// the property value for property reads, or the method's return value
// (if any) followed by its out-parameters in consumer order.
//
// Invoke returns a [NotSupportedError] if the pattern has no such
// member.
func (c *Client) Invoke(member string, args ...any) ([]any, error) {
	fn, ok := c.members[member]
	if !ok {
		return nil, NotSupportedError{c.desc.Name, member}
	}
	return fn(args)
}

// Get reads the named property's current or cached value.
func (c *Client) Get(name string, cached bool) (any, error) {
	prop, ok := c.desc.Property(name)
	if !ok {
		return nil, NotSupportedError{c.desc.Name, name}
	}
	ret, err := c.get(prop, cached)
	if err != nil {
		return nil, err
	}
	return ret.Interface(), nil
}

// Current reads the current value of the named property.
func Current[T any](c *Client, name string) (T, error) {
	return getAs[T](c, name, false)
}

// Cached reads the cached value of the named property.
func Cached[T any](c *Client, name string) (T, error) {
	return getAs[T](c, name, true)
}

func getAs[T any](c *Client, name string, cached bool) (T, error) {
	var zero T
	prop, ok := c.desc.Property(name)
	if !ok {
		return zero, NotSupportedError{c.desc.Name, name}
	}
	if want := reflect.TypeFor[T](); want != prop.ConsumerType {
		return zero, typeErr(want, "property %s.%s has type %s", c.desc.Name, name, prop.ConsumerType)
	}
	v, err := c.get(prop, cached)
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

func (c *Client) getter(p *PropertyDescriptor, cached bool) memberFunc {
	return func(args []any) ([]any, error) {
		if len(args) != 0 {
			return nil, TypeError{c.memberName(p.Name), fmt.Errorf("property getters take no arguments, got %d", len(args))}
		}
		v, err := c.get(p, cached)
		if err != nil {
			return nil, err
		}
		return []any{v.Interface()}, nil
	}
}

func (c *Client) get(p *PropertyDescriptor, cached bool) (reflect.Value, error) {
	dec, err := decoderFor(p.ConsumerType)
	if err != nil {
		// Descriptor construction already validated the type.
		panic(err)
	}

	var w Variant
	if p.Standalone {
		w, err = c.getStandalone(p, cached)
	} else {
		w, err = c.inst.GetProperty(p.Index, cached, p.Type)
	}
	if err != nil {
		return reflect.Value{}, c.nativeErr(p.Name, err)
	}

	ret := reflect.New(p.ConsumerType).Elem()
	if err := dec.fn(w, ret); err != nil {
		return reflect.Value{}, fmt.Errorf("reading property %s: %w", c.memberName(p.Name), err)
	}
	return ret, nil
}

func (c *Client) getStandalone(p *PropertyDescriptor, cached bool) (Variant, error) {
	src, ok := c.inst.(StandaloneSource)
	if !ok {
		return Variant{}, UnsupportedOperationError{c.desc.Name, p.Name, errors.New("native instance does not serve standalone properties")}
	}
	if c.rec == nil {
		return Variant{}, fmt.Errorf("standalone property %s: pattern %s is not registered", p.Name, c.desc.Name)
	}
	id, ok := c.rec.StandaloneIDs[p.Name]
	if !ok {
		return Variant{}, fmt.Errorf("standalone property %s has no registered identifier", c.memberName(p.Name))
	}
	return src.GetStandaloneProperty(id, cached, p.Type)
}

func (c *Client) caller(m *MethodDescriptor) memberFunc {
	// Resolve the consumer types' codecs once. Descriptor
	// construction already validated them.
	encs := make([]valueEncoder, len(m.ConsumerIn))
	for i := range m.ConsumerIn {
		enc, err := encoderFor(m.ConsumerTypes[i])
		if err != nil {
			panic(err)
		}
		encs[i] = enc
	}
	decs := make([]valueDecoder, len(m.ConsumerOut))
	for i := range m.ConsumerOut {
		dec, err := decoderFor(m.ConsumerTypes[len(m.ConsumerIn)+i])
		if err != nil {
			panic(err)
		}
		decs[i] = dec
	}

	return func(args []any) ([]any, error) {
		if len(args) != len(m.ConsumerIn) {
			return nil, TypeError{c.memberName(m.Name), fmt.Errorf("got %d arguments, want %d", len(args), len(m.ConsumerIn))}
		}

		buf := make([]Variant, m.InCount+m.OutCount)
		for i, slot := range m.ConsumerIn {
			param := m.Params[slot]
			v := reflect.ValueOf(args[i])
			if !v.IsValid() {
				return nil, TypeError{c.memberName(m.Name), fmt.Errorf("nil argument for parameter %s", param.Name)}
			}
			enc := encs[i]
			if v.Type() != m.ConsumerTypes[i] {
				var err error
				if enc, err = encoderFor(v.Type()); err != nil {
					return nil, fmt.Errorf("argument %s of %s: %w", param.Name, c.memberName(m.Name), err)
				}
				if enc.typ != param.Type {
					return nil, typeErr(v.Type(), "argument %s of %s carries type %s, want %s", param.Name, c.memberName(m.Name), enc.typ, param.Type)
				}
			}
			buf[slot] = enc.fn(v)
		}

		if err := c.inst.CallMethod(m.Index, buf); err != nil {
			return nil, c.nativeErr(m.Name, err)
		}

		ret := make([]any, len(m.ConsumerOut))
		for i, slot := range m.ConsumerOut {
			v := reflect.New(m.ConsumerTypes[len(m.ConsumerIn)+i]).Elem()
			if err := decs[i].fn(buf[slot], v); err != nil {
				return nil, fmt.Errorf("reading %s result %s: %w", c.memberName(m.Name), paramLabel(m.Params[slot].Name), err)
			}
			ret[i] = v.Interface()
		}
		return ret, nil
	}
}

// nativeErr converts an error from the native instance into the
// error reported to the consumer.
func (c *Client) nativeErr(member string, err error) error {
	if errors.Is(err, ErrNotDispatchable) {
		return UnsupportedOperationError{c.desc.Name, member, err}
	}
	return err
}

func (c *Client) memberName(member string) string {
	return c.desc.Name + "." + member
}
