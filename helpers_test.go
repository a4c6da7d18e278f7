package uia

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"

	"github.com/google/go-cmp/cmp"
)

// thingProvider is the provider interface of a test pattern that
// exercises every kind of member.
type thingProvider interface {
	Abc() int32
	Name() (string, error)
	Target() Element
	Ratio() meters
	Flag() bool
	// Permute has params (a in, b in, c out, return).
	Permute(a int32, b string) (float64, bool)
	Reset() error
}

// thingConsumer is the consumer interface of the test pattern. It
// orders Permute's parameters differently from the provider.
type thingConsumer interface {
	CurrentAbc() (int32, error)
	CachedAbc() (int32, error)
	CurrentName() (string, error)
	CachedName() (string, error)
	CurrentTarget() (Element, error)
	CachedTarget() (Element, error)
	CurrentRatio() (float64, error)
	CachedRatio() (float64, error)
	CurrentFlag() (bool, error)
	CachedFlag() (bool, error)
	Permute(b string, a int32) (float64, bool, error)
	Reset() error
}

var (
	thingID       = MustParseGUID("{5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e01}")
	thingAbcID    = MustParseGUID("{5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e02}")
	thingNameID   = MustParseGUID("{5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e03}")
	thingTargetID = MustParseGUID("{5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e04}")
	thingRatioID  = MustParseGUID("{5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e05}")
	thingFlagID   = MustParseGUID("{5d0a2e8c-8a4c-4d8b-9f2e-1c6f7a3b9e06}")
)

func thingPattern() Pattern {
	return Pattern{
		ID:       thingID,
		Name:     "Thing",
		Provider: reflect.TypeFor[thingProvider](),
		Consumer: reflect.TypeFor[thingConsumer](),
		Properties: []PropertyDecl{
			Property("Abc", thingAbcID),
			Property("Name", thingNameID),
			StandaloneProperty("Flag", thingFlagID),
			Property("Target", thingTargetID),
			Property("Ratio", thingRatioID),
		},
		Methods: []MethodDecl{
			Method("Permute", In("a"), In("b"), Out("c"), Return()).ConsumerOrder("b", "a", "c"),
			Method("Reset"),
		},
	}
}

// thingImpl implements thingProvider.
type thingImpl struct {
	abc     int32
	name    string
	nameErr error
	target  Element
	ratio   meters
	flag    bool

	permuted [][2]any
	resetErr error
	resets   int
}

func (t *thingImpl) Abc() int32            { return t.abc }
func (t *thingImpl) Name() (string, error) { return t.name, t.nameErr }
func (t *thingImpl) Target() Element       { return t.target }
func (t *thingImpl) Ratio() meters         { return t.ratio }
func (t *thingImpl) Flag() bool            { return t.flag }

func (t *thingImpl) Reset() error {
	t.resets++
	return t.resetErr
}

func (t *thingImpl) Permute(a int32, b string) (float64, bool) {
	t.permuted = append(t.permuted, [2]any{a, b})
	return float64(a) / 2, b == "yes"
}

type getCall struct {
	Index  int
	Cached bool
	Type   Type
}

type methodCall struct {
	Index int
	// Params is the parameter buffer as received, before any out
	// parameters are written.
	Params []Variant
}

// fakeInstance is a scripted native pattern instance that records
// the calls made to it.
type fakeInstance struct {
	current map[int]Variant
	cached  map[int]Variant
	// outs maps method indices to the values written into the
	// parameter buffer, by slot.
	outs map[int]map[int]Variant
	err  error

	gets  []getCall
	calls []methodCall
}

func (f *fakeInstance) GetProperty(index int, cached bool, t Type) (Variant, error) {
	f.gets = append(f.gets, getCall{index, cached, t})
	if f.err != nil {
		return Variant{}, f.err
	}
	if cached {
		return f.cached[index], nil
	}
	return f.current[index], nil
}

func (f *fakeInstance) CallMethod(index int, params []Variant) error {
	f.calls = append(f.calls, methodCall{index, slices.Clone(params)})
	if f.err != nil {
		return f.err
	}
	for slot, v := range f.outs[index] {
		params[slot] = v
	}
	return nil
}

func (f *fakeInstance) touched() bool {
	return len(f.gets) > 0 || len(f.calls) > 0
}

// fakeRegistrar hands out sequential identifiers and counts how
// often it is called.
type fakeRegistrar struct {
	mu       sync.Mutex
	next     int
	patterns int
	props    int
	err      error
	// propErrs is the number of upcoming RegisterProperty calls that
	// fail with errRegistrar.
	propErrs int
}

var errRegistrar = errors.New("registrar on fire")

func (r *fakeRegistrar) RegisterPattern(ctx context.Context, desc *Descriptor) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns++
	if r.err != nil {
		return Registration{}, r.err
	}
	r.next++
	ret := Registration{
		PatternID:   r.next,
		PropertyIDs: map[string]int{},
	}
	for _, p := range desc.Properties {
		r.next++
		ret.PropertyIDs[p.Name] = r.next
	}
	return ret, nil
}

func (r *fakeRegistrar) RegisterProperty(ctx context.Context, prop *PropertyDescriptor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props++
	if r.err != nil {
		return 0, r.err
	}
	if r.propErrs > 0 {
		r.propErrs--
		return 0, errRegistrar
	}
	r.next++
	return r.next, nil
}

func (r *fakeRegistrar) counts() (patterns, props int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patterns, r.props
}

// typeComparer compares reflect.Types by identity, for use with
// cmp.Diff on descriptors.
var typeComparer = cmp.Comparer(func(a, b reflect.Type) bool { return a == b })
