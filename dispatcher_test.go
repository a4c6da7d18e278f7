package uia

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDispatcherProperties(t *testing.T) {
	desc := mustDescribe(t, thingPattern())
	impl := &thingImpl{abc: -7, name: "n", target: ElementFromToken(3), ratio: 0.125}
	d, err := NewDispatcher(desc, impl)
	if err != nil {
		t.Fatalf("NewDispatcher got err: %v", err)
	}

	tests := []struct {
		index int
		typ   Type
		want  Variant
	}{
		{0, TypeInt, IntVariant(-7)},
		{1, TypeString, StringVariant("n")},
		{2, TypeElement, ElementVariant(ElementFromToken(3))},
		{3, TypeDouble, DoubleVariant(0.125)},
	}
	for _, tc := range tests {
		for _, cached := range []bool{false, true} {
			got, err := d.GetProperty(tc.index, cached, tc.typ)
			if err != nil {
				t.Errorf("GetProperty(%d, %v) got err: %v", tc.index, cached, err)
				continue
			}
			if !got.Equal(tc.want) {
				t.Errorf("GetProperty(%d, %v) = %v, want %v", tc.index, cached, got, tc.want)
			}
		}
	}

	if _, err := d.GetProperty(4, false, TypeInt); !errors.As(err, new(NotSupportedError)) {
		t.Errorf("GetProperty(4) err = %v, want NotSupportedError", err)
	}
	if _, err := d.GetProperty(-1, false, TypeInt); !errors.As(err, new(NotSupportedError)) {
		t.Errorf("GetProperty(-1) err = %v, want NotSupportedError", err)
	}
	if _, err := d.GetProperty(0, false, TypeDouble); !errors.As(err, new(TypeError)) {
		t.Errorf("GetProperty(0, double) err = %v, want TypeError", err)
	}

	// No registration, so standalone properties are unreachable.
	if _, err := d.GetStandaloneProperty(6, false, TypeBool); !errors.As(err, new(NotSupportedError)) {
		t.Errorf("GetStandaloneProperty(6) err = %v, want NotSupportedError", err)
	}
	rd := d.WithRegistration(&Registration{StandaloneIDs: map[string]int{"Flag": 6}})
	impl.flag = true
	if got, err := rd.GetStandaloneProperty(6, false, TypeBool); err != nil || !got.Equal(BoolVariant(true)) {
		t.Errorf("GetStandaloneProperty(6) = %v, %v, want bool(true)", got, err)
	}
	if _, err := rd.GetStandaloneProperty(6, false, TypeInt); !errors.As(err, new(TypeError)) {
		t.Errorf("GetStandaloneProperty(6, int) err = %v, want TypeError", err)
	}
	if _, err := rd.WithRegistration(nil).GetStandaloneProperty(6, false, TypeBool); !errors.As(err, new(NotSupportedError)) {
		t.Errorf("GetStandaloneProperty(6) with nil registration err = %v, want NotSupportedError", err)
	}
}

func TestDispatcherPermute(t *testing.T) {
	desc := mustDescribe(t, thingPattern())
	impl := &thingImpl{}
	d, err := NewDispatcher(desc, impl)
	if err != nil {
		t.Fatalf("NewDispatcher got err: %v", err)
	}

	buf := []Variant{IntVariant(3), StringVariant("yes"), {}, {}}
	if err := d.CallMethod(0, buf); err != nil {
		t.Fatalf("CallMethod(Permute) got err: %v", err)
	}
	want := []Variant{IntVariant(3), StringVariant("yes"), BoolVariant(true), DoubleVariant(1.5)}
	if diff := cmp.Diff(buf, want); diff != "" {
		t.Errorf("CallMethod(Permute) wrong buffer (-got+want):\n%s", diff)
	}
	if diff := cmp.Diff(impl.permuted, [][2]any{{int32(3), "yes"}}); diff != "" {
		t.Errorf("provider saw wrong arguments (-got+want):\n%s", diff)
	}
}

func TestDispatcherErrors(t *testing.T) {
	desc := mustDescribe(t, thingPattern())
	impl := &thingImpl{}
	d, err := NewDispatcher(desc, impl)
	if err != nil {
		t.Fatalf("NewDispatcher got err: %v", err)
	}

	if err := d.CallMethod(2, nil); !errors.As(err, new(NotSupportedError)) {
		t.Errorf("CallMethod(2) err = %v, want NotSupportedError", err)
	}
	if err := d.CallMethod(0, []Variant{IntVariant(1), StringVariant("x")}); !errors.As(err, new(TypeError)) {
		t.Errorf("CallMethod(Permute) with short buffer err = %v, want TypeError", err)
	}
	if err := d.CallMethod(0, []Variant{StringVariant("x"), IntVariant(1), {}, {}}); !errors.As(err, new(TypeError)) {
		t.Errorf("CallMethod(Permute) with swapped ins err = %v, want TypeError", err)
	}
	if len(impl.permuted) != 0 {
		t.Errorf("provider called despite bad buffers: %v", impl.permuted)
	}

	impl.resetErr = errors.New("cannot reset")
	if err := d.CallMethod(1, []Variant{}); !errors.Is(err, impl.resetErr) {
		t.Errorf("CallMethod(Reset) err = %v, want %v", err, impl.resetErr)
	}

	if _, err := NewDispatcher(desc, nil); err == nil {
		t.Error("NewDispatcher(nil) succeeded")
	}
	if _, err := NewDispatcher(desc, thingImpl{}); !errors.As(err, new(TypeError)) {
		t.Errorf("NewDispatcher(non-provider) err = %v, want TypeError", err)
	}
}
