package uia

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistrar{}
	r := NewRegistry(reg, RegistryOptions{})

	rec, err := r.Register(ctx, thingPattern())
	if err != nil {
		t.Fatalf("Register(Thing) got err: %v", err)
	}
	want := &Registration{
		Pattern:   thingID,
		PatternID: 1,
		PropertyIDs: map[string]int{
			"Abc":    2,
			"Name":   3,
			"Target": 4,
			"Ratio":  5,
		},
		StandaloneIDs: map[string]int{
			"Flag": 6,
		},
	}
	if diff := cmp.Diff(rec, want); diff != "" {
		t.Errorf("Register(Thing) wrong record (-got+want):\n%s", diff)
	}

	for range 3 {
		again, err := r.Register(ctx, thingPattern())
		if err != nil {
			t.Fatalf("Register(Thing) again got err: %v", err)
		}
		if again != rec {
			t.Errorf("Register(Thing) again returned a different record")
		}
	}
	if patterns, props := reg.counts(); patterns != 1 || props != 1 {
		t.Errorf("registrar called %d times for patterns and %d for properties, want 1 and 1", patterns, props)
	}

	if got, ok := r.Registration(thingID); !ok || got != rec {
		t.Errorf("Registration(Thing) = %v, %v, want the registered record", got, ok)
	}
	if got, ok := r.Registration(thingAbcID); ok {
		t.Errorf("Registration(unknown) = %v, want not found", got)
	}
}

func TestRegisterConcurrent(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistrar{}
	r := NewRegistry(reg, RegistryOptions{})

	const n = 20
	recs := make([]*Registration, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := r.Register(ctx, thingPattern())
			if err != nil {
				t.Errorf("Register(Thing) got err: %v", err)
				return
			}
			recs[i] = rec
		}()
	}
	wg.Wait()

	for i, rec := range recs {
		if rec != recs[0] {
			t.Errorf("Register call %d got a different record", i)
		}
	}
	if patterns, _ := reg.counts(); patterns != 1 {
		t.Errorf("registrar called %d times, want 1", patterns)
	}
}

func TestRegisterErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("registrar", func(t *testing.T) {
		reg := &fakeRegistrar{err: errRegistrar}
		r := NewRegistry(reg, RegistryOptions{})
		if _, err := r.Register(ctx, thingPattern()); !errors.Is(err, errRegistrar) {
			t.Fatalf("Register(Thing) err = %v, want %v", err, errRegistrar)
		}
		// Registrar errors are not remembered.
		reg.mu.Lock()
		reg.err = nil
		reg.mu.Unlock()
		if _, err := r.Register(ctx, thingPattern()); err != nil {
			t.Fatalf("Register(Thing) after recovery got err: %v", err)
		}
		if patterns, _ := reg.counts(); patterns != 2 {
			t.Errorf("registrar called %d times, want 2", patterns)
		}
	})

	t.Run("standalone property", func(t *testing.T) {
		reg := &fakeRegistrar{propErrs: 1}
		r := NewRegistry(reg, RegistryOptions{})
		if _, err := r.Register(ctx, thingPattern()); !errors.Is(err, errRegistrar) {
			t.Fatalf("Register(Thing) err = %v, want %v", err, errRegistrar)
		}
		if _, ok := r.Registration(thingID); ok {
			t.Error("Registration(Thing) found a half registered pattern")
		}
		rec, err := r.Register(ctx, thingPattern())
		if err != nil {
			t.Fatalf("Register(Thing) retry got err: %v", err)
		}
		if patterns, props := reg.counts(); patterns != 1 || props != 2 {
			t.Errorf("registrar called %d times for patterns and %d for properties, want 1 and 2", patterns, props)
		}
		if rec.PatternID != 1 {
			t.Errorf("retry changed PatternID to %d, want 1", rec.PatternID)
		}
		if diff := cmp.Diff(rec.StandaloneIDs, map[string]int{"Flag": 6}); diff != "" {
			t.Errorf("StandaloneIDs wrong (-got+want):\n%s", diff)
		}
	})

	t.Run("schema", func(t *testing.T) {
		reg := &fakeRegistrar{}
		r := NewRegistry(reg, RegistryOptions{})
		p := abcPattern()
		p.Consumer = reflect.TypeFor[noCachedConsumer]()
		for range 2 {
			_, err := r.Register(ctx, p)
			if !errors.As(err, new(SchemaError)) {
				t.Fatalf("Register(bad) err = %v, want SchemaError", err)
			}
		}
		if patterns, props := reg.counts(); patterns != 0 || props != 0 {
			t.Errorf("registrar called for a bad pattern")
		}
	})

	t.Run("guid reuse", func(t *testing.T) {
		r := NewRegistry(&fakeRegistrar{}, RegistryOptions{})
		if _, err := r.Describe(thingPattern()); err != nil {
			t.Fatalf("Describe(Thing) got err: %v", err)
		}
		// abcPattern uses Thing's GUID.
		_, err := r.Describe(abcPattern())
		if !errors.As(err, new(SchemaError)) {
			t.Fatalf("Describe with reused GUID err = %v, want SchemaError", err)
		}
	})

	t.Run("changed declaration", func(t *testing.T) {
		r := NewRegistry(&fakeRegistrar{}, RegistryOptions{})
		if _, err := r.Describe(thingPattern()); err != nil {
			t.Fatalf("Describe(Thing) got err: %v", err)
		}
		props := thingPattern()
		props.Properties = props.Properties[:4]
		methods := thingPattern()
		methods.Methods[0] = Method("Permute", In("a"), In("b"), Out("c"), Return())
		for _, p := range []Pattern{props, methods} {
			if _, err := r.Describe(p); !errors.As(err, new(SchemaError)) {
				t.Errorf("Describe with changed members err = %v, want SchemaError", err)
			}
		}
		if _, err := r.Describe(thingPattern()); err != nil {
			t.Errorf("Describe(Thing) after conflicts got err: %v", err)
		}
	})
}

func TestRegistryDescribeCached(t *testing.T) {
	r := NewRegistry(&fakeRegistrar{}, RegistryOptions{})
	a, err := r.Describe(thingPattern())
	if err != nil {
		t.Fatalf("Describe(Thing) got err: %v", err)
	}
	b, err := r.Describe(thingPattern())
	if err != nil {
		t.Fatalf("Describe(Thing) got err: %v", err)
	}
	if a != b {
		t.Error("Registry.Describe built the descriptor twice")
	}
}

func TestRegistryClientSchemaError(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistrar{}
	r := NewRegistry(reg, RegistryOptions{})
	inst := &fakeInstance{}

	p := abcPattern()
	p.Consumer = reflect.TypeFor[noCachedConsumer]()
	c, err := r.Client(ctx, p, inst)
	if !errors.As(err, new(SchemaError)) {
		t.Fatalf("Client(bad) = %v, %v, want SchemaError", c, err)
	}
	if inst.touched() {
		t.Error("native instance used despite schema error")
	}
	if patterns, _ := reg.counts(); patterns != 0 {
		t.Error("registrar called despite schema error")
	}
}
