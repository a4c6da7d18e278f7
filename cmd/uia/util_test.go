package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/danderson/uia"
	"github.com/danderson/uia/patterns/gauge"
	"github.com/danderson/uia/patterns/selection"
	"github.com/google/go-cmp/cmp"
)

func TestPatternsNamed(t *testing.T) {
	all, err := patternsNamed(nil)
	if err != nil {
		t.Fatalf("patternsNamed(nil) got err: %v", err)
	}
	var names []string
	for _, p := range all {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff(names, []string{"Gauge", "Selection"}); diff != "" {
		t.Errorf("patterns wrong (-got+want):\n%s", diff)
	}

	got, err := patternsNamed([]string{"selection", gauge.ID.String()})
	if err != nil {
		t.Fatalf("patternsNamed got err: %v", err)
	}
	if len(got) != 2 || got[0].ID != gauge.ID || got[1].ID != selection.ID {
		t.Errorf("patternsNamed returned wrong patterns: %v", got)
	}

	if _, err := patternsNamed([]string{"nope"}); err == nil {
		t.Error("patternsNamed with unknown name succeeded")
	}
}

func TestCatalogRegistrar(t *testing.T) {
	ctx := context.Background()
	// Two registries registering in different orders must agree.
	a, b := newRegistry(), newRegistry()
	recA, err := a.Register(ctx, gauge.Pattern)
	if err != nil {
		t.Fatalf("Register got err: %v", err)
	}
	if _, err := b.Register(ctx, selection.Pattern); err != nil {
		t.Fatalf("Register got err: %v", err)
	}
	recB, err := b.Register(ctx, gauge.Pattern)
	if err != nil {
		t.Fatalf("Register got err: %v", err)
	}
	if diff := cmp.Diff(recA, recB); diff != "" {
		t.Errorf("registrations disagree (-a+b):\n%s", diff)
	}

	want := &uia.Registration{
		Pattern:   gauge.ID,
		PatternID: 2000,
		PropertyIDs: map[string]int{
			"Value":   2001,
			"Label":   2002,
			"Enabled": 2003,
			"Step":    2004,
			"Owner":   2005,
		},
		StandaloneIDs: map[string]int{"Unit": 2505},
	}
	if diff := cmp.Diff(recA, want); diff != "" {
		t.Errorf("gauge registration wrong (-got+want):\n%s", diff)
	}
}

func TestParseArgs(t *testing.T) {
	desc, err := uia.Describe(gauge.Pattern)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := desc.Method("Clamp")

	got, err := parseArgs(m, []string{"2.5"})
	if err != nil {
		t.Fatalf("parseArgs got err: %v", err)
	}
	if diff := cmp.Diff(got, []any{2.5}); diff != "" {
		t.Errorf("parseArgs wrong (-got+want):\n%s", diff)
	}

	for _, args := range [][]string{nil, {"1", "2"}, {"lots"}} {
		if _, err := parseArgs(m, args); err == nil {
			t.Errorf("parseArgs(%q) succeeded", args)
		}
	}

	tests := []struct {
		in   string
		typ  uia.Type
		want any
	}{
		{"true", uia.TypeBool, true},
		{"-7", uia.TypeInt, int32(-7)},
		{"0x10", uia.TypeInt, int32(16)},
		{"1e3", uia.TypeDouble, 1000.0},
		{"hi there", uia.TypeString, "hi there"},
		{"0xfeed", uia.TypeElement, uia.ElementFromToken(0xfeed)},
	}
	for _, tc := range tests {
		got, err := parseArg(tc.in, tc.typ)
		if err != nil {
			t.Errorf("parseArg(%q, %s) got err: %v", tc.in, tc.typ, err)
			continue
		}
		if diff := cmp.Diff(got, tc.want); diff != "" {
			t.Errorf("parseArg(%q, %s) wrong (-got+want):\n%s", tc.in, tc.typ, diff)
		}
	}
	if _, err := parseArg("99999999999", uia.TypeInt); err == nil {
		t.Error("parseArg of out of range int succeeded")
	}
}

func TestIndenter(t *testing.T) {
	var buf bytes.Buffer
	out := indenter{out: &buf}
	out.s("top")
	out.indent(1)
	out.f("a %d", 1)
	out.s("b\nc")
	out.indent(0)
	out.s("end")
	want := "top\n  a 1\n  b\n  c\nend\n"
	if got := buf.String(); got != want {
		t.Errorf("indenter output = %q, want %q", got, want)
	}
}
