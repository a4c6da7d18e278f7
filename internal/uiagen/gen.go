// Package uiagen generates typed consumer wrappers for automation
// patterns.
//
// A generated wrapper is a struct that implements a pattern's
// consumer interface by delegating every member to a [uia.Client].
package uiagen

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"path"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/danderson/uia"
)

const uiaPath = "github.com/danderson/uia"

// Options control the generated code.
type Options struct {
	// Package is the name of the package the code is generated
	// into. Defaults to the lowercased pattern name.
	Package string
	// PkgPath is the import path of that package. Named types
	// declared in it are referenced unqualified.
	PkgPath string
	// TypeName is the name of the generated wrapper type. Defaults
	// to "Client".
	TypeName string
}

type generator struct {
	out     bytes.Buffer
	desc    *uia.Descriptor
	opts    Options
	imports map[string]string // path -> package name
}

// Consumer returns Go source for a wrapper type that implements
// desc's consumer interface on top of a [uia.Client].
func Consumer(desc *uia.Descriptor, opts Options) (string, error) {
	if desc == nil {
		return "", errors.New("no descriptor provided")
	}
	if opts.Package == "" {
		opts.Package = strings.ToLower(identifier(desc.Name))
	}
	if opts.TypeName == "" {
		opts.TypeName = "Client"
	}
	if !token.IsIdentifier(opts.Package) || !token.IsIdentifier(opts.TypeName) {
		return "", fmt.Errorf("invalid package %q or type name %q", opts.Package, opts.TypeName)
	}
	g := generator{
		desc:    desc,
		opts:    opts,
		imports: map[string]string{},
	}
	body, err := g.body()
	if err != nil {
		return "", err
	}

	g.f("// Code generated by uiagen from pattern %s. DO NOT EDIT.\n\n", desc.Name)
	g.f("package %s\n\n", opts.Package)
	g.writeImports()
	g.out.Write(body)

	ret, err := format.Source(g.out.Bytes())
	if err != nil {
		return g.out.String(), err
	}
	return string(ret), nil
}

func (g *generator) s(s string) {
	g.out.WriteString(s)
}

func (g *generator) f(msg string, args ...any) {
	fmt.Fprintf(&g.out, msg, args...)
}

// body generates everything after the import block, so that the
// imports it needs are known when the header is written.
func (g *generator) body() ([]byte, error) {
	uiaName := g.qualifier(uiaPath)
	g.f(`
// %[1]s implements the consumer interface of the %[2]s pattern.
type %[1]s struct {
  c *%[3]sClient
}

// New%[1]s returns a %[1]s that calls the pattern instance behind c.
func New%[1]s(c *%[3]sClient) %[1]s {
  return %[1]s{c}
}

`, g.opts.TypeName, g.desc.Name, uiaName)

	for _, ps := range [][]*uia.PropertyDescriptor{g.desc.Properties, g.desc.Standalone} {
		for _, p := range ps {
			if err := g.property(p); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range g.desc.Methods {
		if err := g.method(m); err != nil {
			return nil, err
		}
	}

	ret := slices.Clone(g.out.Bytes())
	g.out.Reset()
	return ret, nil
}

func (g *generator) writeImports() {
	if len(g.imports) == 0 {
		return
	}
	paths := make([]string, 0, len(g.imports))
	for p := range g.imports {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	g.s("import (\n")
	for _, p := range paths {
		g.f("%q\n", p)
	}
	g.s(")\n")
}

// qualifier returns the prefix with which to reference identifiers
// from the package at pkgPath, recording the import.
func (g *generator) qualifier(pkgPath string) string {
	if pkgPath == "" || pkgPath == g.opts.PkgPath {
		return ""
	}
	name := path.Base(pkgPath)
	g.imports[pkgPath] = name
	return name + "."
}

func (g *generator) typ(t reflect.Type) (string, error) {
	if _, err := uia.TypeOf(t); err != nil {
		return "", err
	}
	if t.Name() == "" {
		return "", fmt.Errorf("unnamed type %s", t)
	}
	return g.qualifier(t.PkgPath()) + t.Name(), nil
}

// zero returns the zero value literal of t, which must be valid for
// typ.
func (g *generator) zero(t reflect.Type) (string, error) {
	switch t.Kind() {
	case reflect.Bool:
		return "false", nil
	case reflect.Int32, reflect.Float64:
		return "0", nil
	case reflect.String:
		return `""`, nil
	default:
		name, err := g.typ(t)
		if err != nil {
			return "", err
		}
		return name + "{}", nil
	}
}

func (g *generator) property(p *uia.PropertyDescriptor) error {
	typ, err := g.typ(p.ConsumerType)
	if err != nil {
		return fmt.Errorf("property %s: %w", p.Name, err)
	}
	uiaName := g.qualifier(uiaPath)
	for _, mode := range []string{"Current", "Cached"} {
		what := "current"
		if mode == "Cached" {
			what = "cached"
		}
		g.f(`// %[2]s%[3]s returns the %[6]s value of the %[3]s property.
func (x %[1]s) %[2]s%[3]s() (%[4]s, error) {
  return %[5]s%[2]s[%[4]s](x.c, %[3]q)
}

`, g.opts.TypeName, mode, p.Name, typ, uiaName, what)
	}
	return nil
}

func (g *generator) method(m *uia.MethodDescriptor) error {
	var (
		args    []string
		argVals []string
		results []string
		zeros   []string
	)
	used := map[string]bool{"x": true, "res": true, "err": true}
	for i, slot := range m.ConsumerIn {
		typ, err := g.typ(m.ConsumerTypes[i])
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		name := argName(i, m.Params[slot].Name, used)
		args = append(args, name+" "+typ)
		argVals = append(argVals, name)
	}
	for i := range m.ConsumerOut {
		t := m.ConsumerTypes[len(m.ConsumerIn)+i]
		typ, err := g.typ(t)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		z, err := g.zero(t)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		results = append(results, typ)
		zeros = append(zeros, z)
	}

	g.f("// %s calls the %s method.\n", m.Name, m.Name)
	rets := "error"
	if len(results) > 0 {
		rets = "(" + strings.Join(append(results, "error"), ", ") + ")"
	}
	g.f("func (x %s) %s(%s) %s {\n", g.opts.TypeName, m.Name, strings.Join(args, ", "), rets)
	call := fmt.Sprintf("x.c.Invoke(%q", m.Name)
	for _, a := range argVals {
		call += ", " + a
	}
	call += ")"
	if len(results) == 0 {
		g.f("_, err := %s\n", call)
		g.s("return err\n}\n\n")
		return nil
	}
	g.f("res, err := %s\n", call)
	g.f("if err != nil {\nreturn %s, err\n}\n", strings.Join(zeros, ", "))
	g.s("return ")
	for i, r := range results {
		g.f("res[%d].(%s), ", i, r)
	}
	g.s("nil\n}\n\n")
	return nil
}

// argName returns a Go parameter name for the i-th consumer argument,
// declared as name, that does not collide with used.
func argName(i int, name string, used map[string]bool) string {
	ret := identifier(name)
	if !token.IsIdentifier(ret) || token.IsKeyword(ret) {
		ret = fmt.Sprintf("arg%d", i)
	}
	for used[ret] {
		ret += "_"
	}
	used[ret] = true
	return ret
}

// identifier converts s to lower camel case.
func identifier(s string) string {
	fs := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i := range fs {
		if i == 0 {
			fst := true
			fs[i] = strings.Map(func(r rune) rune {
				if fst {
					fst = false
					return unicode.ToLower(r)
				}
				return r
			}, fs[i])
		} else {
			switch fs[i] {
			case "id":
				fs[i] = "ID"
			default:
				fs[i] = title(fs[i])
			}
		}
	}
	return strings.Join(fs, "")
}

func title(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
