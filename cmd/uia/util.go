package main

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/mds/heapq"
	"github.com/danderson/uia"
	"github.com/danderson/uia/patterns/gauge"
	"github.com/danderson/uia/patterns/selection"
	"github.com/danderson/uia/remote"
)

// catalog is the built-in patterns. Its order fixes the identifiers
// handed out by catalogRegistrar, so it must only ever be appended
// to.
var catalog = []uia.Pattern{
	selection.Pattern,
	gauge.Pattern,
}

type indenter struct {
	out        io.Writer
	prefix     string
	indentNext bool
}

func (i *indenter) v(v any) {
	fmt.Fprintf(i, "%v\n", v)
}

func (i *indenter) s(msg string) {
	io.WriteString(i, msg+"\n")
}

func (i *indenter) f(msg string, args ...any) {
	fmt.Fprintf(i, msg+"\n", args...)
}

func (i *indenter) Write(bs []byte) (int, error) {
	out := i.out
	if out == nil {
		out = os.Stdout
	}
	ret := 0
	for len(bs) > 0 {
		if i.indentNext {
			i.indentNext = false
			if _, err := io.WriteString(out, i.prefix); err != nil {
				return ret, err
			}
		}

		wr := bs
		idx := bytes.IndexByte(bs, '\n')
		if idx >= 0 {
			i.indentNext = true
			wr, bs = bs[:idx+1], bs[idx+1:]
		} else {
			bs = nil
		}

		n, err := out.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}

func (i *indenter) indent(n int) {
	i.prefix = strings.Repeat("  ", n)
}

// findPattern returns the built-in pattern with the given name or
// GUID. Names are matched case-insensitively.
func findPattern(nameOrID string) (uia.Pattern, error) {
	id, idErr := uia.ParseGUID(nameOrID)
	for _, p := range catalog {
		if strings.EqualFold(p.Name, nameOrID) || (idErr == nil && p.ID == id) {
			return p, nil
		}
	}
	return uia.Pattern{}, fmt.Errorf("unknown pattern %q", nameOrID)
}

// patternsNamed returns the named built-in patterns, or all of them
// if names is empty, ordered by name.
func patternsNamed(names []string) ([]uia.Pattern, error) {
	pats := heapq.New(func(a, b uia.Pattern) int {
		return cmp.Compare(a.Name, b.Name)
	})
	if len(names) == 0 {
		for _, p := range catalog {
			pats.Add(p)
		}
	}
	for _, name := range names {
		p, err := findPattern(name)
		if err != nil {
			return nil, err
		}
		pats.Add(p)
	}
	var ret []uia.Pattern
	for !pats.IsEmpty() {
		p, _ := pats.Pop()
		ret = append(ret, p)
	}
	return ret, nil
}

// catalogRegistrar assigns identifiers from each pattern's position
// in the catalog, so that separate processes agree on them without
// talking to each other.
type catalogRegistrar struct{}

const (
	idsPerPattern   = 1000
	standaloneIDOff = 500
)

func catalogBase(id uia.GUID) (int, error) {
	for i, p := range catalog {
		if p.ID == id {
			return (i + 1) * idsPerPattern, nil
		}
	}
	return 0, fmt.Errorf("pattern %s is not in the catalog", id)
}

func (catalogRegistrar) RegisterPattern(ctx context.Context, desc *uia.Descriptor) (uia.Registration, error) {
	base, err := catalogBase(desc.ID)
	if err != nil {
		return uia.Registration{}, err
	}
	ret := uia.Registration{
		PatternID:   base,
		PropertyIDs: map[string]int{},
	}
	for _, p := range desc.Properties {
		ret.PropertyIDs[p.Name] = base + 1 + p.Index
	}
	return ret, nil
}

func (catalogRegistrar) RegisterProperty(ctx context.Context, prop *uia.PropertyDescriptor) (int, error) {
	for _, p := range catalog {
		for i, decl := range p.Properties {
			if decl.ID == prop.ID {
				base, err := catalogBase(p.ID)
				if err != nil {
					return 0, err
				}
				return base + standaloneIDOff + i, nil
			}
		}
	}
	return 0, fmt.Errorf("property %s is not in the catalog", prop.Name)
}

func newRegistry() *uia.Registry {
	return uia.NewRegistry(catalogRegistrar{}, uia.RegistryOptions{Logger: slog.Default()})
}

func bridgeConn(ctx context.Context) (*remote.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return remote.Dial(ctx, globalArgs.Socket, remote.DialOptions{
		Logger:      slog.Default(),
		CallTimeout: 10 * time.Second,
	})
}

// bridgeClient returns a client for the bridge's instance of the
// named pattern, and a function that closes its connection.
func bridgeClient(ctx context.Context, name string) (*uia.Client, func(), error) {
	p, err := findPattern(name)
	if err != nil {
		return nil, nil, err
	}
	conn, err := bridgeConn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to bridge: %w", err)
	}
	c, err := newRegistry().Client(ctx, p, conn.Instance(p.ID).WithContext(ctx))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return c, func() { conn.Close() }, nil
}

// parseArgs parses command line arguments for the consumer side of
// method m.
func parseArgs(m *uia.MethodDescriptor, args []string) ([]any, error) {
	if len(args) != len(m.ConsumerIn) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", m.Name, len(m.ConsumerIn), len(args))
	}
	ret := make([]any, len(args))
	for i, arg := range args {
		param := m.Params[m.ConsumerIn[i]]
		v, err := parseArg(arg, param.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", param.Name, err)
		}
		ret[i] = reflect.ValueOf(v).Convert(m.ConsumerTypes[i]).Interface()
	}
	return ret, nil
}

func parseArg(s string, t uia.Type) (any, error) {
	switch t {
	case uia.TypeBool:
		return strconv.ParseBool(s)
	case uia.TypeInt:
		i, err := strconv.ParseInt(s, 0, 32)
		return int32(i), err
	case uia.TypeDouble:
		return strconv.ParseFloat(s, 64)
	case uia.TypeString:
		return s, nil
	case uia.TypeElement:
		tok, err := strconv.ParseUint(s, 0, 64)
		return uia.ElementFromToken(tok), err
	default:
		return nil, fmt.Errorf("cannot parse %s arguments", t)
	}
}
