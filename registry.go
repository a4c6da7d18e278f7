package uia

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sync"
)

// Registrar is the native automation subsystem's registration entry
// point. It assigns numeric identifiers to patterns and properties.
type Registrar interface {
	// RegisterPattern registers a pattern and its indexed
	// properties.
	RegisterPattern(ctx context.Context, desc *Descriptor) (Registration, error)
	// RegisterProperty registers a standalone property.
	RegisterProperty(ctx context.Context, prop *PropertyDescriptor) (int, error)
}

// Registration is the numeric identity assigned to a pattern by the
// native automation subsystem.
type Registration struct {
	// Pattern is the registered pattern's GUID.
	Pattern GUID
	// PatternID is the pattern's numeric identifier.
	PatternID int
	// PropertyIDs maps indexed property names to their numeric
	// identifiers.
	PropertyIDs map[string]int
	// StandaloneIDs maps standalone property names to their numeric
	// identifiers.
	StandaloneIDs map[string]int
}

// RegistryOptions are the optional settings of a [Registry].
type RegistryOptions struct {
	// Logger receives debug logs about registrations. If nil,
	// nothing is logged.
	Logger *slog.Logger
}

// Registry holds the descriptors and registration records of the
// patterns used by a process.
//
// Descriptors are built on first use and cached for the life of the
// Registry, along with descriptor build errors. Each pattern is
// registered with the Registrar at most once.
//
// A Registry is safe for concurrent use.
type Registry struct {
	registrar Registrar
	logger    *slog.Logger

	descs cache[GUID, *Descriptor]

	// regMu serializes calls to the registrar, so that a pattern
	// is never registered twice.
	regMu sync.Mutex
	// partial holds records whose pattern registration succeeded but
	// whose standalone properties are not all registered yet. Guarded
	// by regMu.
	partial map[GUID]*Registration

	mu       sync.Mutex
	patterns map[GUID]Pattern
	records  map[GUID]*Registration
}

// NewRegistry returns a Registry that registers patterns with r.
func NewRegistry(r Registrar, opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &Registry{
		registrar: r,
		logger:    logger,
		partial:   map[GUID]*Registration{},
		patterns:  map[GUID]Pattern{},
		records:   map[GUID]*Registration{},
	}
}

// Describe returns the Descriptor for p, building it on first use.
//
// A GUID can only be used by one pattern declaration. Describing a
// different declaration with an already used GUID results in a
// [SchemaError].
func (r *Registry) Describe(p Pattern) (*Descriptor, error) {
	if err := r.claimID(p); err != nil {
		return nil, err
	}
	if ret, err := r.descs.Get(p.ID); !isNotFound(err) {
		return ret, err
	}
	ret, err := Describe(p)
	if err != nil {
		r.descs.SetErr(p.ID, err)
	} else {
		r.descs.Set(p.ID, ret)
	}
	// Another goroutine may have raced us, use whatever won.
	return r.descs.Get(p.ID)
}

func (r *Registry) claimID(p Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.patterns[p.ID]
	if !ok {
		r.patterns[p.ID] = p
		return nil
	}
	if prev.Name != p.Name || prev.Provider != p.Provider || prev.Consumer != p.Consumer ||
		!reflect.DeepEqual(prev.Properties, p.Properties) || !reflect.DeepEqual(prev.Methods, p.Methods) {
		return SchemaError{
			Pattern: p.Name,
			Reason:  fmt.Errorf("identifier %s already used by pattern %s", p.ID, prev.Name),
		}
	}
	return nil
}

// Register registers p with the Registrar, and returns its
// registration record.
//
// Register is idempotent: once p is registered, later calls return
// the same record without calling the Registrar again. Errors from
// the Registrar are returned unchanged, and are not remembered. If
// a standalone property fails to register, a later call registers
// only the properties still missing, and never the pattern again.
func (r *Registry) Register(ctx context.Context, p Pattern) (*Registration, error) {
	desc, err := r.Describe(p)
	if err != nil {
		return nil, err
	}
	if rec, ok := r.Registration(desc.ID); ok {
		return rec, nil
	}

	r.regMu.Lock()
	defer r.regMu.Unlock()
	if rec, ok := r.Registration(desc.ID); ok {
		return rec, nil
	}

	rec := r.partial[desc.ID]
	if rec == nil {
		reg, err := r.registrar.RegisterPattern(ctx, desc)
		if err != nil {
			return nil, err
		}
		rec = &Registration{
			Pattern:       desc.ID,
			PatternID:     reg.PatternID,
			PropertyIDs:   maps.Clone(reg.PropertyIDs),
			StandaloneIDs: map[string]int{},
		}
		if rec.PropertyIDs == nil {
			rec.PropertyIDs = map[string]int{}
		}
		r.partial[desc.ID] = rec
	}
	for _, prop := range desc.Standalone {
		if _, ok := rec.StandaloneIDs[prop.Name]; ok {
			continue
		}
		id, err := r.registrar.RegisterProperty(ctx, prop)
		if err != nil {
			return nil, err
		}
		rec.StandaloneIDs[prop.Name] = id
	}
	delete(r.partial, desc.ID)

	r.mu.Lock()
	r.records[desc.ID] = rec
	r.mu.Unlock()

	r.logger.Debug("registered automation pattern",
		"pattern", desc.Name,
		"guid", desc.ID,
		"pattern_id", rec.PatternID,
		"properties", len(desc.Properties),
		"standalone", len(desc.Standalone),
		"methods", len(desc.Methods))
	return rec, nil
}

// Registration returns the registration record for the pattern with
// the given GUID, if it has been registered.
func (r *Registry) Registration(id GUID) (*Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret, ok := r.records[id]
	return ret, ok
}

// Client registers p if needed, and returns a Client for the native
// pattern instance inst.
func (r *Registry) Client(ctx context.Context, p Pattern, inst Instance) (*Client, error) {
	rec, err := r.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	desc, err := r.Describe(p)
	if err != nil {
		return nil, err
	}
	return NewClient(desc, rec, inst), nil
}

// Dispatcher registers p if needed, and returns a Dispatcher that
// serves native calls using impl.
func (r *Registry) Dispatcher(ctx context.Context, p Pattern, impl any) (*Dispatcher, error) {
	rec, err := r.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	desc, err := r.Describe(p)
	if err != nil {
		return nil, err
	}
	d, err := NewDispatcher(desc, impl)
	if err != nil {
		return nil, err
	}
	return d.WithRegistration(rec), nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
