// Package uia marshals calls to user-defined UI automation patterns
// across the boundary between automation clients and the controls
// that implement those patterns.
//
// A pattern is declared once, as a [Pattern] value naming the
// pattern's identifiers, its properties and methods in declaration
// order, and two Go interfaces: the Provider interface implemented by
// controls, and the Consumer interface used by automation clients.
// [Describe] checks that the declaration and both interfaces agree,
// and produces a [Descriptor] that both sides of the boundary use to
// agree on property and method indices.
//
// On the consumer side, a [Client] turns calls by member name into
// indexed calls on a native [Instance]. On the provider side, a
// [Dispatcher] implements Instance by calling into a concrete
// provider. A [Registry] registers patterns with the native
// automation subsystem at most once, and caches their descriptors.
//
// # Types
//
// Values cross the boundary as [Variant]s tagged with one of five
// semantic types:
//
//	bool     TypeBool
//	int32    TypeInt
//	float64  TypeDouble
//	string   TypeString
//	Element  TypeElement
//
// Named types whose underlying type is bool, int32, float64 or string
// carry the same semantic type as their underlying type, so a
// provider may return a Meters float64 to a consumer that reads
// float64. All other Go types, including int, float32 and pointers,
// are rejected with a [TypeError].
//
// # Properties
//
// A declared property Abc requires a provider getter
//
//	Abc() T
//	Abc() (T, error)
//
// and two consumer getters
//
//	CurrentAbc() (T, error)
//	CachedAbc() (T, error)
//
// CurrentAbc reads the live value, CachedAbc reads the value from the
// native layer's most recent cached snapshot. Both read property
// index i, where i is Abc's position among the pattern's indexed
// properties.
//
// Properties declared with [StandaloneProperty] have no index. They
// are registered individually, and read by their registered numeric
// identifier.
//
// # Methods
//
// A method's parameters are in-parameters, out-parameters, and
// optionally a return value slot declared with [Return]. On the wire,
// a method call is a single buffer of Variants holding all
// in-parameters then all out-parameters, each group in declaration
// order. The return value slot is an out-parameter like any other.
//
// The provider's Go method takes the in-parameters as arguments in
// declaration order, and returns the return value (if any) followed
// by the out-parameters in declaration order, optionally followed by
// an error.
//
// The consumer's Go method takes the in-parameters as arguments and
// returns the return value (if any) followed by the out-parameters,
// followed by an error. The consumer may list parameters in a
// different order from the provider with [MethodDecl.ConsumerOrder];
// arguments are matched by name, not position.
package uia
