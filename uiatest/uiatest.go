// Package uiatest provides fakes of the native automation layer, and
// a helper to run an isolated bridge server in tests.
package uiatest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/mds/queue"
	"github.com/danderson/uia"
	"github.com/danderson/uia/remote"
	"github.com/danderson/uia/transport"
)

// ErrUnscripted is returned by [Instance] when it is called with no
// scripted response left.
var ErrUnscripted = errors.New("no scripted response for call")

// Op is the kind of a call recorded by [Instance].
type Op string

const (
	OpGetProperty   Op = "GetProperty"
	OpGetStandalone Op = "GetStandaloneProperty"
	OpCallMethod    Op = "CallMethod"
)

// Call is one call received by an [Instance].
type Call struct {
	Op Op
	// Index is the property or method index, or the registered
	// identifier of a standalone property.
	Index  int
	Cached bool
	// Type is the requested property type. Unset for method calls.
	Type uia.Type
	// Params is the parameter buffer of a method call, as received.
	Params []uia.Variant
}

// Response is a scripted response to one call.
type Response struct {
	// Value is returned by property reads.
	Value uia.Variant
	// Outs are written into a method call's parameter buffer, by
	// slot.
	Outs map[int]uia.Variant
	// Err, if set, is returned instead.
	Err error
}

// Instance is a fake native pattern instance. It answers calls with
// scripted responses, in order, and records every call it receives.
//
// Instance implements [uia.Instance] and [uia.StandaloneSource]. It
// is safe for concurrent use.
type Instance struct {
	mu        sync.Mutex
	responses queue.Queue[Response]
	calls     []Call
}

// Push queues responses for future calls.
func (i *Instance) Push(rs ...Response) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, r := range rs {
		i.responses.Add(r)
	}
}

// Pending returns the number of scripted responses not yet used.
func (i *Instance) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.responses.Len()
}

// Calls returns the calls received so far.
func (i *Instance) Calls() []Call {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.calls)
}

// Touched reports whether the instance has received any call.
func (i *Instance) Touched() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.calls) > 0
}

func (i *Instance) next(c Call) (Response, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, c)
	r, ok := i.responses.Pop()
	if !ok {
		return Response{}, fmt.Errorf("%s(%d): %w", c.Op, c.Index, ErrUnscripted)
	}
	return r, r.Err
}

func (i *Instance) GetProperty(index int, cached bool, t uia.Type) (uia.Variant, error) {
	r, err := i.next(Call{Op: OpGetProperty, Index: index, Cached: cached, Type: t})
	if err != nil {
		return uia.Variant{}, err
	}
	return r.Value, nil
}

func (i *Instance) GetStandaloneProperty(id int, cached bool, t uia.Type) (uia.Variant, error) {
	r, err := i.next(Call{Op: OpGetStandalone, Index: id, Cached: cached, Type: t})
	if err != nil {
		return uia.Variant{}, err
	}
	return r.Value, nil
}

func (i *Instance) CallMethod(index int, params []uia.Variant) error {
	r, err := i.next(Call{Op: OpCallMethod, Index: index, Params: slices.Clone(params)})
	if err != nil {
		return err
	}
	for slot, v := range r.Outs {
		if slot < 0 || slot >= len(params) {
			return fmt.Errorf("scripted out-parameter slot %d outside buffer of %d", slot, len(params))
		}
		params[slot] = v
	}
	return nil
}

// Registrar is a fake native registrar that hands out sequential
// identifiers, starting at 1.
type Registrar struct {
	// Err, if set, is returned by every registration.
	Err error

	mu       sync.Mutex
	next     int
	patterns int
	props    int
}

func (r *Registrar) RegisterPattern(ctx context.Context, desc *uia.Descriptor) (uia.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns++
	if r.Err != nil {
		return uia.Registration{}, r.Err
	}
	r.next++
	ret := uia.Registration{
		PatternID:   r.next,
		PropertyIDs: make(map[string]int, len(desc.Properties)),
	}
	for _, p := range desc.Properties {
		r.next++
		ret.PropertyIDs[p.Name] = r.next
	}
	return ret, nil
}

func (r *Registrar) RegisterProperty(ctx context.Context, prop *uia.PropertyDescriptor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props++
	if r.Err != nil {
		return 0, r.Err
	}
	r.next++
	return r.next, nil
}

// Counts returns how many pattern and standalone property
// registrations r has received, including failed ones.
func (r *Registrar) Counts() (patterns, props int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patterns, r.props
}

// Loopback registers p with a fresh [Registrar], and returns a
// client wired directly to a dispatcher serving impl. It causes an
// immediate test failure if p or impl are invalid.
func Loopback(t testing.TB, p uia.Pattern, impl any) *uia.Client {
	t.Helper()
	ctx := context.Background()
	reg := uia.NewRegistry(&Registrar{}, uia.RegistryOptions{Logger: testLogger(t)})
	d, err := reg.Dispatcher(ctx, p, impl)
	if err != nil {
		t.Fatalf("creating %s dispatcher: %v", p.Name, err)
	}
	c, err := reg.Client(ctx, p, d)
	if err != nil {
		t.Fatalf("creating %s client: %v", p.Name, err)
	}
	return c
}

// Bridge is an isolated bridge server for tests.
type Bridge struct {
	srv  *remote.Server
	reg  *uia.Registry
	sock string
}

// New starts a bridge server dedicated to the calling test. It is
// shut down when the test completes.
//
// If logTraffic is true, the server's debug logs are written using
// t.Log.
func New(t testing.TB, logTraffic bool) *Bridge {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if logTraffic {
		logger = testLogger(t)
	}
	srv, err := remote.NewServer(remote.ServerOptions{Logger: logger})
	if err != nil {
		t.Fatalf("creating bridge server: %v", err)
	}

	sock := filepath.Join(t.TempDir(), "bridge.sock")
	ln, err := transport.ListenUnix(sock)
	if err != nil {
		t.Fatalf("listening on bridge socket: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		srv.Close()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			t.Log("timed out waiting for bridge server to stop")
		}
	})

	return &Bridge{
		srv:  srv,
		reg:  uia.NewRegistry(&Registrar{}, uia.RegistryOptions{Logger: logger}),
		sock: sock,
	}
}

// Socket returns the path to the bridge's unix socket.
func (b *Bridge) Socket() string {
	return b.sock
}

// Registry returns the registry shared by the bridge's server and
// clients.
func (b *Bridge) Registry() *uia.Registry {
	return b.reg
}

// Host serves impl as the bridge's instance of p. It causes an
// immediate test failure if p or impl are invalid.
func (b *Bridge) Host(t testing.TB, p uia.Pattern, impl any) {
	t.Helper()
	d, err := b.reg.Dispatcher(context.Background(), p, impl)
	if err != nil {
		t.Fatalf("creating %s dispatcher: %v", p.Name, err)
	}
	b.srv.Host(d.Descriptor(), d)
}

// MustConn returns a connection to the bridge. It causes an
// immediate test failure with t.Fatal if it is unable to connect.
func (b *Bridge) MustConn(t testing.TB) *remote.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ret, err := remote.Dial(ctx, b.sock, remote.DialOptions{CallTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("connecting to test bridge: %v", err)
	}
	t.Cleanup(func() { ret.Close() })
	return ret
}

// MustClient returns a client for the bridge's instance of p, over a
// new connection.
func (b *Bridge) MustClient(t testing.TB, p uia.Pattern) *uia.Client {
	t.Helper()
	conn := b.MustConn(t)
	c, err := b.reg.Client(context.Background(), p, conn.Instance(p.ID))
	if err != nil {
		t.Fatalf("creating %s client: %v", p.Name, err)
	}
	return c
}

func testLogger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// logWriter writes complete lines to a test log.
type logWriter struct {
	t   testing.TB
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logWriter) Write(bs []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(bs)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i == -1 {
			return len(bs), nil
		}
		line := l.buf.Next(i + 1)
		l.t.Log(string(line[:i]))
	}
}
