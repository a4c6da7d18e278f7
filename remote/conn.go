// Package remote bridges pattern instances across processes.
//
// A [Server] hosts pattern instances, usually [uia.Dispatcher]s, on a
// Unix domain socket. A [Conn] connects to a Server, and its
// [Conn.Instance] method returns a [uia.Instance] that forwards
// indexed property reads and method calls to the hosted instance.
// This lets a [uia.Client] in one process drive a provider in
// another, the way the native automation layer does.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/danderson/uia"
	"github.com/danderson/uia/transport"
	"github.com/danderson/uia/wire"
)

// DialOptions are the optional settings of [Dial].
type DialOptions struct {
	// Logger receives protocol error logs. If nil, [slog.Default]
	// is used.
	Logger *slog.Logger
	// CallTimeout bounds calls made through the [uia.Instance]
	// interface, which carries no context. If zero, such calls wait
	// until the server replies or the connection closes.
	CallTimeout time.Duration
}

// Dial connects to the bridge server listening at the given socket
// path.
func Dial(ctx context.Context, path string, opts DialOptions) (*Conn, error) {
	t, err := transport.DialUnix(ctx, path)
	if err != nil {
		return nil, err
	}
	return newConn(t, opts), nil
}

func newConn(t transport.Transport, opts DialOptions) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ret := &Conn{
		t:           t,
		logger:      logger,
		callTimeout: opts.CallTimeout,
		enc:         wire.Encoder{Order: wire.NativeEndian},
		calls:       map[uint32]*pendingCall{},
		done:        make(chan struct{}),
	}
	go ret.readLoop()
	return ret
}

// Conn is a connection to a bridge [Server].
//
// A Conn is safe for concurrent use. Calls from several goroutines
// are pipelined over the connection, and served by the server in the
// order they were sent.
type Conn struct {
	t           transport.Transport
	logger      *slog.Logger
	callTimeout time.Duration

	writeMu sync.Mutex
	enc     wire.Encoder

	mu         sync.Mutex
	closed     bool
	calls      map[uint32]*pendingCall
	lastSerial uint32
	done       chan struct{}
}

type pendingCall struct {
	notify chan struct{}
	resp   func(*wire.Decoder) error
	err    error
}

// Close closes the connection. Pending calls fail with
// [net.ErrClosed].
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for serial, pending := range c.calls {
		pending.err = net.ErrClosed
		close(pending.notify)
		delete(c.calls, serial)
	}
	return c.t.Close()
}

// Done returns a channel that is closed when the connection's read
// loop exits, either because Close was called or because the server
// went away.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Instance returns a handle to the instance hosted for the pattern
// with the given GUID. No request is made until the handle is used.
func (c *Conn) Instance(id uia.GUID) *Instance {
	return &Instance{c: c, id: id}
}

// List returns the instances hosted by the server.
func (c *Conn) List(ctx context.Context) ([]Hosted, error) {
	var ret []Hosted
	err := c.call(ctx, opList, nil, func(d *wire.Decoder) (err error) {
		ret, err = decodeHosted(d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		m, err := readMsg(c.t)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				// Errors that bubble out here are either the
				// server hanging up, or a failure to conform to
				// the bridge protocol. Both are fatal to the Conn.
				c.logger.Warn("bridge connection lost", "err", err)
				c.Close()
			}
			return
		}
		if err := c.dispatchReply(m); err != nil {
			c.logger.Warn("bridge protocol error", "err", err)
			c.Close()
			return
		}
	}
}

func (c *Conn) dispatchReply(m *msg) error {
	pending := func() *pendingCall {
		c.mu.Lock()
		defer c.mu.Unlock()
		ret := c.calls[m.ReplySerial]
		delete(c.calls, m.ReplySerial)
		return ret
	}()
	if pending == nil {
		// Response to a canceled call.
		return nil
	}
	defer close(pending.notify)

	switch m.Type {
	case msgTypeReturn:
		if pending.resp != nil {
			if err := pending.resp(m.Decoder()); err != nil {
				pending.err = fmt.Errorf("decoding %s reply: %w", m.Op, err)
			}
		}
	case msgTypeError:
		d := m.Decoder()
		name, err := d.String()
		if err != nil {
			pending.err = fmt.Errorf("decoding %s error reply: %w", m.Op, err)
			return nil
		}
		detail, err := d.String()
		if err != nil {
			detail = fmt.Sprintf("got error while decoding error detail: %v", err)
		}
		pending.err = CallError{Name: name, Detail: detail}
	default:
		pending.err = fmt.Errorf("unexpected message type %d in reply", m.Type)
		return pending.err
	}
	return nil
}

// call sends a request and waits for its reply. body encodes the
// request body and may be nil; resp decodes the reply body and may be
// nil.
func (c *Conn) call(ctx context.Context, o op, body func(*wire.Encoder) error, resp func(*wire.Decoder) error) error {
	serial, pending := func() (uint32, *pendingCall) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return 0, nil
		}
		c.lastSerial++
		if c.lastSerial == 0 {
			c.lastSerial++
		}
		pend := &pendingCall{
			notify: make(chan struct{}),
			resp:   resp,
		}
		c.calls[c.lastSerial] = pend
		return c.lastSerial, pend
	}()
	if pending == nil {
		return net.ErrClosed
	}
	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.calls[serial] == pending {
			delete(c.calls, serial)
		}
	}()

	hdr := header{
		Type:   msgTypeCall,
		Op:     o,
		Serial: serial,
	}
	if err := c.writeMsg(&hdr, body); err != nil {
		return err
	}

	select {
	case <-pending.notify:
		return pending.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) writeMsg(hdr *header, body func(*wire.Encoder) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := encodeMsg(&c.enc, hdr, body); err != nil {
		return fmt.Errorf("encoding %s request: %w", hdr.Op, err)
	}
	if _, err := c.t.Write(c.enc.Out); err != nil {
		return fmt.Errorf("sending %s request: %w", hdr.Op, err)
	}
	return nil
}

// Instance is a [uia.Instance] hosted by a bridge [Server].
//
// Instance also implements [uia.StandaloneSource].
type Instance struct {
	c   *Conn
	id  uia.GUID
	ctx context.Context
}

// WithContext returns a copy of i whose calls are bounded by ctx
// rather than by the connection's call timeout.
func (i *Instance) WithContext(ctx context.Context) *Instance {
	ret := *i
	ret.ctx = ctx
	return &ret
}

func (i *Instance) context() (context.Context, context.CancelFunc) {
	if i.ctx != nil {
		return i.ctx, func() {}
	}
	if i.c.callTimeout > 0 {
		return context.WithTimeout(context.Background(), i.c.callTimeout)
	}
	return context.Background(), func() {}
}

// GetProperty implements [uia.Instance].
func (i *Instance) GetProperty(index int, cached bool, t uia.Type) (uia.Variant, error) {
	return i.getProperty(opGetProperty, index, cached, t)
}

// GetStandaloneProperty implements [uia.StandaloneSource].
func (i *Instance) GetStandaloneProperty(id int, cached bool, t uia.Type) (uia.Variant, error) {
	return i.getProperty(opGetStandalone, id, cached, t)
}

func (i *Instance) getProperty(o op, index int, cached bool, t uia.Type) (uia.Variant, error) {
	ctx, cancel := i.context()
	defer cancel()
	req := propertyRequest{
		Pattern: i.id,
		Index:   int32(index),
		Cached:  cached,
		Type:    t,
	}
	var ret uia.Variant
	err := i.c.call(ctx, o, req.encode, func(d *wire.Decoder) (err error) {
		ret, err = d.Variant()
		return err
	})
	if err != nil {
		return uia.Variant{}, err
	}
	return ret, nil
}

// CallMethod implements [uia.Instance]. The out-parameters written by
// the remote instance are copied into params.
func (i *Instance) CallMethod(index int, params []uia.Variant) error {
	ctx, cancel := i.context()
	defer cancel()
	req := methodRequest{
		Pattern: i.id,
		Index:   int32(index),
		Params:  params,
	}
	return i.c.call(ctx, opCallMethod, req.encode, func(d *wire.Decoder) error {
		got, err := d.Variants()
		if err != nil {
			return err
		}
		if len(got) != len(params) {
			return errors.New("reply parameter buffer has the wrong length")
		}
		copy(params, got)
		return nil
	})
}
