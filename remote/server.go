package remote

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/creachadair/mds/mapset"
	"github.com/danderson/uia"
	"github.com/danderson/uia/transport"
	"github.com/danderson/uia/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// ServerOptions are the optional settings of a [Server].
type ServerOptions struct {
	// Logger receives connection lifecycle and protocol error
	// logs. If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Registerer is where the server's Prometheus metrics are
	// registered. If nil, metrics are collected but not exported.
	Registerer prometheus.Registerer
}

// Server serves pattern instances to bridge clients.
//
// Each hosted instance is addressed by its pattern's GUID. Requests
// on one connection are served one at a time, in arrival order, and
// are dispatched synchronously to the hosted instance.
type Server struct {
	logger  *slog.Logger
	metrics *metrics

	mu        sync.Mutex
	closed    bool
	hosted    map[uia.GUID]hostedInstance
	listeners mapset.Set[*transport.Listener]
	conns     mapset.Set[transport.Transport]
	wg        sync.WaitGroup
}

type hostedInstance struct {
	desc *uia.Descriptor
	inst uia.Instance
}

// NewServer returns a Server hosting no instances.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	return &Server{
		logger:    logger,
		metrics:   m,
		hosted:    map[uia.GUID]hostedInstance{},
		listeners: mapset.New[*transport.Listener](),
		conns:     mapset.New[transport.Transport](),
	}, nil
}

// Host makes inst available to clients as an instance of the pattern
// described by desc, replacing any instance previously hosted for
// that pattern.
//
// inst is typically a [uia.Dispatcher]. If inst implements
// [uia.StandaloneSource], its standalone properties are served too.
func (s *Server) Host(desc *uia.Descriptor, inst uia.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosted[desc.ID] = hostedInstance{desc, inst}
}

// Unhost stops serving the instance hosted for the given pattern.
func (s *Server) Unhost(id uia.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hosted, id)
}

// Hosted returns the hosted instances, ordered by pattern name.
func (s *Server) Hosted() []Hosted {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Hosted, 0, len(s.hosted))
	for id, h := range s.hosted {
		ret = append(ret, Hosted{id, h.desc.Name})
	}
	slices.SortFunc(ret, func(a, b Hosted) int {
		return cmp.Or(cmp.Compare(a.Pattern, b.Pattern), slices.Compare(a.ID[:], b.ID[:]))
	})
	return ret
}

func (s *Server) lookup(id uia.GUID) (hostedInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosted[id]
	if !ok {
		return hostedInstance{}, unknownPatternError{id}
	}
	return h, nil
}

// Serve accepts connections on ln and serves them until ln is
// closed, ctx is canceled, or the server is closed. Serve always
// returns a non-nil error; after Close, the error is [net.ErrClosed].
func (s *Server) Serve(ctx context.Context, ln *transport.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	s.listeners.Add(ln)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners.Remove(ln)
	}()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("bridge server listening", "socket", ln.Addr())
	for {
		t, err := ln.Accept(ctx)
		if errors.Is(err, net.ErrClosed) {
			return err
		} else if err != nil {
			// A failed handshake only affects that client.
			s.logger.Warn("bridge handshake failed", "err", err)
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			t.Close()
			return net.ErrClosed
		}
		s.conns.Add(t)
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, t)
		}()
	}
}

// Close stops all listeners, closes all client connections, and waits
// for in-flight requests to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var errs []error
	for ln := range s.listeners {
		errs = append(errs, ln.Close())
	}
	for t := range s.conns {
		t.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return errors.Join(errs...)
}

func (s *Server) serveConn(ctx context.Context, t transport.Transport) {
	logger := s.logger
	if creds, err := t.Peer(); err == nil {
		logger = logger.With("peer", creds.String())
	}
	logger.DebugContext(ctx, "bridge client connected")
	s.metrics.connections.Inc()
	defer func() {
		s.metrics.connections.Dec()
		s.mu.Lock()
		s.conns.Remove(t)
		s.mu.Unlock()
		t.Close()
		logger.DebugContext(ctx, "bridge client disconnected")
	}()

	enc := wire.Encoder{Order: wire.NativeEndian}
	var serial uint32
	for {
		m, err := readMsg(t)
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return
		} else if err != nil {
			// Errors that bubble out here are a failure to conform
			// to the bridge protocol, and are fatal to the
			// connection.
			logger.Warn("bridge protocol error", "err", err)
			return
		}
		if m.Type != msgTypeCall {
			logger.Warn("bridge protocol error", "err", fmt.Errorf("unexpected message type %d from client", m.Type))
			return
		}

		serial++
		resp := &header{
			Type:        msgTypeReturn,
			Op:          m.Op,
			Serial:      serial,
			ReplySerial: m.Serial,
		}
		start := time.Now()
		body, err := s.dispatch(m)
		if err == nil {
			if err = encodeMsg(&enc, resp, body); err != nil {
				err = fmt.Errorf("encoding %s reply: %w", m.Op, err)
			}
		}
		s.metrics.observe(m.Op, start, err)
		if err != nil {
			logger.Debug("bridge request failed", "op", m.Op, "err", err)
			resp.Type = msgTypeError
			if err := encodeMsg(&enc, resp, encodeError(errorName(err), err)); err != nil {
				logger.Warn("encoding bridge error reply", "op", m.Op, "err", err)
				return
			}
		}
		if _, err := t.Write(enc.Out); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Warn("writing bridge response", "err", err)
			}
			return
		}
	}
}

// dispatch serves one call, and returns the encoder for the reply
// body.
func (s *Server) dispatch(m *msg) (func(*wire.Encoder) error, error) {
	switch m.Op {
	case opGetProperty, opGetStandalone:
		var req propertyRequest
		if err := req.decode(m.Decoder()); err != nil {
			return nil, fmt.Errorf("decoding request: %w", err)
		}
		h, err := s.lookup(req.Pattern)
		if err != nil {
			return nil, err
		}
		var v uia.Variant
		if m.Op == opGetProperty {
			v, err = h.inst.GetProperty(int(req.Index), req.Cached, req.Type)
		} else if src, ok := h.inst.(uia.StandaloneSource); ok {
			v, err = src.GetStandaloneProperty(int(req.Index), req.Cached, req.Type)
		} else {
			err = fmt.Errorf("instance of %s does not serve standalone properties: %w", h.desc.Name, uia.ErrNotDispatchable)
		}
		if err != nil {
			return nil, err
		}
		return func(e *wire.Encoder) error { return e.Variant(v) }, nil

	case opCallMethod:
		var req methodRequest
		if err := req.decode(m.Decoder()); err != nil {
			return nil, fmt.Errorf("decoding request: %w", err)
		}
		h, err := s.lookup(req.Pattern)
		if err != nil {
			return nil, err
		}
		if err := h.inst.CallMethod(int(req.Index), req.Params); err != nil {
			return nil, err
		}
		return func(e *wire.Encoder) error { return e.Variants(req.Params) }, nil

	case opList:
		hosted := s.Hosted()
		return func(e *wire.Encoder) error { return encodeHosted(e, hosted) }, nil

	default:
		return nil, fmt.Errorf("unknown operation %s", m.Op)
	}
}
