// Command uia inspects automation patterns, and runs and queries
// bridge servers that host them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/danderson/uia"
	"github.com/danderson/uia/internal/uiagen"
	"github.com/danderson/uia/patterns/gauge"
	"github.com/danderson/uia/patterns/selection"
	"github.com/danderson/uia/remote"
	"github.com/danderson/uia/transport"
	"github.com/kr/pretty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var globalArgs struct {
	Socket  string `flag:"socket,default=/tmp/uia-bridge.sock,Path of the bridge socket"`
	Verbose bool   `flag:"verbose,Enable debug logging"`
}

func main() {
	root := &command.C{
		Name:     "uia",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Init: func(env *command.Env) error {
			level := slog.LevelInfo
			if globalArgs.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*command.C{
			{
				Name:     "describe",
				Usage:    "describe [pattern...]",
				Help:     "Print the descriptors of built-in patterns.\n\nWith no arguments, all built-in patterns are described.",
				SetFlags: command.Flags(flax.MustBind, &describeArgs),
				Run:      runDescribe,
			},
			{
				Name:     "generate",
				Usage:    "generate pattern",
				Help:     "Generate the typed consumer wrapper of a built-in pattern.",
				SetFlags: command.Flags(flax.MustBind, &generateArgs),
				Run:      command.Adapt(runGenerate),
			},
			{
				Name:  "serve",
				Usage: "serve",
				Help: `Run a bridge server hosting demo instances of the built-in patterns.

The server listens on --socket until interrupted.`,
				SetFlags: command.Flags(flax.MustBind, &serveArgs),
				Run:      command.Adapt(runServe),
			},
			{
				Name:  "list",
				Usage: "list",
				Help:  "List the pattern instances hosted by a bridge server.",
				Run:   command.Adapt(runList),
			},
			{
				Name:     "get",
				Usage:    "get pattern property",
				Help:     "Read a property of a pattern instance hosted by a bridge server.",
				SetFlags: command.Flags(flax.MustBind, &getArgs),
				Run:      command.Adapt(runGet),
			},
			{
				Name:  "call",
				Usage: "call pattern method [args...]",
				Help: `Call a method of a pattern instance hosted by a bridge server.

Arguments are given in the consumer's parameter order, and parsed
according to the parameter types. Elements are given as their
numeric token.`,
				Run: runCall,
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

var describeArgs struct {
	Raw bool `flag:"raw,Dump the full descriptor structure"`
}

func runDescribe(env *command.Env) error {
	pats, err := patternsNamed(env.Args)
	if err != nil {
		return err
	}
	var out indenter
	for i, p := range pats {
		desc, err := uia.Describe(p)
		if err != nil {
			return err
		}
		if i > 0 {
			out.s("")
		}
		if describeArgs.Raw {
			out.f("%# v", pretty.Formatter(desc))
			continue
		}
		out.indent(0)
		out.f("pattern %s %s", desc.Name, desc.ID)
		out.indent(1)
		for _, prop := range desc.Properties {
			out.v(prop)
		}
		for _, prop := range desc.Standalone {
			out.v(prop)
		}
		for _, m := range desc.Methods {
			out.v(m)
		}
	}
	return nil
}

var generateArgs struct {
	Package  string `flag:"pkg,Package name to output (default: lowercased pattern name)"`
	PkgPath  string `flag:"pkg-path,Import path of the output package"`
	TypeName string `flag:"type,default=Client,Name of the generated type"`
	OutFile  string `flag:"out,default=-,Output file path, or - for stdout"`
}

func runGenerate(env *command.Env, name string) error {
	p, err := findPattern(name)
	if err != nil {
		return err
	}
	desc, err := uia.Describe(p)
	if err != nil {
		return err
	}
	code, err := uiagen.Consumer(desc, uiagen.Options{
		Package:  generateArgs.Package,
		PkgPath:  generateArgs.PkgPath,
		TypeName: generateArgs.TypeName,
	})
	if err != nil {
		return fmt.Errorf("generating consumer for %s: %w", desc.Name, err)
	}

	if generateArgs.OutFile == "-" {
		_, err := io.WriteString(os.Stdout, code)
		return err
	}
	if err := os.WriteFile(generateArgs.OutFile, []byte(code), 0644); err != nil {
		return fmt.Errorf("writing generated code: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s consumer to %s\n", desc.Name, generateArgs.OutFile)
	return nil
}

var serveArgs struct {
	Metrics string `flag:"metrics,Address to serve Prometheus metrics on, if set"`
}

func runServe(env *command.Env) error {
	ctx := env.Context()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := remote.NewServer(remote.ServerOptions{
		Logger:     slog.Default(),
		Registerer: reg,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	registry := newRegistry()
	meter, err := gauge.NewMeter(gauge.MeterConfig{
		Min:   0,
		Max:   100,
		Label: "demo",
		Step:  5,
		Unit:  "%",
	})
	if err != nil {
		return err
	}
	demos := []struct {
		p    uia.Pattern
		impl any
	}{
		{selection.Pattern, selection.NewText("hello, world")},
		{gauge.Pattern, meter},
	}
	for _, demo := range demos {
		d, err := registry.Dispatcher(ctx, demo.p, demo.impl)
		if err != nil {
			return fmt.Errorf("hosting %s: %w", demo.p.Name, err)
		}
		srv.Host(d.Descriptor(), d)
	}

	if serveArgs.Metrics != "" {
		ln, err := net.Listen("tcp", serveArgs.Metrics)
		if err != nil {
			return fmt.Errorf("listening for metrics: %w", err)
		}
		hs := &http.Server{
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go hs.Serve(ln)
		defer hs.Close()
		slog.Info("serving metrics", "addr", ln.Addr())
	}

	ln, err := transport.ListenUnix(globalArgs.Socket)
	if err != nil {
		return err
	}
	err = srv.Serve(ctx, ln)
	if errors.Is(err, net.ErrClosed) && ctx.Err() != nil {
		fmt.Println("shutdown")
		return nil
	}
	return err
}

func runList(env *command.Env) error {
	conn, err := bridgeConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bridge: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), 10*time.Second)
	defer cancel()
	hosted, err := conn.List(ctx)
	if err != nil {
		return fmt.Errorf("listing hosted instances: %w", err)
	}
	for _, h := range hosted {
		fmt.Printf("%s %s\n", h.ID, h.Pattern)
	}
	return nil
}

var getArgs struct {
	Cached bool `flag:"cached,Read the cached value instead of the current value"`
}

func runGet(env *command.Env, pattern, property string) error {
	c, closeConn, err := bridgeClient(env.Context(), pattern)
	if err != nil {
		return err
	}
	defer closeConn()

	v, err := c.Get(property, getArgs.Cached)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runCall(env *command.Env) error {
	if len(env.Args) < 2 {
		return env.Usagef("call requires a pattern and a method")
	}
	c, closeConn, err := bridgeClient(env.Context(), env.Args[0])
	if err != nil {
		return err
	}
	defer closeConn()

	m, ok := c.Descriptor().Method(env.Args[1])
	if !ok {
		return fmt.Errorf("pattern %s has no method %s", c.Descriptor().Name, env.Args[1])
	}
	args, err := parseArgs(m, env.Args[2:])
	if err != nil {
		return err
	}
	res, err := c.Invoke(m.Name, args...)
	if err != nil {
		return err
	}
	for _, v := range res {
		fmt.Println(v)
	}
	return nil
}
