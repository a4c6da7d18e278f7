// Package transport provides the byte stream connections used by the
// remote automation bridge.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// Transport is a raw bridge connection.
type Transport interface {
	io.ReadWriteCloser

	// Peer returns the credentials of the process at the other end
	// of the connection.
	Peer() (Creds, error)
}

// Creds are the credentials of a connected peer process.
type Creds struct {
	PID int
	UID int
	GID int
}

func (c Creds) String() string {
	return fmt.Sprintf("pid=%d uid=%d gid=%d", c.PID, c.UID, c.GID)
}

// ErrCredsUnavailable is returned by [Transport.Peer] on platforms
// that cannot report peer credentials.
var ErrCredsUnavailable = errors.New("peer credentials not available on this platform")

const (
	// hello is the greeting a client sends upon connecting.
	hello = "\x00UIA-BRIDGE 1\r\n"
	// welcome is the server's reply to a valid greeting.
	welcome = "OK\r\n"
)

// DialUnix connects to the bridge server listening at the given
// path.
func DialUnix(ctx context.Context, path string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	ret := newUnixTransport(conn.(*net.UnixConn))

	if err := ret.handshake(ctx, ret.clientHello); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}

// Listener accepts bridge connections on a Unix domain socket.
type Listener struct {
	ln *net.UnixListener
}

// ListenUnix listens for bridge connections at the given path. A
// stale socket file left at path by a previous server is replaced.
func ListenUnix(path string) (*Listener, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Net: "unix", Name: path})
	if err != nil {
		return nil, err
	}
	ln.SetUnlinkOnClose(true)
	return &Listener{ln}, nil
}

// Accept waits for the next client, and completes the bridge
// handshake with it.
func (l *Listener) Accept(ctx context.Context) (Transport, error) {
	conn, err := l.ln.AcceptUnix()
	if err != nil {
		return nil, err
	}
	ret := newUnixTransport(conn)
	if err := ret.handshake(ctx, ret.serverHello); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}

// Addr returns the socket path l is listening on.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Close stops listening and removes the socket file.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// unixTransport is a Transport that runs over a Unix domain socket.
type unixTransport struct {
	conn *net.UnixConn
	buf  *bufio.Reader
}

func newUnixTransport(conn *net.UnixConn) *unixTransport {
	return &unixTransport{
		conn: conn,
		buf:  bufio.NewReader(conn),
	}
}

func (u *unixTransport) Read(bs []byte) (int, error) {
	return u.buf.Read(bs)
}

func (u *unixTransport) Write(bs []byte) (int, error) {
	return u.conn.Write(bs)
}

func (u *unixTransport) Close() error {
	u.buf.Discard(u.buf.Buffered())
	return u.conn.Close()
}

func (u *unixTransport) Peer() (Creds, error) {
	return peerCreds(u.conn)
}

// handshake runs fn with the connection's deadline set from ctx.
func (u *unixTransport) handshake(ctx context.Context, fn func() error) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := u.conn.SetDeadline(deadline); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return u.conn.SetDeadline(time.Time{})
}

func (u *unixTransport) clientHello() error {
	if _, err := io.WriteString(u.conn, hello); err != nil {
		return err
	}
	resp, err := u.buf.ReadString('\n')
	if err != nil {
		return err
	}
	if resp != welcome {
		return fmt.Errorf("bridge handshake failed, server said %q", strings.TrimSpace(resp))
	}
	return nil
}

func (u *unixTransport) serverHello() error {
	// The greeting starts with a NUL, so read it in full rather than
	// by line.
	got := make([]byte, len(hello))
	if _, err := io.ReadFull(u.buf, got); err != nil {
		return err
	}
	if string(got) != hello {
		io.WriteString(u.conn, "ERROR unknown protocol\r\n")
		return fmt.Errorf("bad bridge greeting %q", got)
	}
	_, err := io.WriteString(u.conn, welcome)
	return err
}
