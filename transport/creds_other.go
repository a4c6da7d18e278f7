//go:build !linux

package transport

import "net"

func peerCreds(*net.UnixConn) (Creds, error) {
	return Creds{}, ErrCredsUnavailable
}
