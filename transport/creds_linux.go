package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

func peerCreds(conn *net.UnixConn) (Creds, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Creds{}, err
	}
	var (
		cred    *unix.Ucred
		credErr error
	)
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return Creds{}, err
	}
	if credErr != nil {
		return Creds{}, credErr
	}
	return Creds{
		PID: int(cred.Pid),
		UID: int(cred.Uid),
		GID: int(cred.Gid),
	}, nil
}
