//go:build linux

package poll

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Sockets performs non-blocking I/O on raw stream socket descriptors.
// Errors are returned as syscall.Errno so callers can test for EAGAIN and
// EINTR directly.
type Sockets struct{}

func (Sockets) Peek(fd int, buffer []byte) (int, error) {
	n, _, err := unix.Recvfrom(fd, buffer, unix.MSG_PEEK)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (Sockets) Recv(fd int, buffer []byte) (int, error) {
	n, err := unix.Read(fd, buffer)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (Sockets) Send(fd int, buffer []byte) (int, error) {
	return unix.SendmsgN(fd, buffer, nil, nil, unix.MSG_NOSIGNAL)
}

// SocketError reads and clears the pending socket error.
func (Sockets) SocketError(fd int) error {
	code, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if code != 0 {
		return syscall.Errno(code)
	}
	return nil
}
