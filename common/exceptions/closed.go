package exceptions

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

func IsClosedOrCanceled(err error) bool {
	return IsMulti(err, context.Canceled, io.EOF, net.ErrClosed, io.ErrClosedPipe, os.ErrClosed, syscall.EPIPE, syscall.ECONNRESET, syscall.ENOTCONN)
}

func IsClosed(err error) bool {
	return IsClosedOrCanceled(err) && !errors.Is(err, syscall.ECONNREFUSED)
}
