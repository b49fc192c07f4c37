package connection

import (
	"errors"
	"syscall"

	"github.com/sagernet/sing-relay/common/buf"
	"github.com/sagernet/sing-relay/protocol/haproxy"
)

// peekBufferSize comfortably holds the longest legal PROXY line.
const peekBufferSize = 256

// recvProxy waits for a PROXY line at the start of the stream and replaces
// the connection addresses with the ones it announces. The line is parsed
// from a peeked copy and only removed from the socket once it is known to
// be valid, relying on it arriving as one segment.
func (c *Conn) recvProxy(phase Handshake) bool {
	if c.shutdown.Has(ShutRead) {
		c.fail(ErrorCodeProxyEmpty, 0)
		return false
	}
	if !c.ctrlReady {
		c.fail(ErrorCodeNone, 0)
		return false
	}
	if !c.poller.RecvReady(c.fd) {
		c.sockWant.Read = true
		return false
	}

	buffer := buf.Get(peekBufferSize)
	defer buf.Put(buffer)

	var (
		n   int
		err error
	)
	for {
		n, err = c.socket.Peek(c.fd, buffer)
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			c.poller.CantRecv(c.fd)
			c.sockWant.Read = true
			return false
		}
		c.fail(ErrorCodeProxyAbort, ShutBoth)
		return false
	}
	if n == 0 {
		c.fail(ErrorCodeProxyEmpty, 0)
		return false
	}

	header, length, err := haproxy.Parse(buffer[:n])
	if err != nil {
		switch {
		case errors.Is(err, haproxy.ErrIncomplete):
			c.poller.CantRecv(c.fd)
			c.sockWant.Read = true
			return false
		case errors.Is(err, haproxy.ErrTruncated):
			c.fail(ErrorCodeProxyTruncated, 0)
		case errors.Is(err, haproxy.ErrNotHeader):
			c.fail(ErrorCodeProxyNotHeader, 0)
		case errors.Is(err, haproxy.ErrBadProtocol):
			c.fail(ErrorCodeProxyBadProtocol, 0)
		default:
			c.fail(ErrorCodeProxyBadHeader, 0)
		}
		return false
	}

	for {
		n, err = c.socket.Recv(c.fd, buffer[:length])
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}
	if err != nil || n != length {
		c.fail(ErrorCodeProxyAbort, ShutBoth)
		return false
	}

	c.SetSource(header.Source)
	c.SetDestination(header.Destination)
	c.HandshakeDone(phase)
	return true
}

// sendProxy writes the PROXY line queued by EnableSendProxy. A partial write
// is resumed on the next round from where it stopped. Completing the write
// also proves the outgoing connect succeeded.
func (c *Conn) sendProxy(phase Handshake) bool {
	if c.shutdown.Has(ShutWrite) || !c.ctrlReady {
		c.fail(ErrorCodeSendProxy, 0)
		return false
	}
	if !c.poller.SendReady(c.fd) {
		c.sockWant = Polling{Write: true}
		return false
	}

	buffer := buf.Get(haproxy.MaxHeaderLength)
	defer buf.Put(buffer)
	length := haproxy.WriteHeader(buffer, &c.proxySource, &c.proxyDestination)
	if length == 0 {
		c.fail(ErrorCodeSendProxy, 0)
		return false
	}

	for c.proxySent < length {
		n, err := c.socket.Send(c.fd, buffer[c.proxySent:length])
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ENOTCONN) || (err == nil && n == 0) {
			c.poller.CantSend(c.fd)
			c.sockWant = Polling{Write: true}
			return false
		}
		if err != nil {
			c.fail(ErrorCodeSendProxy, ShutWrite)
			return false
		}
		c.proxySent += n
	}

	c.proxySent = 0
	c.L4Connected()
	c.HandshakeDone(phase)
	return true
}
