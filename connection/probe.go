package connection

import (
	"errors"
	"syscall"

	"github.com/sagernet/sing-relay/common/poll"
)

// TCPProbe completes a non-blocking TCP connect once the socket turns
// writable, using the pending socket error to tell success from failure.
type TCPProbe struct{}

func (TCPProbe) Probe(c *Conn) bool {
	if c.err || !c.ctrlReady {
		return false
	}
	if !c.progress.Has(ProgressWaitL4) {
		return true
	}
	if !c.poller.SendReady(c.fd) {
		c.sockWant = Polling{Write: true}
		return false
	}

	err := c.socket.SocketError(c.fd)
	if errors.Is(err, syscall.EINPROGRESS) || errors.Is(err, syscall.EALREADY) || errors.Is(err, syscall.EAGAIN) {
		c.poller.CantSend(c.fd)
		c.sockWant = Polling{Write: true}
		return false
	}
	events := c.poller.Events(c.fd)
	if err != nil || events&poll.EventErr != 0 || events&(poll.EventIn|poll.EventHup) == poll.EventHup {
		c.fail(ErrorCodeConnect, ShutBoth)
		return false
	}

	c.L4Connected()
	return true
}
