//go:build !linux

package poll

import (
	"context"
	"errors"

	E "github.com/sagernet/sing-relay/common/exceptions"
)

var errUnsupported = E.New("poller not supported on this platform")

type Poller struct{}

func NewPoller() (*Poller, error) {
	return nil, errUnsupported
}

func (p *Poller) Insert(fd int, handler Handler) error {
	return errUnsupported
}

func (p *Poller) Delete(fd int) {}

func (p *Poller) Len() int {
	return 0
}

func (p *Poller) RecvReady(fd int) bool  { return false }
func (p *Poller) SendReady(fd int) bool  { return false }
func (p *Poller) RecvActive(fd int) bool { return false }
func (p *Poller) SendActive(fd int) bool { return false }
func (p *Poller) WantRecv(fd int)        {}
func (p *Poller) WantSend(fd int)        {}
func (p *Poller) StopRecv(fd int)        {}
func (p *Poller) StopSend(fd int)        {}
func (p *Poller) CantRecv(fd int)        {}
func (p *Poller) CantSend(fd int)        {}
func (p *Poller) Events(fd int) Event    { return 0 }
func (p *Poller) ClearEvents(fd int)     {}

func (p *Poller) Poll(timeoutMillis int) (int, error) {
	return 0, errUnsupported
}

func (p *Poller) Run(ctx context.Context) error {
	return errUnsupported
}

func (p *Poller) Close() error {
	return nil
}

type Sockets struct{}

func (Sockets) Peek(fd int, buffer []byte) (int, error) {
	return 0, errors.ErrUnsupported
}

func (Sockets) Recv(fd int, buffer []byte) (int, error) {
	return 0, errors.ErrUnsupported
}

func (Sockets) Send(fd int, buffer []byte) (int, error) {
	return 0, errors.ErrUnsupported
}

func (Sockets) SocketError(fd int) error {
	return errors.ErrUnsupported
}
