package connection

import (
	"syscall"

	"github.com/sagernet/sing-relay/common/poll"
)

const testFD = 7

type fakePoller struct {
	recvReady  bool
	sendReady  bool
	recvActive bool
	sendActive bool
	events     poll.Event
	calls      []string
}

func (p *fakePoller) RecvReady(fd int) bool  { return p.recvReady }
func (p *fakePoller) SendReady(fd int) bool  { return p.sendReady }
func (p *fakePoller) RecvActive(fd int) bool { return p.recvActive }
func (p *fakePoller) SendActive(fd int) bool { return p.sendActive }

func (p *fakePoller) WantRecv(fd int) {
	p.recvActive = true
	p.calls = append(p.calls, "want-recv")
}

func (p *fakePoller) WantSend(fd int) {
	p.sendActive = true
	p.calls = append(p.calls, "want-send")
}

func (p *fakePoller) StopRecv(fd int) {
	p.recvActive = false
	p.calls = append(p.calls, "stop-recv")
}

func (p *fakePoller) StopSend(fd int) {
	p.sendActive = false
	p.calls = append(p.calls, "stop-send")
}

func (p *fakePoller) CantRecv(fd int) {
	p.recvReady = false
	p.calls = append(p.calls, "cant-recv")
}

func (p *fakePoller) CantSend(fd int) {
	p.sendReady = false
	p.calls = append(p.calls, "cant-send")
}

func (p *fakePoller) Events(fd int) poll.Event {
	return p.events
}

func (p *fakePoller) ClearEvents(fd int) {
	p.events &= poll.EventSticky
	p.calls = append(p.calls, "clear-events")
}

func (p *fakePoller) reset() {
	p.calls = nil
}

type fakeSocket struct {
	input     []byte
	peekErr   error
	recvLimit int
	recvErr   error
	output    []byte
	// sendBudget is the number of bytes accepted before EAGAIN, -1 for no limit.
	sendBudget int
	sendErr    error
	socketErr  error
	peeks      int
	recvs      int
}

func newFakeSocket(input string) *fakeSocket {
	return &fakeSocket{input: []byte(input), sendBudget: -1}
}

func (s *fakeSocket) Peek(fd int, buffer []byte) (int, error) {
	s.peeks++
	if s.peekErr != nil {
		return 0, s.peekErr
	}
	return copy(buffer, s.input), nil
}

func (s *fakeSocket) Recv(fd int, buffer []byte) (int, error) {
	s.recvs++
	if s.recvErr != nil {
		return 0, s.recvErr
	}
	if s.recvLimit > 0 && len(buffer) > s.recvLimit {
		buffer = buffer[:s.recvLimit]
	}
	n := copy(buffer, s.input)
	s.input = s.input[n:]
	return n, nil
}

func (s *fakeSocket) Send(fd int, buffer []byte) (int, error) {
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	if s.sendBudget == 0 {
		return 0, syscall.EAGAIN
	}
	if s.sendBudget > 0 && len(buffer) > s.sendBudget {
		buffer = buffer[:s.sendBudget]
	}
	if s.sendBudget > 0 {
		s.sendBudget -= len(buffer)
	}
	s.output = append(s.output, buffer...)
	return len(buffer), nil
}

func (s *fakeSocket) SocketError(fd int) error {
	return s.socketErr
}

type fakeData struct {
	inits   int
	recvs   int
	sends   int
	wakes   int
	initErr error
	wakeErr error
	onInit  func(conn *Conn)
	onRecv  func(conn *Conn)
	onSend  func(conn *Conn)
}

func (d *fakeData) Init(conn *Conn) error {
	d.inits++
	if d.onInit != nil {
		d.onInit(conn)
	}
	return d.initErr
}

func (d *fakeData) Recv(conn *Conn) {
	d.recvs++
	if d.onRecv != nil {
		d.onRecv(conn)
	}
}

func (d *fakeData) Send(conn *Conn) {
	d.sends++
	if d.onSend != nil {
		d.onSend(conn)
	}
}

func (d *fakeData) Wake(conn *Conn) error {
	d.wakes++
	return d.wakeErr
}

type fakeTransport struct {
	handshakes int
	complete   bool
}

func (t *fakeTransport) Handshake(conn *Conn, phase Handshake) bool {
	t.handshakes++
	if !t.complete {
		conn.SockWantRecv()
		return false
	}
	conn.HandshakeDone(phase)
	return true
}

type fakeProber struct {
	probes int
}

func (p *fakeProber) Probe(conn *Conn) bool {
	p.probes++
	return false
}

func newTestConn(input string) (*Conn, *fakePoller, *fakeSocket, *fakeData) {
	poller := &fakePoller{}
	socket := newFakeSocket(input)
	data := &fakeData{}
	conn := New(testFD, poller, socket)
	conn.SetDataHandler(data)
	conn.SetTransport(RawTransport{})
	return conn, poller, socket, data
}
