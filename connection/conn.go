package connection

import (
	M "github.com/sagernet/sing-relay/common/metadata"
)

// Conn is the state of one socket as seen by the event loop. It is driven
// by a single goroutine: the one dispatching its descriptor.
type Conn struct {
	fd        int
	poller    Poller
	socket    Socket
	data      DataHandler
	transport Transport
	prober    Prober

	handshake Handshake
	progress  Progress
	policy    Policy
	shutdown  Shutdown
	dataWant  Polling
	sockWant  Polling
	armed     Polling
	ctrlReady bool
	waitRoom  bool
	waitData  bool
	err       bool
	errorCode ErrorCode

	source      M.Socksaddr
	destination M.Socksaddr

	proxySource      M.Socksaddr
	proxyDestination M.Socksaddr
	proxySent        int
}

// New returns a connection controlling fd. The descriptor must already be
// registered in poller; nothing is armed until the first commit.
func New(fd int, poller Poller, socket Socket) *Conn {
	return &Conn{
		fd:        fd,
		poller:    poller,
		socket:    socket,
		prober:    TCPProbe{},
		ctrlReady: fd >= 0,
	}
}

func (c *Conn) FD() int {
	return c.fd
}

func (c *Conn) Socket() Socket {
	return c.socket
}

func (c *Conn) SetDataHandler(handler DataHandler) {
	c.data = handler
}

func (c *Conn) DataHandler() DataHandler {
	return c.data
}

func (c *Conn) SetTransport(transport Transport) {
	c.transport = transport
}

func (c *Conn) SetProber(prober Prober) {
	c.prober = prober
}

// ControlReady reports whether the descriptor may still be polled.
func (c *Conn) ControlReady() bool {
	return c.ctrlReady
}

// ReleaseControl disarms the descriptor and stops every later poller call.
// It must be called before the descriptor is closed.
func (c *Conn) ReleaseControl() {
	c.stopPolling()
	c.ctrlReady = false
}

func (c *Conn) EnableAcceptProxy() {
	c.handshake |= HandshakeAcceptProxy
	c.sockWant.Read = true
}

// EnableSendProxy queues a PROXY line announcing source and destination.
// Missing or mismatched endpoints are announced as UNKNOWN.
func (c *Conn) EnableSendProxy(source, destination *M.Socksaddr) {
	c.proxySource, c.proxyDestination = M.Socksaddr{}, M.Socksaddr{}
	if source != nil {
		c.proxySource = *source
	}
	if destination != nil {
		c.proxyDestination = *destination
	}
	c.proxySent = 0
	c.handshake |= HandshakeSendProxy
	c.sockWant.Write = true
}

func (c *Conn) EnableTransportHandshake() {
	c.handshake |= HandshakeTransport
}

func (c *Conn) Handshake() Handshake {
	return c.handshake
}

func (c *Conn) Progress() Progress {
	return c.progress
}

func (c *Conn) Policy() Policy {
	return c.policy
}

func (c *Conn) HasPolicy(policy Policy) bool {
	return c.policy&policy == policy
}

func (c *Conn) SetPolicy(policy Policy) {
	c.policy |= policy
}

func (c *Conn) ClearPolicy(policy Policy) {
	c.policy &^= policy
}

// WaitL4Connect marks a pending outgoing connect.
func (c *Conn) WaitL4Connect() {
	c.progress |= ProgressWaitL4
}

func (c *Conn) WaitL6Connect() {
	c.progress |= ProgressWaitL6
}

// HandshakeDone clears a finished handshake phase. Transports call it from
// Handshake before reporting success.
func (c *Conn) HandshakeDone(phase Handshake) {
	c.handshake &^= phase
}

// L4Connected is called by the prober once the outgoing connect completed.
func (c *Conn) L4Connected() {
	c.progress &^= ProgressWaitL4
}

// L6Connected is called by the transport once its handshake finished.
func (c *Conn) L6Connected() {
	c.progress &^= ProgressWaitL6
}

func (c *Conn) Connected() bool {
	return c.progress.Has(ProgressConnected) && !c.progress.Has(progressWaiting) && !c.err
}

func (c *Conn) DataWantRecv() {
	c.dataWant.Read = true
}

func (c *Conn) DataStopRecv() {
	c.dataWant.Read = false
}

func (c *Conn) DataWantSend() {
	c.dataWant.Write = true
}

func (c *Conn) DataStopSend() {
	c.dataWant.Write = false
}

func (c *Conn) DataPolling() Polling {
	return c.dataWant
}

func (c *Conn) SockWantRecv() {
	c.sockWant.Read = true
}

func (c *Conn) SockStopRecv() {
	c.sockWant.Read = false
}

func (c *Conn) SockWantSend() {
	c.sockWant.Write = true
}

func (c *Conn) SockStopSend() {
	c.sockWant.Write = false
}

func (c *Conn) SockStopBoth() {
	c.sockWant = Polling{}
}

func (c *Conn) SockPolling() Polling {
	return c.sockWant
}

// ArmedPolling is the interest last committed to the poller.
func (c *Conn) ArmedPolling() Polling {
	return c.armed
}

// SetWaitRoom tells the dispatcher the receiver has no room left this round.
func (c *Conn) SetWaitRoom() {
	c.waitRoom = true
}

// SetWaitData tells the dispatcher the sender has nothing left this round.
func (c *Conn) SetWaitData() {
	c.waitData = true
}

// CantRecv records that a read would block until the next edge.
func (c *Conn) CantRecv() {
	if c.ctrlReady {
		c.poller.CantRecv(c.fd)
	}
}

// CantSend records that a write would block until the next edge.
func (c *Conn) CantSend() {
	if c.ctrlReady {
		c.poller.CantSend(c.fd)
	}
}

func (c *Conn) MarkShutdown(shutdown Shutdown) {
	c.shutdown |= shutdown
}

func (c *Conn) HasShutdown(shutdown Shutdown) bool {
	return c.shutdown&shutdown == shutdown
}

// SetError sets the sticky error marker. A non-zero code replaces the
// previous reason.
func (c *Conn) SetError(code ErrorCode) {
	c.err = true
	if code != ErrorCodeNone {
		c.errorCode = code
	}
}

func (c *Conn) Error() bool {
	return c.err
}

func (c *Conn) ErrorCode() ErrorCode {
	return c.errorCode
}

// Source is the peer address; valid when PolicyAddrFromSet is set.
func (c *Conn) Source() M.Socksaddr {
	return c.source
}

// Destination is the local address the peer targeted; valid when
// PolicyAddrToSet is set.
func (c *Conn) Destination() M.Socksaddr {
	return c.destination
}

func (c *Conn) SetSource(source M.Socksaddr) {
	c.source = source
	c.policy |= PolicyAddrFromSet
}

func (c *Conn) SetDestination(destination M.Socksaddr) {
	c.destination = destination
	c.policy |= PolicyAddrToSet
}

func (c *Conn) state() connState {
	return connState{progress: c.progress, err: c.err}
}

// fail sets the error marker and drops every socket layer desire.
func (c *Conn) fail(code ErrorCode, shutdown Shutdown) {
	c.sockWant = Polling{}
	c.shutdown |= shutdown
	c.SetError(code)
}
