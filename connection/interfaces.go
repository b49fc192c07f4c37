package connection

import "github.com/sagernet/sing-relay/common/poll"

// Poller is the readiness view of the event loop for one descriptor.
// Want/Stop change the subscription, Cant clears readiness after EAGAIN.
type Poller interface {
	RecvReady(fd int) bool
	SendReady(fd int) bool
	RecvActive(fd int) bool
	SendActive(fd int) bool
	WantRecv(fd int)
	WantSend(fd int)
	StopRecv(fd int)
	StopSend(fd int)
	CantRecv(fd int)
	CantSend(fd int)
	Events(fd int) poll.Event
	ClearEvents(fd int)
}

// Socket performs non-blocking I/O on a descriptor. Errors are syscall.Errno
// values when they come from the kernel.
type Socket interface {
	Peek(fd int, buffer []byte) (int, error)
	Recv(fd int, buffer []byte) (int, error)
	Send(fd int, buffer []byte) (int, error)
	SocketError(fd int) error
}

// DataHandler is the upper layer owning the connection. Init and Wake return
// a non-nil error once they released the connection; the dispatcher then
// leaves without touching it again.
type DataHandler interface {
	Init(conn *Conn) error
	Recv(conn *Conn)
	Send(conn *Conn)
	Wake(conn *Conn) error
}

// Transport carries the data stream. Handshake runs the transport's own
// handshake phase; it calls HandshakeDone on success and returns false while
// waiting or after setting the error marker. Reporting success with the
// phase still pending is a transport failure.
type Transport interface {
	Handshake(conn *Conn, phase Handshake) bool
}

// Prober checks whether an outgoing connect completed. It calls
// L4Connected on success and returns false while waiting or after
// setting the error marker.
type Prober interface {
	Probe(conn *Conn) bool
}

// RawTransport is the plain TCP transport: it has no handshake of its own.
type RawTransport struct{}

func (RawTransport) Handshake(conn *Conn, phase Handshake) bool {
	conn.HandshakeDone(phase)
	return true
}
