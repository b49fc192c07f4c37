package connection

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Table maps descriptors to the connections owning them and routes poller
// notifications to them. It is the poll.Handler of every connection socket.
type Table struct {
	access sync.RWMutex
	conns  map[int]*Conn
	logger logrus.FieldLogger
}

func NewTable(logger logrus.FieldLogger) *Table {
	return &Table{
		conns:  make(map[int]*Conn),
		logger: logger,
	}
}

func (t *Table) Attach(conn *Conn) {
	t.access.Lock()
	defer t.access.Unlock()
	t.conns[conn.fd] = conn
}

func (t *Table) Detach(fd int) {
	t.access.Lock()
	defer t.access.Unlock()
	delete(t.conns, fd)
}

func (t *Table) Lookup(fd int) *Conn {
	t.access.RLock()
	defer t.access.RUnlock()
	return t.conns[fd]
}

func (t *Table) Len() int {
	t.access.RLock()
	defer t.access.RUnlock()
	return len(t.conns)
}

// Dispatch runs one round for the connection owning fd, if any.
func (t *Table) Dispatch(fd int) {
	conn := t.Lookup(fd)
	if conn == nil {
		return
	}
	hadError := conn.err
	conn.handleEvent()
	if t.logger == nil || hadError || t.Lookup(fd) != conn || !conn.err {
		return
	}
	t.logger.WithFields(logrus.Fields{
		"fd":        fd,
		"handshake": conn.handshake.String(),
		"progress":  conn.progress.String(),
	}).Debug(conn.errorCode)
}

func (t *Table) HandleFDEvent(fd int) {
	t.Dispatch(fd)
}
