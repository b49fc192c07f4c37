package relay

import (
	"errors"
	"syscall"

	E "github.com/sagernet/sing-relay/common/exceptions"
	"github.com/sagernet/sing-relay/common/poll"
	"github.com/sagernet/sing-relay/connection"
)

// session pairs an accepted client with its upstream connection.
type session struct {
	listener *Listener
	client   *side
	upstream *side
	started  bool
	closed   bool
}

// side is the data layer of one connection of a session. inbound holds
// what was read from conn and waits to be written to the peer.
type side struct {
	session   *session
	conn      *connection.Conn
	peer      *side
	inbound   *pipe
	direction string
	// established is set once conn may carry data.
	established bool
}

// start runs once the client addresses are final: it applies the country
// deny list and opens the upstream connection.
func (s *session) start() error {
	l := s.listener
	source := s.client.conn.Source()
	if country, allowed := l.access.Allowed(source.Addr); !allowed {
		l.logger.Info("reject ", source, " from ", country)
		l.metrics.reject(l.options.Name, rejectCountry)
		s.close()
		return connection.ErrDestroyed
	}

	fd, err := connectTCP(l.options.Upstream)
	if err == nil {
		err = l.poller.Insert(fd, l.table)
		if err != nil {
			closeFD(fd)
		}
	}
	if err != nil {
		l.logger.Warn("open upstream for ", source, ": ", err)
		l.metrics.reject(l.options.Name, rejectUpstream)
		s.close()
		return connection.ErrDestroyed
	}

	conn := connection.New(fd, l.poller, poll.Sockets{})
	conn.SetTransport(connection.RawTransport{})
	conn.SetPolicy(connection.PolicyWakeData)
	conn.WaitL4Connect()
	conn.SockWantSend()
	if l.options.SendProxy {
		destination := s.client.conn.Destination()
		conn.EnableSendProxy(&source, &destination)
	}
	s.upstream = &side{
		session:   s,
		conn:      conn,
		inbound:   newPipe(l.options.bufferSize()),
		direction: directionDownload,
	}
	s.client.peer, s.upstream.peer = s.upstream, s.client
	conn.SetDataHandler(s.upstream)
	l.table.Attach(conn)
	conn.UpdatePolling()

	s.client.established = true
	s.client.conn.DataWantRecv()
	s.started = true
	l.metrics.sessionOpened(l.options.Name)
	l.logger.Debug("relay ", source, " to ", l.options.Upstream)
	return nil
}

func (s *session) finished() bool {
	return s.upstream != nil &&
		s.client.inbound.drained() && s.upstream.inbound.drained() &&
		s.client.conn.HasShutdown(connection.ShutWrite) &&
		s.upstream.conn.HasShutdown(connection.ShutWrite)
}

func (s *session) close() {
	if s.closed {
		return
	}
	s.closed = true
	l := s.listener
	for _, side := range []*side{s.client, s.upstream} {
		if side == nil {
			continue
		}
		l.release(side.conn)
		side.inbound.release()
	}
	if s.started {
		l.metrics.sessionClosed(l.options.Name)
	}
	delete(l.sessions, s)
}

func (s *side) Init(conn *connection.Conn) error {
	return s.session.start()
}

func (s *side) Recv(conn *connection.Conn) {
	l := s.session.listener
	for {
		space := s.inbound.free()
		if len(space) == 0 && s.peer != nil {
			s.peer.flush()
			space = s.inbound.free()
		}
		if len(space) == 0 {
			conn.SetWaitRoom()
			conn.DataStopRecv()
			break
		}
		n, err := conn.Socket().Recv(conn.FD(), space)
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if errors.Is(err, syscall.EAGAIN) {
			conn.CantRecv()
			break
		}
		if err != nil {
			if !E.IsClosed(err) {
				l.logger.Debug("read from ", conn.Source(), ": ", err)
			}
			conn.SetError(connection.ErrorCodeNone)
			break
		}
		if n == 0 {
			s.inbound.eof = true
			conn.MarkShutdown(connection.ShutRead)
			conn.DataStopRecv()
			break
		}
		s.inbound.end += n
		l.metrics.transferred(l.options.Name, s.direction, n)
	}
	if s.peer != nil {
		s.peer.flush()
	}
}

func (s *side) Send(conn *connection.Conn) {
	s.flush()
}

// flush writes what the peer read to conn. Once everything is written it
// propagates the peer's end of stream, or lets the peer read again.
func (s *side) flush() {
	conn := s.conn
	if !s.established || conn.Error() || !conn.ControlReady() || conn.Handshake() != 0 {
		return
	}
	outbound := s.peer.inbound
	for outbound.len() > 0 {
		n, err := conn.Socket().Send(conn.FD(), outbound.data())
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if errors.Is(err, syscall.EAGAIN) {
			conn.CantSend()
			conn.DataWantSend()
			conn.UpdatePolling()
			return
		}
		if err != nil {
			if !E.IsClosed(err) {
				s.session.listener.logger.Debug("write to ", conn.Source(), ": ", err)
			}
			conn.SetError(connection.ErrorCodeNone)
			return
		}
		outbound.start += n
	}
	conn.DataStopSend()
	if outbound.eof {
		if !conn.HasShutdown(connection.ShutWrite) {
			shutdownWrite(conn.FD())
			conn.MarkShutdown(connection.ShutWrite)
		}
	} else if peer := s.peer.conn; s.peer.established && !peer.Error() && !peer.HasShutdown(connection.ShutRead) {
		peer.DataWantRecv()
		peer.UpdatePolling()
	}
	conn.UpdatePolling()
}

func (s *side) Wake(conn *connection.Conn) error {
	sess := s.session
	l := sess.listener
	if !s.established && s.peer != nil && !conn.Error() && conn.Handshake() == 0 && !conn.Progress().Has(connection.ProgressWaitL4) {
		s.established = true
		conn.DataWantRecv()
	}
	if !conn.Error() && s.peer != nil {
		s.flush()
	}
	if conn.Error() || (s.peer != nil && s.peer.conn.Error()) {
		if code := conn.ErrorCode(); code != connection.ErrorCodeNone {
			if conn.Handshake() != 0 || conn.Progress().Has(connection.ProgressWaitL4) {
				l.metrics.handshakeFailed(l.options.Name, code)
			}
			l.logger.Debug(conn.Source(), ": ", code)
		}
		sess.close()
		return connection.ErrDestroyed
	}
	if sess.finished() {
		sess.close()
		return connection.ErrDestroyed
	}
	return nil
}
