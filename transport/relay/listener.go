package relay

import (
	"errors"
	"syscall"

	E "github.com/sagernet/sing-relay/common/exceptions"
	"github.com/sagernet/sing-relay/common/log"
	M "github.com/sagernet/sing-relay/common/metadata"
	"github.com/sagernet/sing-relay/common/poll"
	"github.com/sagernet/sing-relay/connection"

	"github.com/sirupsen/logrus"
)

// Listener accepts clients on a non-blocking socket and relays each of them
// to the upstream. All of its state is touched only from the goroutine
// running the poller.
type Listener struct {
	options  Options
	poller   *poll.Poller
	table    *connection.Table
	access   *AccessControl
	metrics  *Metrics
	logger   *logrus.Entry
	fd       int
	sessions map[*session]struct{}
}

func NewListener(poller *poll.Poller, options Options, metrics *Metrics) (*Listener, error) {
	if options.Name == "" {
		options.Name = "relay"
	}
	err := options.Validate()
	if err != nil {
		return nil, E.Cause(err, "relay ", options.Name)
	}
	access, err := NewAccessControl(options)
	if err != nil {
		return nil, E.Cause(err, "relay ", options.Name)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	logger := log.NewLogger("relay/" + options.Name)
	return &Listener{
		options:  options,
		poller:   poller,
		table:    connection.NewTable(logger),
		access:   access,
		metrics:  metrics,
		logger:   logger,
		fd:       -1,
		sessions: make(map[*session]struct{}),
	}, nil
}

func (l *Listener) Start() error {
	fd, err := listenTCP(l.options.Listen)
	if err != nil {
		return err
	}
	err = l.poller.Insert(fd, l)
	if err != nil {
		closeFD(fd)
		return E.Cause(err, "register listener")
	}
	l.poller.WantRecv(fd)
	l.fd = fd
	l.logger.Info("listening on ", l.Addr(), ", upstream ", l.options.Upstream)
	return nil
}

func (l *Listener) Addr() M.Socksaddr {
	addr, _ := localAddr(l.fd)
	return addr
}

// Sessions returns the number of live sessions.
func (l *Listener) Sessions() int {
	return len(l.sessions)
}

// HandleFDEvent accepts every pending client.
func (l *Listener) HandleFDEvent(fd int) {
	for {
		conn, peer, err := acceptTCP(fd)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				l.poller.CantRecv(fd)
			} else {
				l.logger.Error(E.Cause(err, "accept"))
			}
			return
		}
		l.newSession(conn, peer)
	}
}

func (l *Listener) newSession(fd int, peer M.Socksaddr) {
	if l.options.AcceptProxy && !l.access.Trusted(peer.Addr) {
		l.logger.Debug("reject untrusted proxy ", peer)
		l.metrics.reject(l.options.Name, rejectUntrustedProxy)
		closeFD(fd)
		return
	}
	err := l.poller.Insert(fd, l.table)
	if err != nil {
		l.logger.Error(E.Cause(err, "register connection from ", peer))
		closeFD(fd)
		return
	}

	conn := connection.New(fd, l.poller, poll.Sockets{})
	conn.SetTransport(connection.RawTransport{})
	conn.SetPolicy(connection.PolicyInitData | connection.PolicyWakeData)
	if l.options.AcceptProxy {
		conn.EnableAcceptProxy()
	} else {
		conn.SetSource(peer)
		if local, err := localAddr(fd); err == nil {
			conn.SetDestination(local)
		}
	}

	s := &session{listener: l}
	s.client = &side{
		session:   s,
		conn:      conn,
		inbound:   newPipe(l.options.bufferSize()),
		direction: directionUpload,
	}
	conn.SetDataHandler(s.client)
	l.sessions[s] = struct{}{}
	l.table.Attach(conn)
	l.table.Dispatch(fd)
}

// release stops polling conn and closes its descriptor.
func (l *Listener) release(conn *connection.Conn) {
	fd := conn.FD()
	conn.ReleaseControl()
	l.poller.Delete(fd)
	l.table.Detach(fd)
	err := closeFD(fd)
	if err != nil {
		l.logger.Debug(E.Cause(err, "close connection"))
	}
}

func (l *Listener) Close() error {
	for s := range l.sessions {
		s.close()
	}
	var err error
	if l.fd >= 0 {
		l.poller.Delete(l.fd)
		err = closeFD(l.fd)
		l.fd = -1
	}
	return E.Errors(err, l.access.Close())
}
