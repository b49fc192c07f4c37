//go:build linux

package relay

import (
	"net/netip"

	E "github.com/sagernet/sing-relay/common/exceptions"
	M "github.com/sagernet/sing-relay/common/metadata"

	"golang.org/x/sys/unix"
)

func listenTCP(bind netip.AddrPort) (int, error) {
	fd, err := unix.Socket(socketFamily(bind.Addr()), unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, E.Cause(err, "create socket")
	}
	err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err == nil {
		err = unix.Bind(fd, sockaddrFrom(bind))
	}
	if err == nil {
		err = unix.Listen(fd, unix.SOMAXCONN)
	}
	if err != nil {
		unix.Close(fd)
		return -1, E.Cause(err, "listen ", bind)
	}
	return fd, nil
}

// acceptTCP returns -1 and EAGAIN once the backlog is drained.
func acceptTCP(fd int) (int, M.Socksaddr, error) {
	for {
		conn, peer, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EINTR || err == unix.ECONNABORTED {
			continue
		}
		if err != nil {
			return -1, M.Socksaddr{}, err
		}
		return conn, socksaddrFrom(peer), nil
	}
}

// connectTCP starts a non-blocking connect; completion is reported by the
// poller.
func connectTCP(destination netip.AddrPort) (int, error) {
	fd, err := unix.Socket(socketFamily(destination.Addr()), unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, E.Cause(err, "create socket")
	}
	err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	if err != nil {
		unix.Close(fd)
		return -1, E.Cause(err, "set TCP_NODELAY")
	}
	err = unix.Connect(fd, sockaddrFrom(destination))
	if err != nil && err != unix.EINPROGRESS && err != unix.EINTR {
		unix.Close(fd)
		return -1, E.Cause(err, "connect ", destination)
	}
	return fd, nil
}

func localAddr(fd int) (M.Socksaddr, error) {
	sockaddr, err := unix.Getsockname(fd)
	if err != nil {
		return M.Socksaddr{}, err
	}
	return socksaddrFrom(sockaddr), nil
}

func shutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

func closeFD(fd int) error {
	return unix.Close(fd)
}

func socketFamily(addr netip.Addr) int {
	if addr.Is4() || addr.Is4In6() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

func sockaddrFrom(addr netip.AddrPort) unix.Sockaddr {
	if addr.Addr().Is4() || addr.Addr().Is4In6() {
		return &unix.SockaddrInet4{Addr: addr.Addr().As4(), Port: int(addr.Port())}
	}
	return &unix.SockaddrInet6{Addr: addr.Addr().As16(), Port: int(addr.Port())}
}

func socksaddrFrom(sockaddr unix.Sockaddr) M.Socksaddr {
	switch sa := sockaddr.(type) {
	case *unix.SockaddrInet4:
		return M.SocksaddrFromNetIP(netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)))
	case *unix.SockaddrInet6:
		// dual-stack listeners report IPv4 peers as v4-mapped
		return M.SocksaddrFromNetIP(netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)))
	default:
		return M.Socksaddr{}
	}
}
