//go:build !linux

package relay

import (
	"net/netip"

	E "github.com/sagernet/sing-relay/common/exceptions"
	M "github.com/sagernet/sing-relay/common/metadata"
)

var errUnsupported = E.New("relay only available on linux")

func listenTCP(bind netip.AddrPort) (int, error) {
	return -1, errUnsupported
}

func acceptTCP(fd int) (int, M.Socksaddr, error) {
	return -1, M.Socksaddr{}, errUnsupported
}

func connectTCP(destination netip.AddrPort) (int, error) {
	return -1, errUnsupported
}

func localAddr(fd int) (M.Socksaddr, error) {
	return M.Socksaddr{}, errUnsupported
}

func shutdownWrite(fd int) error {
	return errUnsupported
}

func closeFD(fd int) error {
	return errUnsupported
}
