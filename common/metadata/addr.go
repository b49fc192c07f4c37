package metadata

import (
	"net"
	"net/netip"
	"strconv"
)

type Socksaddr struct {
	Addr netip.Addr
	Fqdn string
	Port uint16
}

func (ap Socksaddr) IsIP() bool {
	return ap.Addr.IsValid()
}

func (ap Socksaddr) IsFqdn() bool {
	return !ap.IsIP() && ap.Fqdn != ""
}

func (ap Socksaddr) IsValid() bool {
	return ap.Addr.IsValid() || ap.Fqdn != ""
}

// Family reports the address family; a v4-mapped v6 address stays IPv6.
func (ap Socksaddr) Family() Family {
	if ap.Addr.IsValid() {
		if ap.Addr.Is4() {
			return AddressFamilyIPv4
		}
		return AddressFamilyIPv6
	}
	if ap.Fqdn != "" {
		return AddressFamilyFqdn
	}
	return AddressFamilyUnspecified
}

func (ap Socksaddr) AddrString() string {
	if ap.Addr.IsValid() {
		return ap.Addr.String()
	}
	return ap.Fqdn
}

func (ap Socksaddr) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr, ap.Port)
}

func (ap Socksaddr) Unwrap() Socksaddr {
	if ap.Addr.Is4In6() {
		return Socksaddr{
			Addr: netip.AddrFrom4(ap.Addr.As4()),
			Port: ap.Port,
		}
	}
	return ap
}

func (ap Socksaddr) String() string {
	return net.JoinHostPort(ap.AddrString(), strconv.Itoa(int(ap.Port)))
}

func SocksaddrFromNetIP(ap netip.AddrPort) Socksaddr {
	return Socksaddr{
		Addr: ap.Addr(),
		Port: ap.Port(),
	}.Unwrap()
}

func ParseSocksaddr(address string) Socksaddr {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return Socksaddr{}
	}
	return ParseSocksaddrHostPort(host, port)
}

// ParseSocksaddrHostPort returns an invalid address if the port is not a
// decimal in range.
func ParseSocksaddrHostPort(host string, portStr string) Socksaddr {
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || host == "" {
		return Socksaddr{}
	}
	netAddr, err := netip.ParseAddr(host)
	if err != nil {
		return Socksaddr{
			Fqdn: host,
			Port: uint16(port),
		}
	}
	return Socksaddr{
		Addr: netAddr,
		Port: uint16(port),
	}.Unwrap()
}
