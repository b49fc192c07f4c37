package haproxy

import (
	E "github.com/sagernet/sing-relay/common/exceptions"
	M "github.com/sagernet/sing-relay/common/metadata"
)

// +-------+----------+-----+-----+-------+-------+------+
// | PROXY | protocol | src | dst | sport | dport | CRLF |
// +-------+----------+-----+-----+-------+-------+------+
// fields separated by exactly one space, protocol is TCP4 or TCP6.

const (
	Prefix = "PROXY "

	ProtocolTCP4    = "TCP4"
	ProtocolTCP6    = "TCP6"
	ProtocolUnknown = "UNKNOWN"

	// MinHeaderLength is the shortest legal line, "PROXY TCP4 " plus the
	// minimal remaining fields.
	MinHeaderLength = 18
	// MaxHeaderLength is the longest legal line: two full IPv6 addresses
	// with five digit ports.
	MaxHeaderLength = 107

	prefixLength   = len(Prefix)
	keywordLength  = len(Prefix) + len(ProtocolTCP4) + 1
	unknownHeader  = Prefix + ProtocolUnknown + "\r\n"
	maxPortLength  = 5
	maxPortDecimal = 65535
)

var (
	// ErrIncomplete means the buffer is too short to decide anything yet.
	ErrIncomplete = E.New("incomplete PROXY header")
	// ErrTruncated means the line did not end within a buffer that should
	// have held it completely.
	ErrTruncated   = E.New("truncated PROXY header")
	ErrNotHeader   = E.New("not a PROXY header")
	ErrBadHeader   = E.New("malformed PROXY header")
	ErrBadProtocol = E.New("unsupported PROXY protocol")
)

type Header struct {
	Protocol    string
	Source      M.Socksaddr
	Destination M.Socksaddr
}
