package haproxy

import (
	"bytes"
	"net/netip"

	E "github.com/sagernet/sing-relay/common/exceptions"
	M "github.com/sagernet/sing-relay/common/metadata"
)

// Parse decodes a PROXY v1 line at the start of data and returns the header
// together with the number of bytes it occupies. data is expected to be a
// peeked copy of everything the peer sent so far; once MinHeaderLength bytes
// are present the whole line must be there, otherwise ErrTruncated.
func Parse(data []byte) (header Header, n int, err error) {
	if len(data) < prefixLength {
		err = ErrIncomplete
		return
	}
	if string(data[:prefixLength]) != Prefix {
		err = ErrNotHeader
		return
	}
	if len(data) < keywordLength {
		err = ErrIncomplete
		return
	}
	keyword := string(data[prefixLength:keywordLength])
	if keyword != ProtocolTCP4+" " && keyword != ProtocolTCP6+" " {
		err = E.Cause(ErrBadProtocol, "keyword ", keyword[:len(keyword)-1])
		return
	}
	if len(data) < MinHeaderLength {
		err = ErrIncomplete
		return
	}
	if keyword == ProtocolTCP4+" " {
		header.Protocol = ProtocolTCP4
		n, err = parseTCP4(data, keywordLength, &header)
	} else {
		header.Protocol = ProtocolTCP6
		n, err = parseTCP6(data, keywordLength, &header)
	}
	if err != nil {
		header = Header{}
		n = 0
	}
	return
}

func parseTCP4(data []byte, offset int, header *Header) (int, error) {
	source, offset, err := readIPv4(data, offset, ' ')
	if err != nil {
		return 0, E.Cause(err, "source address")
	}
	destination, offset, err := readIPv4(data, offset, ' ')
	if err != nil {
		return 0, E.Cause(err, "destination address")
	}
	sourcePort, offset, err := readPort(data, offset)
	if err != nil {
		return 0, E.Cause(err, "source port")
	}
	if offset == len(data) {
		return 0, ErrTruncated
	}
	if data[offset] != ' ' {
		return 0, E.Cause(ErrBadHeader, "source port")
	}
	destinationPort, offset, err := readPort(data, offset+1)
	if err != nil {
		return 0, E.Cause(err, "destination port")
	}
	if offset > len(data)-2 {
		return 0, ErrTruncated
	}
	if data[offset] != '\r' || data[offset+1] != '\n' {
		return 0, E.Cause(ErrBadHeader, "missing CRLF")
	}
	header.Source = M.Socksaddr{Addr: source, Port: sourcePort}
	header.Destination = M.Socksaddr{Addr: destination, Port: destinationPort}
	return offset + 2, nil
}

func readIPv4(data []byte, offset int, separator byte) (netip.Addr, int, error) {
	end := offset
	for end < len(data) && (data[end] == '.' || isDigit(data[end])) {
		end++
	}
	if end == len(data) {
		return netip.Addr{}, 0, ErrTruncated
	}
	if data[end] != separator {
		return netip.Addr{}, 0, ErrBadHeader
	}
	addr, err := netip.ParseAddr(string(data[offset:end]))
	if err != nil || !addr.Is4() {
		return netip.Addr{}, 0, ErrBadHeader
	}
	return addr, end + 1, nil
}

// readPort reads a decimal port and stops at the first non-digit.
func readPort(data []byte, offset int) (uint16, int, error) {
	end := offset
	for end < len(data) && isDigit(data[end]) {
		end++
	}
	if end == len(data) {
		return 0, 0, ErrTruncated
	}
	port, ok := parsePort(data[offset:end])
	if !ok {
		return 0, 0, ErrBadHeader
	}
	return port, end, nil
}

func parseTCP6(data []byte, offset int, header *Header) (int, error) {
	lineEnd := bytes.IndexByte(data[offset:], '\r')
	if lineEnd < 0 || offset+lineEnd > len(data)-2 {
		return 0, ErrTruncated
	}
	lineEnd += offset
	if data[lineEnd+1] != '\n' {
		return 0, E.Cause(ErrBadHeader, "missing CRLF")
	}
	fields := bytes.Split(data[offset:lineEnd], []byte{' '})
	if len(fields) != 4 {
		return 0, E.Cause(ErrBadHeader, "expected 4 fields, got ", len(fields))
	}
	source, ok := parseIPv6(fields[0])
	if !ok {
		return 0, E.Cause(ErrBadHeader, "source address")
	}
	destination, ok := parseIPv6(fields[1])
	if !ok {
		return 0, E.Cause(ErrBadHeader, "destination address")
	}
	sourcePort, ok := parsePort(fields[2])
	if !ok {
		return 0, E.Cause(ErrBadHeader, "source port")
	}
	destinationPort, ok := parsePort(fields[3])
	if !ok {
		return 0, E.Cause(ErrBadHeader, "destination port")
	}
	header.Source = M.Socksaddr{Addr: source, Port: sourcePort}
	header.Destination = M.Socksaddr{Addr: destination, Port: destinationPort}
	return lineEnd + 2, nil
}

func parseIPv6(field []byte) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(string(field))
	if err != nil || !addr.Is6() || addr.Zone() != "" {
		return netip.Addr{}, false
	}
	return addr, true
}

func parsePort(field []byte) (uint16, bool) {
	if len(field) == 0 || len(field) > maxPortLength {
		return 0, false
	}
	var port int
	for _, c := range field {
		if !isDigit(c) {
			return 0, false
		}
		port = port*10 + int(c-'0')
	}
	if port > maxPortDecimal {
		return 0, false
	}
	return uint16(port), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
