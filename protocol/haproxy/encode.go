package haproxy

import (
	"strconv"

	M "github.com/sagernet/sing-relay/common/metadata"
)

// WriteHeader renders the PROXY line for source and destination into buffer
// and returns its length, or 0 if the line does not fit. Endpoints that are
// missing or of different families produce the UNKNOWN form.
func WriteHeader(buffer []byte, source, destination *M.Socksaddr) int {
	var scratch [MaxHeaderLength]byte
	line := AppendHeader(scratch[:0], source, destination)
	if len(line) > len(buffer) {
		return 0
	}
	return copy(buffer, line)
}

// AppendHeader appends the PROXY line for source and destination to buffer.
func AppendHeader(buffer []byte, source, destination *M.Socksaddr) []byte {
	var protocol string
	switch {
	case source == nil || destination == nil || !source.IsIP() || !destination.IsIP():
	case source.Family().IsIPv4() && destination.Family().IsIPv4():
		protocol = ProtocolTCP4
	case source.Family().IsIPv6() && destination.Family().IsIPv6():
		protocol = ProtocolTCP6
	}
	if protocol == "" {
		return append(buffer, unknownHeader...)
	}
	buffer = append(buffer, Prefix...)
	buffer = append(buffer, protocol...)
	buffer = append(buffer, ' ')
	buffer = source.Addr.WithZone("").AppendTo(buffer)
	buffer = append(buffer, ' ')
	buffer = destination.Addr.WithZone("").AppendTo(buffer)
	buffer = append(buffer, ' ')
	buffer = strconv.AppendUint(buffer, uint64(source.Port), 10)
	buffer = append(buffer, ' ')
	buffer = strconv.AppendUint(buffer, uint64(destination.Port), 10)
	return append(buffer, '\r', '\n')
}

// HeaderLength returns the length WriteHeader needs for the endpoints.
func HeaderLength(source, destination *M.Socksaddr) int {
	var scratch [MaxHeaderLength]byte
	return len(AppendHeader(scratch[:0], source, destination))
}
