package connection

import "strings"

// Handshake holds the sub-phases that must complete before data transfer.
// Several may be pending at once; they run in bit order.
type Handshake uint8

const (
	HandshakeAcceptProxy Handshake = 1 << iota
	HandshakeSendProxy
	HandshakeTransport
)

func (h Handshake) Has(flag Handshake) bool {
	return h&flag != 0
}

func (h Handshake) String() string {
	return formatFlags(uint8(h), []string{"accept-proxy", "send-proxy", "transport"})
}

// Progress tracks connection establishment. Connected is inferred at the end
// of a round once no waiting marker remains.
type Progress uint8

const (
	ProgressWaitL4 Progress = 1 << iota
	ProgressWaitL6
	ProgressConnected

	progressWaiting = ProgressWaitL4 | ProgressWaitL6
)

func (p Progress) Has(flag Progress) bool {
	return p&flag != 0
}

func (p Progress) String() string {
	return formatFlags(uint8(p), []string{"wait-l4", "wait-l6", "connected"})
}

type Policy uint8

const (
	// PolicyPollSock keeps polling driven by the socket layer desire even
	// after every handshake finished.
	PolicyPollSock Policy = 1 << iota
	// PolicyInitData asks for DataHandler.Init before the first transfer.
	PolicyInitData
	// PolicyWakeData asks for DataHandler.Wake whenever the connection
	// state changed during a round.
	PolicyWakeData
	PolicyAddrFromSet
	PolicyAddrToSet
)

func (p Policy) Has(flag Policy) bool {
	return p&flag != 0
}

func (p Policy) String() string {
	return formatFlags(uint8(p), []string{"poll-sock", "init-data", "wake-data", "addr-from", "addr-to"})
}

// Shutdown records half-closes observed at the socket layer.
type Shutdown uint8

const (
	ShutRead Shutdown = 1 << iota
	ShutWrite

	ShutBoth = ShutRead | ShutWrite
)

func (s Shutdown) Has(flag Shutdown) bool {
	return s&flag != 0
}

func (s Shutdown) String() string {
	return formatFlags(uint8(s), []string{"read", "write"})
}

// Polling is a per-direction interest pair.
type Polling struct {
	Read  bool
	Write bool
}

// connState is the part of the connection compared before and after a round
// to decide whether the data layer must be woken.
type connState struct {
	progress Progress
	err      bool
}

// stateChanged can never be observed on a live connection, so comparing
// against it always reports a change.
var stateChanged = connState{progress: ProgressWaitL4 | ProgressConnected}

func formatFlags(value uint8, names []string) string {
	if value == 0 {
		return "none"
	}
	var flags []string
	for i, name := range names {
		if value&(1<<i) != 0 {
			flags = append(flags, name)
		}
	}
	return strings.Join(flags, "|")
}
