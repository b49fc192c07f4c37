package poll

// Handler receives readiness notifications for a registered descriptor.
// It is called on the polling goroutine with no poller lock held, so it may
// change interest or register and remove descriptors.
type Handler interface {
	HandleFDEvent(fd int)
}

type HandlerFunc func(fd int)

func (f HandlerFunc) HandleFDEvent(fd int) {
	f(fd)
}

// Event is the set of conditions last reported for a descriptor.
type Event uint8

const (
	EventIn Event = 1 << iota
	EventPri
	EventOut
	EventErr
	EventHup
)

// EventSticky survives ClearEvents: once a socket reported an error or a
// hang-up it stays that way until it is removed.
const EventSticky = EventErr | EventHup

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var names []byte
	for _, item := range [...]struct {
		event Event
		name  string
	}{
		{EventIn, "in"},
		{EventPri, "pri"},
		{EventOut, "out"},
		{EventErr, "err"},
		{EventHup, "hup"},
	} {
		if e&item.event == 0 {
			continue
		}
		if len(names) > 0 {
			names = append(names, '|')
		}
		names = append(names, item.name...)
	}
	return string(names)
}

type state uint8

const (
	stateRecvActive state = 1 << iota
	stateRecvReady
	stateSendActive
	stateSendReady
)
