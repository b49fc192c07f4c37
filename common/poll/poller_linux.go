//go:build linux

package poll

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"unsafe"

	E "github.com/sagernet/sing-relay/common/exceptions"

	"golang.org/x/sys/unix"
)

type fdEntry struct {
	fd             int
	registrationID uint64
	handler        Handler
	state          state
	events         Event
	mask           uint32
}

// Poller is an edge-triggered epoll demultiplexer. Interest is tracked per
// direction: Want/Stop toggle the kernel subscription, Cant drops the
// readiness bit after a would-block so the owner waits for the next edge.
type Poller struct {
	epollFD             int
	mutex               sync.Mutex
	entries             map[int]*fdEntry
	registrationCounter uint64
	registrationToFD    map[uint64]int
	closed              atomic.Bool
	pipeFDs             [2]int
	events              []unix.EpollEvent
}

func NewPoller() (*Poller, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, E.Cause(err, "epoll_create1")
	}

	var pipeFDs [2]int
	err = unix.Pipe2(pipeFDs[:], unix.O_NONBLOCK|unix.O_CLOEXEC)
	if err != nil {
		unix.Close(epollFD)
		return nil, E.Cause(err, "create wakeup pipe")
	}

	pipeEvent := &unix.EpollEvent{Events: unix.EPOLLIN}
	*(*uint64)(unsafe.Pointer(&pipeEvent.Fd)) = 0
	err = unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, pipeFDs[0], pipeEvent)
	if err != nil {
		unix.Close(pipeFDs[0])
		unix.Close(pipeFDs[1])
		unix.Close(epollFD)
		return nil, E.Cause(err, "register wakeup pipe")
	}

	return &Poller{
		epollFD:          epollFD,
		entries:          make(map[int]*fdEntry),
		registrationToFD: make(map[uint64]int),
		pipeFDs:          pipeFDs,
		events:           make([]unix.EpollEvent, 128),
	}, nil
}

// Insert registers fd with no interest. Error and hang-up conditions are
// always reported by the kernel.
func (p *Poller) Insert(fd int, handler Handler) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed.Load() {
		return net.ErrClosed
	}
	if _, loaded := p.entries[fd]; loaded {
		return E.New("fd ", fd, " already registered")
	}

	p.registrationCounter++
	registrationID := p.registrationCounter

	event := &unix.EpollEvent{Events: unix.EPOLLET}
	*(*uint64)(unsafe.Pointer(&event.Fd)) = registrationID
	err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_ADD, fd, event)
	if err != nil {
		return E.Cause(err, "epoll_ctl add")
	}

	p.entries[fd] = &fdEntry{
		fd:             fd,
		registrationID: registrationID,
		handler:        handler,
		mask:           unix.EPOLLET,
	}
	p.registrationToFD[registrationID] = fd
	return nil
}

// Delete removes fd. Pending notifications collected in the current round
// are dropped.
func (p *Poller) Delete(fd int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	entry, loaded := p.entries[fd]
	if !loaded {
		return
	}
	unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
	delete(p.registrationToFD, entry.registrationID)
	delete(p.entries, fd)
}

func (p *Poller) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.entries)
}

func (p *Poller) RecvReady(fd int) bool {
	return p.hasState(fd, stateRecvReady)
}

func (p *Poller) SendReady(fd int) bool {
	return p.hasState(fd, stateSendReady)
}

func (p *Poller) RecvActive(fd int) bool {
	return p.hasState(fd, stateRecvActive)
}

func (p *Poller) SendActive(fd int) bool {
	return p.hasState(fd, stateSendActive)
}

func (p *Poller) WantRecv(fd int) {
	p.updateState(fd, stateRecvActive, 0)
}

func (p *Poller) WantSend(fd int) {
	p.updateState(fd, stateSendActive, 0)
}

func (p *Poller) StopRecv(fd int) {
	p.updateState(fd, 0, stateRecvActive)
}

func (p *Poller) StopSend(fd int) {
	p.updateState(fd, 0, stateSendActive)
}

func (p *Poller) CantRecv(fd int) {
	p.updateState(fd, 0, stateRecvReady)
}

func (p *Poller) CantSend(fd int) {
	p.updateState(fd, 0, stateSendReady)
}

func (p *Poller) Events(fd int) Event {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	entry, loaded := p.entries[fd]
	if !loaded {
		return 0
	}
	return entry.events
}

func (p *Poller) ClearEvents(fd int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	entry, loaded := p.entries[fd]
	if !loaded {
		return
	}
	entry.events &= EventSticky
}

func (p *Poller) hasState(fd int, flag state) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	entry, loaded := p.entries[fd]
	return loaded && entry.state&flag != 0
}

func (p *Poller) updateState(fd int, set state, clear state) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	entry, loaded := p.entries[fd]
	if !loaded {
		return
	}
	entry.state = entry.state&^clear | set
	mask := uint32(unix.EPOLLET)
	if entry.state&stateRecvActive != 0 {
		mask |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if entry.state&stateSendActive != 0 {
		mask |= unix.EPOLLOUT
	}
	if mask == entry.mask {
		return
	}
	event := &unix.EpollEvent{Events: mask}
	*(*uint64)(unsafe.Pointer(&event.Fd)) = entry.registrationID
	if unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_MOD, fd, event) == nil {
		entry.mask = mask
	}
}

// Poll waits up to timeoutMillis (-1 blocks) for one batch of events and
// dispatches each to its handler. It returns the number of handlers called.
func (p *Poller) Poll(timeoutMillis int) (int, error) {
	if p.closed.Load() {
		return 0, net.ErrClosed
	}
	n, err := unix.EpollWait(p.epollFD, p.events, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, E.Cause(err, "epoll_wait")
	}

	var (
		buffer     [64]byte
		dispatched int
	)
	for i := 0; i < n; i++ {
		event := p.events[i]
		registrationID := *(*uint64)(unsafe.Pointer(&event.Fd))
		if registrationID == 0 {
			for {
				_, readErr := unix.Read(p.pipeFDs[0], buffer[:])
				if readErr != nil {
					break
				}
			}
			continue
		}

		p.mutex.Lock()
		fd, loaded := p.registrationToFD[registrationID]
		if !loaded {
			p.mutex.Unlock()
			continue
		}
		entry := p.entries[fd]
		if entry == nil || entry.registrationID != registrationID {
			p.mutex.Unlock()
			continue
		}
		reported := translateEvents(event.Events)
		entry.events |= reported
		if reported&(EventIn|EventPri|EventErr|EventHup) != 0 {
			entry.state |= stateRecvReady
		}
		if reported&(EventOut|EventErr|EventHup) != 0 {
			entry.state |= stateSendReady
		}
		handler := entry.handler
		p.mutex.Unlock()

		handler.HandleFDEvent(fd)
		dispatched++
	}
	return dispatched, nil
}

// Run polls until ctx is canceled or the poller is closed.
func (p *Poller) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.wakeup)
	defer stop()
	for {
		if ctx.Err() != nil || p.closed.Load() {
			return nil
		}
		_, err := p.Poll(-1)
		if err != nil {
			if p.closed.Load() {
				return nil
			}
			return err
		}
	}
}

func (p *Poller) wakeup() {
	unix.Write(p.pipeFDs[1], []byte{0})
}

func (p *Poller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.wakeup()

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.entries = make(map[int]*fdEntry)
	p.registrationToFD = make(map[uint64]int)
	return E.Errors(
		unix.Close(p.epollFD),
		unix.Close(p.pipeFDs[0]),
		unix.Close(p.pipeFDs[1]),
	)
}

func translateEvents(events uint32) Event {
	var reported Event
	if events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		reported |= EventIn
	}
	if events&unix.EPOLLPRI != 0 {
		reported |= EventPri
	}
	if events&unix.EPOLLOUT != 0 {
		reported |= EventOut
	}
	if events&unix.EPOLLERR != 0 {
		reported |= EventErr
	}
	if events&unix.EPOLLHUP != 0 {
		reported |= EventHup
	}
	return reported
}
