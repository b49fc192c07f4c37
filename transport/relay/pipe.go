package relay

import "github.com/sagernet/sing-relay/common/buf"

// pipe buffers one direction of a session. Bytes are appended at end and
// consumed from start; eof is set once the reading side saw end of stream.
type pipe struct {
	buffer []byte
	start  int
	end    int
	eof    bool
}

func newPipe(size int) *pipe {
	return &pipe{buffer: buf.Get(size)}
}

func (p *pipe) free() []byte {
	if p.start == p.end {
		p.start, p.end = 0, 0
	} else if p.end == len(p.buffer) && p.start > 0 {
		p.end = copy(p.buffer, p.buffer[p.start:p.end])
		p.start = 0
	}
	return p.buffer[p.end:]
}

func (p *pipe) data() []byte {
	return p.buffer[p.start:p.end]
}

func (p *pipe) len() int {
	return p.end - p.start
}

func (p *pipe) drained() bool {
	return p.eof && p.len() == 0
}

func (p *pipe) release() {
	if p.buffer != nil {
		buf.Put(p.buffer)
		p.buffer = nil
	}
}
