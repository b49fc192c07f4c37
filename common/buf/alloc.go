package buf

// Inspired by https://github.com/xtaci/smux/blob/master/alloc.go

import (
	"math/bits"
	"sync"

	E "github.com/sagernet/sing-relay/common/exceptions"
)

const (
	minClassBits = 6
	maxClassBits = 16
)

var DefaultAllocator = NewAllocator()

type Allocator interface {
	Get(size int) []byte
	Put(buffer []byte) error
}

// classAllocator hands out slices from power-of-two pools between 64 bytes
// and 64 KiB, so the waste of a single allocation stays under 50%.
type classAllocator struct {
	classes [maxClassBits - minClassBits + 1]sync.Pool
}

func NewAllocator() Allocator {
	alloc := new(classAllocator)
	for index := range alloc.classes {
		size := 1 << (index + minClassBits)
		alloc.classes[index].New = func() any {
			buffer := make([]byte, size)
			return &buffer
		}
	}
	return alloc
}

func (alloc *classAllocator) Get(size int) []byte {
	if size <= 0 || size > 1<<maxClassBits {
		return nil
	}
	var index int
	if size > 1<<minClassBits {
		index = msb(size)
		if size != 1<<index {
			index++
		}
		index -= minClassBits
	}
	buffer := alloc.classes[index].Get().(*[]byte)
	return (*buffer)[:size]
}

// Put returns a buffer obtained from Get; its capacity must be one of the
// pool classes.
func (alloc *classAllocator) Put(buffer []byte) error {
	capacity := cap(buffer)
	if capacity < 1<<minClassBits || capacity > 1<<maxClassBits || capacity&(capacity-1) != 0 {
		return E.New("allocator: incorrect buffer size ", capacity)
	}
	buffer = buffer[:capacity]
	alloc.classes[msb(capacity)-minClassBits].Put(&buffer)
	return nil
}

func Get(size int) []byte {
	return DefaultAllocator.Get(size)
}

// Put recycles a buffer from Get. A buffer of any other capacity is left to
// the garbage collector; use Allocator.Put to detect that.
func Put(buffer []byte) {
	_ = DefaultAllocator.Put(buffer)
}

// msb returns the position of the most significant bit
func msb(size int) int {
	return bits.Len32(uint32(size)) - 1
}
