package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeCompaction(t *testing.T) {
	t.Parallel()
	p := newPipe(64)
	defer p.release()

	require.Len(t, p.free(), 64)
	p.end += copy(p.free(), make([]byte, 64))
	require.Empty(t, p.free())

	p.start = 60
	require.Len(t, p.free(), 60)
	require.Equal(t, 4, p.len())
	require.Zero(t, p.start)

	p.start = p.end
	require.Len(t, p.free(), 64)
	require.False(t, p.drained())
	p.eof = true
	require.True(t, p.drained())
}
