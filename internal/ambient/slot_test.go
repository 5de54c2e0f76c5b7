package ambient

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stackGoroutineID parses the id from the "goroutine N [" header that
// runtime.Stack writes for the calling goroutine.
func stackGoroutineID(t *testing.T) int64 {
	t.Helper()

	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}

	id, err := strconv.ParseInt(string(buf), 10, 64)
	assert.NoError(t, err)

	return id
}

func TestGoroutineID_MatchesRuntime(t *testing.T) {
	assert.NotZero(t, goroutineID())
	assert.Equal(t, stackGoroutineID(t), goroutineID())
}

func TestGoroutineID_DistinctAcrossLiveGoroutines(t *testing.T) {
	const n = 32

	ids := make([]int64, n)
	fromStack := make([]int64, n)

	var entered, done sync.WaitGroup
	release := make(chan struct{})

	for i := range n {
		entered.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			ids[i] = goroutineID()
			fromStack[i] = stackGoroutineID(t)
			entered.Done()
			<-release
		}()
	}

	// every goroutine is alive while the others record their ids
	entered.Wait()
	close(release)
	done.Wait()

	seen := make(map[int64]bool, n+1)
	seen[goroutineID()] = true

	for i, id := range ids {
		assert.NotZero(t, id)
		assert.Equal(t, fromStack[i], id)
		assert.False(t, seen[id], "goroutine id %d reported twice", id)
		seen[id] = true
	}
}

func TestSlot_EntryRemovedWhenStackEmpties(t *testing.T) {
	var s slot[int]
	gid := goroutineID()

	outer := s.push(gid, 1)
	inner := s.push(gid, 2)
	assert.Equal(t, 2, s.depth(gid))

	require.NoError(t, s.pop(gid, inner))
	require.NoError(t, s.pop(gid, outer))

	_, ok := s.stacks.Load(gid)
	assert.False(t, ok)
}
