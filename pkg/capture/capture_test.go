package capture

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(l *Log, n int) {
	for i := 0; i < n; i++ {
		l.Append(Request{ID: fmt.Sprintf("r%d", i)})
	}
}

func TestLog_RecentNewestFirst(t *testing.T) {
	l := NewLog(10)
	appendN(l, 3)

	got := l.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "r2", got[0].ID)
	assert.Equal(t, "r0", got[2].ID)

	got = l.Recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)
	assert.Equal(t, "r1", got[1].ID)

	assert.Len(t, l.Recent(100), 3)
}

func TestLog_EvictsOldestBeyondLimit(t *testing.T) {
	l := NewLog(3)
	appendN(l, 5)

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, int64(5), l.Total())
	got := l.Recent(0)
	assert.Equal(t, []string{"r4", "r3", "r2"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestLog_ClearKeepsTotal(t *testing.T) {
	l := NewLog(0)
	appendN(l, 4)

	assert.Equal(t, 4, l.Clear())
	assert.Zero(t, l.Len())
	assert.Equal(t, int64(4), l.Total())
	assert.Empty(t, l.Recent(0))
	assert.Zero(t, l.Clear())
}

func TestLog_ConcurrentAppend(t *testing.T) {
	l := NewLog(50)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appendN(l, 20)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(200), l.Total())
	assert.Equal(t, 50, l.Len())
}

func TestHeaderMap_Copies(t *testing.T) {
	h := http.Header{"Content-Type": {"application/json"}}
	m := HeaderMap(h)
	h["Content-Type"][0] = "text/plain"

	assert.Equal(t, []string{"application/json"}, m["Content-Type"])
}
