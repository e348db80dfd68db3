package throttle

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicThrottling(t *testing.T) {
	tr := New(10)

	assert.True(t, tr.ShouldProcess(1, "e1", "userA"), "first event for a key")
	assert.False(t, tr.ShouldProcess(5, "e2", "userA"), "within window")
	assert.True(t, tr.ShouldProcess(12, "e3", "userA"), "after window")
	assert.True(t, tr.ShouldProcess(15, "e4", "userB"), "new key")
	assert.False(t, tr.ShouldProcess(20, "e5", "userB"), "within window")
}

func TestFirstSeenAlwaysAccepted(t *testing.T) {
	for _, ts := range []int64{0, -100, 1, 1 << 40} {
		tr := New(10)
		assert.True(t, tr.ShouldProcess(ts, "e1", "k"), "ts=%d", ts)
	}
}

func TestWindowBoundary(t *testing.T) {
	tr := New(10)

	require.True(t, tr.ShouldProcess(10, "e1", "userA"))
	assert.True(t, tr.ShouldProcess(20, "e2", "userA"), "delta == window accepts")
	assert.False(t, tr.ShouldProcess(29, "e3", "userA"), "just inside window")
	assert.True(t, tr.ShouldProcess(31, "e4", "userA"), "just past window")
}

func TestKeyIndependence(t *testing.T) {
	tr := New(10)

	assert.True(t, tr.ShouldProcess(1, "e1", "userA"))
	assert.True(t, tr.ShouldProcess(2, "e2", "userB"))
	assert.True(t, tr.ShouldProcess(3, "e3", "userC"))

	assert.False(t, tr.ShouldProcess(5, "e4", "userA"))
	assert.False(t, tr.ShouldProcess(6, "e5", "userB"))
	assert.False(t, tr.ShouldProcess(7, "e6", "userC"))

	assert.True(t, tr.ShouldProcess(12, "e7", "userA"))
	assert.True(t, tr.ShouldProcess(13, "e8", "userB"))
	assert.True(t, tr.ShouldProcess(14, "e9", "userC"))
}

func TestThrottledDecisionIsInert(t *testing.T) {
	tr := New(10)

	require.True(t, tr.ShouldProcess(1, "e1", "userA"))
	require.False(t, tr.ShouldProcess(5, "e2", "userA"))
	require.False(t, tr.ShouldProcess(5, "e3", "userA"), "same timestamp, same answer")

	// still measured against last=1, not 5
	assert.False(t, tr.ShouldProcess(10, "e4", "userA"))
	assert.True(t, tr.ShouldProcess(11, "e5", "userA"))
}

func TestSetWindowForwardOnly(t *testing.T) {
	tr := New(10)

	require.True(t, tr.ShouldProcess(1, "e1", "userA"))

	tr.SetWindow(20)
	require.EqualValues(t, 20, tr.Window())

	assert.False(t, tr.ShouldProcess(15, "e2", "userA"), "within enlarged window")
	assert.True(t, tr.ShouldProcess(22, "e3", "userA"), "past enlarged window")
}

func TestZeroAndNegativeWindow(t *testing.T) {
	tr := New(0)
	assert.True(t, tr.ShouldProcess(5, "e1", "k"))
	assert.True(t, tr.ShouldProcess(5, "e2", "k"), "zero window accepts same-timestamp repeats")
	assert.True(t, tr.ShouldProcess(6, "e3", "k"))

	tr.SetWindow(-5)
	assert.True(t, tr.ShouldProcess(3, "e4", "k"), "negative window accepts a step backwards")
	assert.False(t, tr.ShouldProcess(-10, "e5", "k"), "delta below even a negative window")
}

func TestOutOfOrderTimestamps(t *testing.T) {
	tr := New(10)

	require.True(t, tr.ShouldProcess(100, "e1", "userA"))
	assert.False(t, tr.ShouldProcess(90, "e2", "userA"), "earlier arrival inside window")
	assert.False(t, tr.ShouldProcess(109, "e3", "userA"), "still measured against 100")

	// with a non-positive window an out-of-order event is accepted and
	// rewinds the stored timestamp to a smaller value
	tr.SetWindow(-5)
	require.True(t, tr.ShouldProcess(96, "e4", "userA"))

	tr.SetWindow(10)
	assert.True(t, tr.ShouldProcess(106, "e5", "userA"),
		"measured against the rewound 96, not the earlier 100")
}

func TestClearResets(t *testing.T) {
	tr := New(10)

	require.True(t, tr.ShouldProcess(1, "e1", "userA"))
	require.True(t, tr.ShouldProcess(2, "e2", "userB"))
	require.Equal(t, 2, tr.KeyCount())

	removed := tr.Clear()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, tr.KeyCount())
	assert.EqualValues(t, 10, tr.Window(), "window survives a clear")

	// previously seen keys behave as brand new
	assert.True(t, tr.ShouldProcess(3, "e3", "userA"))
	assert.True(t, tr.ShouldProcess(3, "e4", "userB"))
}

func TestKeyCount(t *testing.T) {
	tr := New(10)
	assert.Equal(t, 0, tr.KeyCount())

	tr.ShouldProcess(1, "e1", "userA")
	assert.Equal(t, 1, tr.KeyCount())

	// throttled and repeat-accepted events never add keys
	tr.ShouldProcess(2, "e2", "userA")
	tr.ShouldProcess(50, "e3", "userA")
	assert.Equal(t, 1, tr.KeyCount())

	tr.ShouldProcess(1, "e4", "userB")
	assert.Equal(t, 2, tr.KeyCount())

	tr.Clear()
	assert.Equal(t, 0, tr.KeyCount())
}

func TestObserver(t *testing.T) {
	var got []Decision
	tr := New(10, WithObserver(func(d Decision) { got = append(got, d) }))

	tr.ShouldProcess(1, "e1", "userA")
	tr.ShouldProcess(5, "e2", "userA")
	tr.ShouldProcess(12, "e3", "userA")

	require.Len(t, got, 3)

	assert.Equal(t, Decision{Key: "userA", EventID: "e1", Timestamp: 1, Window: 10, Accepted: true, FirstSeen: true}, got[0])
	assert.Equal(t, Decision{Key: "userA", EventID: "e2", Timestamp: 5, Last: 1, Window: 10}, got[1])
	assert.Equal(t, Decision{Key: "userA", EventID: "e3", Timestamp: 12, Last: 1, Window: 10, Accepted: true}, got[2])
}

func TestEventIDNeverAffectsDecision(t *testing.T) {
	tr := New(10)

	require.True(t, tr.ShouldProcess(1, "", "userA"))
	require.False(t, tr.ShouldProcess(5, "", "userA"))

	// same sequence with wildly different IDs, same answers
	tr2 := New(10)
	require.True(t, tr2.ShouldProcess(1, "anything", "userA"))
	require.False(t, tr2.ShouldProcess(5, "anything-else", "userA"))
}

func TestEmptyKeyIsAKey(t *testing.T) {
	tr := New(10)

	assert.True(t, tr.ShouldProcess(1, "e1", ""))
	assert.False(t, tr.ShouldProcess(5, "e2", ""))
	assert.Equal(t, 1, tr.KeyCount())
}

func TestRemoveOlderThan(t *testing.T) {
	tr := New(10)

	tr.ShouldProcess(5, "e1", "old")
	tr.ShouldProcess(50, "e2", "mid")
	tr.ShouldProcess(500, "e3", "new")

	removed := tr.RemoveOlderThan(50)
	assert.Equal(t, 1, removed, "only strictly-below threshold goes")
	assert.Equal(t, 2, tr.KeyCount())

	// a removed key is accepted again immediately
	assert.True(t, tr.ShouldProcess(6, "e4", "old"))
}

func TestInstancesAreIndependent(t *testing.T) {
	a := New(10)
	b := New(3)

	require.True(t, a.ShouldProcess(1, "e1", "k"))
	require.True(t, b.ShouldProcess(1, "e1", "k"))

	assert.False(t, a.ShouldProcess(5, "e2", "k"))
	assert.True(t, b.ShouldProcess(5, "e2", "k"))

	a.Clear()
	assert.Equal(t, 1, b.KeyCount())
}

func TestConcurrentAccess(t *testing.T) {
	tr := New(10)

	// each worker owns a key and replays the same schedule; per key the
	// outcome pattern must be accept, throttle, accept, throttle no matter
	// how the goroutines interleave
	schedule := []struct {
		ts int64
		id string
	}{{1, "a"}, {5, "b"}, {12, "c"}, {15, "d"}}

	const workers = 8
	results := make([][]bool, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("user%d", w)
			for _, s := range schedule {
				results[w] = append(results[w], tr.ShouldProcess(s.ts, s.id, key))
			}
		}(w)
	}
	wg.Wait()

	for w, r := range results {
		assert.Equal(t, []bool{true, false, true, false}, r, "worker %d", w)
	}
	assert.Equal(t, workers, tr.KeyCount())
}

func TestConcurrentMixedOperations(t *testing.T) {
	// hammer every operation at once; the race detector plus the final
	// sanity checks are the assertion here
	tr := New(10)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for ts := int64(0); ts < 200; ts++ {
				tr.ShouldProcess(ts, "e", fmt.Sprintf("key%d-%d", i, ts%5))
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 100; i++ {
			tr.SetWindow(i % 20)
			_ = tr.Window()
			_ = tr.KeyCount()
		}
	}()
	wg.Wait()

	assert.GreaterOrEqual(t, tr.KeyCount(), 1)
	w := tr.Window()
	assert.True(t, w >= 0 && w < 20, "window is never torn, got %d", w)
}
