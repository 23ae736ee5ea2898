package imagegen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCount_TruncatesWithoutRequests(t *testing.T) {
	c := NewBackfillCoordinator(0, 0, newTestLogger(t), nil)
	var calls int32
	issue := func(context.Context) (Batch, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	initial := urlBatch("a", "b", "c")
	got, report := c.EnsureCount(context.Background(), initial, 2, issue)

	assert.Equal(t, []string{"a", "b"}, urls(got))
	assert.Zero(t, report.Requested)
	assert.False(t, report.Partial)
	assert.Zero(t, atomic.LoadInt32(&calls))

	got[0].URL = "changed"
	assert.Equal(t, "a", initial[0].URL)
}

func TestEnsureCount_AllBackfillsSucceed(t *testing.T) {
	c := NewBackfillCoordinator(0, 0, newTestLogger(t), nil)
	var n int32
	issue := func(context.Context) (Batch, error) {
		i := atomic.AddInt32(&n, 1)
		return urlBatch(fmt.Sprintf("backfill-%d", i)), nil
	}

	got, report := c.EnsureCount(context.Background(), urlBatch("primary1", "primary2"), 5, issue)

	require.Len(t, got, 5)
	assert.Equal(t, []string{"primary1", "primary2"}, urls(got[:2]))
	assert.ElementsMatch(t, []string{"backfill-1", "backfill-2", "backfill-3"}, urls(got[2:]))
	assert.Equal(t, BackfillReport{Requested: 3, Succeeded: 3}, report)
}

func TestEnsureCount_MergesInCompletionOrder(t *testing.T) {
	c := NewBackfillCoordinator(0, 0, newTestLogger(t), nil)
	var n int32
	issue := func(ctx context.Context) (Batch, error) {
		i := atomic.AddInt32(&n, 1)
		// Earlier requests answer later.
		time.Sleep(time.Duration(4-i) * 60 * time.Millisecond)
		return urlBatch(fmt.Sprintf("backfill-%d", i)), nil
	}

	got, report := c.EnsureCount(context.Background(), urlBatch("primary1", "primary2"), 5, issue)

	assert.Equal(t, []string{"primary1", "primary2", "backfill-3", "backfill-2", "backfill-1"}, urls(got))
	assert.Equal(t, BackfillReport{Requested: 3, Succeeded: 3}, report)
}

func TestEnsureCount_AllBackfillsFail(t *testing.T) {
	c := NewBackfillCoordinator(2, 0, newTestLogger(t), nil)
	var calls int32
	issue := func(context.Context) (Batch, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("upstream unavailable")
	}

	initial := urlBatch("primary1", "primary2")
	got, report := c.EnsureCount(context.Background(), initial, 5, issue)

	assert.Equal(t, []string{"primary1", "primary2"}, urls(got))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, BackfillReport{Requested: 3, Failed: 3, Partial: true}, report)
}

func TestEnsureCount_MixedOutcomes(t *testing.T) {
	c := NewBackfillCoordinator(0, 0, newTestLogger(t), nil)
	var n int32
	issue := func(context.Context) (Batch, error) {
		switch atomic.AddInt32(&n, 1) {
		case 1:
			return nil, errors.New("boom")
		case 2:
			return Batch{}, nil
		default:
			return urlBatch("x"), nil
		}
	}

	got, report := c.EnsureCount(context.Background(), urlBatch("p"), 4, issue)

	assert.Equal(t, []string{"p", "x"}, urls(got))
	assert.Equal(t, 3, report.Requested)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Empty)
	assert.True(t, report.Partial)
}

func TestEnsureCount_NeverExceedsDesired(t *testing.T) {
	c := NewBackfillCoordinator(0, 0, newTestLogger(t), nil)
	// Upstream ignores n=1 and returns three images per backfill call.
	issue := func(context.Context) (Batch, error) {
		return urlBatch("x", "y", "z"), nil
	}

	got, report := c.EnsureCount(context.Background(), urlBatch("p"), 3, issue)
	assert.Len(t, got, 3)
	assert.Equal(t, "p", got[0].URL)
	assert.Equal(t, 2, report.Requested)
	assert.False(t, report.Partial)
}

func TestEnsureCount_LengthProperty(t *testing.T) {
	for desired := 1; desired <= 6; desired++ {
		for have := 0; have <= 6; have++ {
			for succeed := 0; succeed <= 6; succeed++ {
				var n int32
				issue := func(context.Context) (Batch, error) {
					if int(atomic.AddInt32(&n, 1)) <= succeed {
						return urlBatch("b"), nil
					}
					return nil, errors.New("fail")
				}
				initial := make(Batch, have)
				c := NewBackfillCoordinator(0, 0, nil, nil)

				got, _ := c.EnsureCount(context.Background(), initial, desired, issue)

				shortfall := desired - have
				if shortfall < 0 {
					shortfall = 0
				}
				successes := succeed
				if successes > shortfall {
					successes = shortfall
				}
				expected := have + successes
				if expected > desired {
					expected = desired
				}
				assert.Len(t, got, expected, "desired=%d have=%d succeed=%d", desired, have, succeed)
			}
		}
	}
}

func TestEnsureCount_RespectsConcurrencyLimit(t *testing.T) {
	c := NewBackfillCoordinator(2, 0, newTestLogger(t), nil)
	var inFlight, peak int32
	var mu sync.Mutex
	issue := func(context.Context) (Batch, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if cur > peak {
			peak = cur
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return urlBatch("b"), nil
	}

	got, _ := c.EnsureCount(context.Background(), nil, 6, issue)
	assert.Len(t, got, 6)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestEnsureCount_RequestsOverlap(t *testing.T) {
	c := NewBackfillCoordinator(0, 0, newTestLogger(t), nil)
	issue := func(context.Context) (Batch, error) {
		time.Sleep(100 * time.Millisecond)
		return urlBatch("b"), nil
	}

	start := time.Now()
	got, _ := c.EnsureCount(context.Background(), nil, 5, issue)
	assert.Len(t, got, 5)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestEnsureCount_CancelledPacingCountsAsFailure(t *testing.T) {
	c := NewBackfillCoordinator(0, time.Hour, newTestLogger(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	issue := func(context.Context) (Batch, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			cancel()
		}
		return urlBatch("b"), nil
	}

	got, report := c.EnsureCount(ctx, urlBatch("p"), 3, issue)
	assert.Equal(t, 2, report.Requested)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, got, 2)
	assert.True(t, report.Partial)
}
