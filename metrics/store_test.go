package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecentNewestFirst(t *testing.T) {
	store := NewStore(3, time.Now())
	for i := 1; i <= 5; i++ {
		store.Record(GenerationRecord{ID: fmt.Sprintf("g%d", i), Outcome: OutcomeSuccess})
	}

	recent := store.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "g5", recent[0].ID)
	assert.Equal(t, "g3", recent[2].ID)

	assert.Len(t, store.Recent(2), 2)
}

func TestStore_Summary(t *testing.T) {
	store := NewStore(10, time.Now().Add(-time.Minute))
	store.Record(GenerationRecord{Outcome: OutcomeSuccess, Duration: 2 * time.Second})
	store.Record(GenerationRecord{Outcome: OutcomePartial, Duration: 4 * time.Second})

	sum := store.Summary()
	assert.EqualValues(t, 2, sum.Total)
	assert.EqualValues(t, 1, sum.ByOutcome[OutcomePartial])
	assert.Equal(t, 3*time.Second, sum.AvgDuration)
	assert.GreaterOrEqual(t, sum.Uptime, time.Minute)
}

func TestStore_EmptySummary(t *testing.T) {
	sum := NewStore(0, time.Now()).Summary()
	assert.Zero(t, sum.Total)
	assert.Zero(t, sum.AvgDuration)
	assert.Empty(t, NewStore(5, time.Now()).Recent(3))
}

func TestStore_ConcurrentRecord(t *testing.T) {
	store := NewStore(50, time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Record(GenerationRecord{Outcome: OutcomeSuccess})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 20, store.Summary().Total)
}

func TestNewStore_NonPositiveCapacityUsesDefault(t *testing.T) {
	for _, capacity := range []int{0, -3} {
		store := NewStore(capacity, time.Now())
		for i := 0; i < DefaultStoreCapacity+5; i++ {
			store.Record(GenerationRecord{ID: fmt.Sprintf("g%d", i)})
		}
		assert.Len(t, store.Recent(0), DefaultStoreCapacity)
	}
}
