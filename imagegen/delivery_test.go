package imagegen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_VisitsEveryItemInOrder(t *testing.T) {
	s := NewDeliveryScheduler(0, newTestLogger(t), nil)
	sink := &recordingSink{}
	batch := urlBatch("a", "b", "c")

	assert.Equal(t, StateIdle, s.State())
	progress, err := s.Deliver(context.Background(), batch, sink)

	require.NoError(t, err)
	assert.Equal(t, Progress{Attempted: 3, Succeeded: 3, Total: 3}, progress)
	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, []string{"a", "b", "c"}, urls(sink.items))
	assert.Equal(t, []int{1, 2, 3}, sink.itemPos)
	assert.Equal(t, []Progress{
		{Attempted: 1, Succeeded: 1, Total: 3},
		{Attempted: 2, Succeeded: 2, Total: 3},
		{Attempted: 3, Succeeded: 3, Total: 3},
	}, sink.progress)
}

func TestDeliver_IsolatesItemFailures(t *testing.T) {
	s := NewDeliveryScheduler(0, newTestLogger(t), nil)
	sink := &recordingSink{failAt: map[int]bool{2: true}, panicAt: map[int]bool{4: true}}
	batch := Batch{{URL: "a"}, {URL: "b"}, {}, {URL: "d"}, {B64JSON: "QUJD"}}

	progress, err := s.Deliver(context.Background(), batch, sink)

	require.NoError(t, err)
	assert.Equal(t, Progress{Attempted: 5, Succeeded: 2, Total: 5}, progress)
	assert.Equal(t, 3, progress.Failed())
	assert.True(t, progress.Done())
	assert.Equal(t, []int{1, 5}, sink.itemPos)

	require.Len(t, sink.errors, 3)
	assert.Equal(t, 2, sink.errors[0].Position)
	assert.Contains(t, sink.errors[0].Message, "cannot render 2")
	assert.Equal(t, 3, sink.errors[1].Position)
	assert.Equal(t, errInvalidDescriptor.Error(), sink.errors[1].Message)
	assert.Equal(t, 4, sink.errors[2].Position)
	assert.Contains(t, sink.errors[2].Message, "panicked")

	// progress reported after every attempt, never decreasing
	require.Len(t, sink.progress, 5)
	for i := 1; i < len(sink.progress); i++ {
		assert.GreaterOrEqual(t, sink.progress[i].Attempted, sink.progress[i-1].Attempted)
		assert.GreaterOrEqual(t, sink.progress[i].Succeeded, sink.progress[i-1].Succeeded)
	}
}

func TestDeliver_EmptyBatch(t *testing.T) {
	s := NewDeliveryScheduler(DefaultDeliveryInterval, nil, nil)
	sink := &recordingSink{}

	progress, err := s.Deliver(context.Background(), nil, sink)
	require.NoError(t, err)
	assert.Equal(t, Progress{}, progress)
	assert.True(t, progress.Done())
	assert.Equal(t, StateComplete, s.State())
	assert.Empty(t, sink.progress)
}

func TestDeliver_Pacing(t *testing.T) {
	s := NewDeliveryScheduler(30*time.Millisecond, newTestLogger(t), nil)

	start := time.Now()
	_, err := s.Deliver(context.Background(), urlBatch("a", "b", "c"), &recordingSink{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestDeliver_CancelledDuringPause(t *testing.T) {
	s := NewDeliveryScheduler(time.Hour, newTestLogger(t), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	progress, err := s.Deliver(ctx, urlBatch("a", "b"), &recordingSink{})

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, Progress{Total: 2}, progress)
	assert.Equal(t, StateCancelled, s.State())
}

func TestDeliver_CancelStopsRemainingItems(t *testing.T) {
	s := NewDeliveryScheduler(0, newTestLogger(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancelAfterSink{cancel: cancel, after: 2}

	progress, err := s.Deliver(ctx, urlBatch("a", "b", "c", "d"), sink)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, progress.Attempted)
	assert.Equal(t, 4, progress.Total)
}

type cancelAfterSink struct {
	DiscardSink
	cancel context.CancelFunc
	after  int
}

func (s *cancelAfterSink) OnItem(_ context.Context, _ Descriptor, position, _ int) error {
	if position == s.after {
		s.cancel()
	}
	return nil
}

func TestNewDeliveryScheduler_NegativeIntervalUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultDeliveryInterval, NewDeliveryScheduler(-1, nil, nil).Interval)
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{failAt: map[int]bool{1: true}}
	multi := MultiSink{ok, failing}

	err := multi.OnItem(context.Background(), Descriptor{URL: "a"}, 1, 1)
	assert.Error(t, err)
	assert.Len(t, ok.items, 1)

	multi.OnItemError(1, "x")
	multi.OnProgress(Progress{Attempted: 1, Total: 1})
	assert.Len(t, ok.errors, 1)
	assert.Len(t, failing.progress, 1)
}

func TestDeliveryState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "delivering", StateDelivering.String())
	assert.Equal(t, "complete", StateComplete.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
}
