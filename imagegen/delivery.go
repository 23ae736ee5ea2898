package imagegen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"imagestream/logging"

	"go.uber.org/zap"
)

// DefaultDeliveryInterval is the pause before each progressive delivery step.
const DefaultDeliveryInterval = 500 * time.Millisecond

var errInvalidDescriptor = errors.New("descriptor has neither a url nor image data")

// DeliveryScheduler hands a batch to a sink one item at a time with a fixed
// pause before each item. A scheduler runs one delivery at a time.
type DeliveryScheduler struct {
	Interval time.Duration

	logger   *logging.Logger
	recorder Recorder

	mu    sync.Mutex
	state DeliveryState
}

// NewDeliveryScheduler creates an idle scheduler. A negative interval means
// DefaultDeliveryInterval; zero disables pacing.
func NewDeliveryScheduler(interval time.Duration, logger *logging.Logger, recorder Recorder) *DeliveryScheduler {
	if interval < 0 {
		interval = DefaultDeliveryInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &DeliveryScheduler{
		Interval: interval,
		logger:   logger.Named("delivery"),
		recorder: recorder,
	}
}

// State returns the current lifecycle state.
func (s *DeliveryScheduler) State() DeliveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *DeliveryScheduler) setState(st DeliveryState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Deliver visits every descriptor in order exactly once. A failing item
// (error, panic or invalid descriptor) is reported through OnItemError and
// delivery continues. OnProgress follows every attempt.
//
// If ctx ends during a pause the scheduler moves to StateCancelled and
// returns the progress so far with ctx.Err().
func (s *DeliveryScheduler) Deliver(ctx context.Context, batch Batch, sink Sink) (Progress, error) {
	if sink == nil {
		sink = DiscardSink{}
	}
	progress := Progress{Total: len(batch)}
	s.setState(StateDelivering)

	for i, d := range batch {
		if err := s.pause(ctx); err != nil {
			s.setState(StateCancelled)
			s.logger.Info("delivery cancelled",
				zap.Int("attempted", progress.Attempted),
				zap.Int("total", progress.Total))
			return progress, err
		}

		position := i + 1
		if err := renderItem(ctx, sink, d, position, progress.Total); err != nil {
			s.recorder.ObserveDelivery(resultError)
			s.logger.Warn("item delivery failed", zap.Int("position", position), zap.Error(err))
			notify(func() { sink.OnItemError(position, err.Error()) })
		} else {
			progress.Succeeded++
			s.recorder.ObserveDelivery(resultSuccess)
		}
		progress.Attempted++

		snapshot := progress
		notify(func() { sink.OnProgress(snapshot) })
	}

	s.setState(StateComplete)
	return progress, nil
}

func (s *DeliveryScheduler) pause(ctx context.Context) error {
	if s.Interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// renderItem calls OnItem, converting a panic into an error.
func renderItem(ctx context.Context, sink Sink, d Descriptor, position, total int) (err error) {
	if !d.Valid() {
		return errInvalidDescriptor
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.OnItem(ctx, d, position, total)
}

// notify runs a sink notification, discarding any panic.
func notify(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
