package imagegen

import (
	"context"
	"errors"
)

// Sink is the presentation layer that receives delivered images.
//
// OnItem renders one descriptor at a 1-based position; a non-nil error marks
// that item failed. OnItemError and OnProgress are notifications only.
type Sink interface {
	OnItem(ctx context.Context, d Descriptor, position, total int) error
	OnItemError(position int, message string)
	OnProgress(p Progress)
}

// MultiSink fans every call out to each member in order. An item fails if
// any member fails; all members are still called.
type MultiSink []Sink

// OnItem implements Sink.
func (m MultiSink) OnItem(ctx context.Context, d Descriptor, position, total int) error {
	var errs []error
	for _, s := range m {
		if err := s.OnItem(ctx, d, position, total); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnItemError implements Sink.
func (m MultiSink) OnItemError(position int, message string) {
	for _, s := range m {
		s.OnItemError(position, message)
	}
}

// OnProgress implements Sink.
func (m MultiSink) OnProgress(p Progress) {
	for _, s := range m {
		s.OnProgress(p)
	}
}

// DiscardSink accepts every item and ignores notifications.
type DiscardSink struct{}

func (DiscardSink) OnItem(context.Context, Descriptor, int, int) error { return nil }
func (DiscardSink) OnItemError(int, string)                           {}
func (DiscardSink) OnProgress(Progress)                               {}
