package imagegen

import (
	"context"
	"sync"
	"time"

	"imagestream/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// IssueFunc performs one supplementary single-image request and returns its
// normalized batch.
type IssueFunc func(ctx context.Context) (Batch, error)

// BackfillReport describes one EnsureCount call.
type BackfillReport struct {
	Requested int  // supplementary requests issued
	Succeeded int  // requests that yielded at least one image
	Failed    int  // requests that returned an error
	Empty     int  // requests that succeeded with no images
	Partial   bool // final batch is shorter than desired
}

// BackfillCoordinator tops up an under-delivered batch with one round of
// concurrent single-image requests.
type BackfillCoordinator struct {
	// MaxConcurrent bounds in-flight requests. Zero means all at once.
	MaxConcurrent int
	// Interval spaces request starts. Zero disables pacing.
	Interval time.Duration

	logger   *logging.Logger
	recorder Recorder
}

// NewBackfillCoordinator creates a coordinator. logger and recorder may be nil.
func NewBackfillCoordinator(maxConcurrent int, interval time.Duration, logger *logging.Logger, recorder Recorder) *BackfillCoordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &BackfillCoordinator{
		MaxConcurrent: maxConcurrent,
		Interval:      interval,
		logger:        logger.Named("backfill"),
		recorder:      recorder,
	}
}

// EnsureCount returns at most desired descriptors. A batch already long
// enough is truncated without any request. Otherwise exactly one request per
// missing image is issued; results are appended in completion order after the
// initial batch. Failures and empty results are absorbed and never cancel
// sibling requests. The returned batch never shares memory with initial.
func (c *BackfillCoordinator) EnsureCount(ctx context.Context, initial Batch, desired int, issue IssueFunc) (Batch, BackfillReport) {
	if desired < 0 {
		desired = 0
	}
	if len(initial) >= desired {
		return initial[:desired].Clone(), BackfillReport{}
	}

	shortfall := desired - len(initial)
	report := BackfillReport{Requested: shortfall}
	merged := make(Batch, len(initial), desired)
	copy(merged, initial)

	c.logger.Info("backfilling shortfall",
		zap.Int("have", len(initial)),
		zap.Int("desired", desired),
		zap.Int("requests", shortfall))

	var limiter *rate.Limiter
	if c.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(c.Interval), 1)
	}

	// Plain Group: one failure must not cancel the others.
	var g errgroup.Group
	if c.MaxConcurrent > 0 {
		g.SetLimit(c.MaxConcurrent)
	}

	var mu sync.Mutex
	for i := 0; i < shortfall; i++ {
		attempt := i + 1
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					c.settle(&mu, &report, &merged, attempt, nil, err)
					return nil
				}
			}
			batch, err := issue(ctx)
			c.settle(&mu, &report, &merged, attempt, batch, err)
			return nil
		})
	}
	_ = g.Wait()

	if len(merged) > desired {
		merged = merged[:desired]
	}
	report.Partial = len(merged) < desired

	c.logger.Info("backfill finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("empty", report.Empty),
		zap.Int("final", len(merged)),
		zap.Bool("partial", report.Partial))

	return merged, report
}

// settle merges one request outcome under mu.
func (c *BackfillCoordinator) settle(mu *sync.Mutex, report *BackfillReport, merged *Batch, attempt int, batch Batch, err error) {
	mu.Lock()
	defer mu.Unlock()

	switch {
	case err != nil:
		report.Failed++
		c.recorder.ObserveBackfillRequest(resultError)
		c.logger.Warn("backfill request failed", zap.Int("attempt", attempt), zap.Error(err))
	case len(batch) == 0:
		report.Empty++
		c.recorder.ObserveBackfillRequest(resultEmpty)
		c.logger.Warn("backfill request returned no images", zap.Int("attempt", attempt))
	default:
		report.Succeeded++
		c.recorder.ObserveBackfillRequest(resultSuccess)
		c.recorder.ObserveImagesReceived(len(batch))
		*merged = append(*merged, batch...)
	}
}
