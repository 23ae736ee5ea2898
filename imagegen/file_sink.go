package imagegen

import (
	"context"
	"fmt"
	"sync"

	"imagestream/logging"

	"go.uber.org/zap"
)

// FileSink saves every delivered image through a Downloader. Files are named
// generated_<correlation>_<position> plus an extension from the content type.
type FileSink struct {
	downloader *Downloader
	logger     *logging.Logger

	mu    sync.Mutex
	saved []string
	bytes int64
}

// NewFileSink creates a sink backed by downloader.
func NewFileSink(downloader *Downloader, logger *logging.Logger) *FileSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileSink{downloader: downloader, logger: logger.Named("file-sink")}
}

// OnItem implements Sink.
func (s *FileSink) OnItem(ctx context.Context, d Descriptor, position, _ int) error {
	name := fmt.Sprintf("generated_%s_%d", CorrelationIDFromContext(ctx), position)
	res, err := s.downloader.Save(ctx, d, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.saved = append(s.saved, res.Path)
	s.bytes += res.Size
	s.mu.Unlock()

	s.logger.Debug("image saved",
		zap.Int("position", position),
		zap.String("path", res.Path),
		zap.Int64("size", res.Size))
	return nil
}

// OnItemError implements Sink.
func (s *FileSink) OnItemError(int, string) {}

// OnProgress implements Sink.
func (s *FileSink) OnProgress(Progress) {}

// Saved returns the paths written so far, in delivery order.
func (s *FileSink) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.saved))
	copy(out, s.saved)
	return out
}

// BytesWritten returns the total size of the files saved so far.
func (s *FileSink) BytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
