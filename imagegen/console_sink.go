package imagegen

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"imagestream/core"
)

// ConsoleSink prints delivery events to a terminal. Colors follow
// color.NoColor, which is set automatically for non-TTY output.
type ConsoleSink struct {
	out io.Writer
	mu  sync.Mutex

	itemColor  *color.Color
	errColor   *color.Color
	dimColor   *color.Color
	labelColor *color.Color
}

// NewConsoleSink creates a sink writing to out (stdout when nil).
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{
		out:        out,
		itemColor:  color.New(color.FgGreen),
		errColor:   color.New(color.FgRed),
		dimColor:   color.New(color.FgHiBlack),
		labelColor: color.New(color.FgCyan, color.Bold),
	}
}

// OnItem implements Sink.
func (c *ConsoleSink) OnItem(_ context.Context, d Descriptor, position, total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.labelColor.Fprintf(c.out, "[%d/%d] ", position, total)
	if d.IsInline() {
		c.itemColor.Fprintf(c.out, "inline image (%d base64 chars)\n", len(d.B64JSON))
		return nil
	}
	c.itemColor.Fprintln(c.out, d.URL)
	return nil
}

// OnItemError implements Sink.
func (c *ConsoleSink) OnItemError(position int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.labelColor.Fprintf(c.out, "[%d] ", position)
	c.errColor.Fprintf(c.out, "failed: %s\n", message)
}

// OnProgress implements Sink.
func (c *ConsoleSink) OnProgress(p Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dimColor.Fprintf(c.out, "    %d/%d attempted, %d displayed\n", p.Attempted, p.Total, p.Succeeded)
}

// Summary prints the final line for a generation result.
func (c *ConsoleSink) Summary(r *Result) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("%d of %d requested images delivered in %s",
		r.Progress.Succeeded, r.Requested, core.FormatDuration(r.Duration))
	switch {
	case r.Partial:
		color.New(color.FgYellow, color.Bold).Fprintf(c.out, "✓ %s (partial: upstream under-delivered)\n", line)
	case r.Progress.Failed() > 0:
		color.New(color.FgYellow, color.Bold).Fprintf(c.out, "✓ %s (%d failed to display)\n", line, r.Progress.Failed())
	default:
		color.New(color.FgGreen, color.Bold).Fprintf(c.out, "✓ %s\n", line)
	}
	if r.SizeFallback {
		c.dimColor.Fprintf(c.out, "  size fell back to %s\n", r.Size)
	}
}
