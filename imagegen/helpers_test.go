package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"

	"imagestream/logging"

	"go.uber.org/zap/zaptest"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewFromZap(zaptest.NewLogger(t))
}

// pngReference encodes a blank w x h PNG as a reference image.
func pngReference(t *testing.T, w, h int) ReferenceImage {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return NewReferenceImage(buf.Bytes(), "image/png")
}

// fakeTransport replays a scripted sequence of responses. The first call gets
// responses[0]; once the script is exhausted fallback is used.
type fakeTransport struct {
	mu        sync.Mutex
	responses []fakeResponse
	fallback  fakeResponse
	payloads  []Payload
}

type fakeResponse struct {
	body string
	err  error
}

func (f *fakeTransport) Post(ctx context.Context, p Payload) (json.RawMessage, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	resp := f.fallback
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return json.RawMessage(resp.body), nil
}

func (f *fakeTransport) calls() []Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Payload, len(f.payloads))
	copy(out, f.payloads)
	return out
}

// recordingSink stores every call. failAt positions return an error;
// panicAt positions panic.
type recordingSink struct {
	mu       sync.Mutex
	items    []Descriptor
	itemPos  []int
	errors   []ItemError
	progress []Progress
	failAt   map[int]bool
	panicAt  map[int]bool
}

func (s *recordingSink) OnItem(_ context.Context, d Descriptor, position, total int) error {
	if s.panicAt[position] {
		panic(fmt.Sprintf("render %d", position))
	}
	if s.failAt[position] {
		return fmt.Errorf("cannot render %d", position)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, d)
	s.itemPos = append(s.itemPos, position)
	return nil
}

func (s *recordingSink) OnItemError(position int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, ItemError{Position: position, Message: message})
}

func (s *recordingSink) OnProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
}

func urls(b Batch) []string {
	out := make([]string, len(b))
	for i, d := range b {
		out[i] = d.URL
	}
	return out
}

func urlBatch(us ...string) Batch {
	b := make(Batch, len(us))
	for i, u := range us {
		b[i] = Descriptor{URL: u}
	}
	return b
}
