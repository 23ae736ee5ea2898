package shutdown

import (
	"os"
	"sync"

	"imagestream/core"
)

// SignalCounter counts shutdown signals: the first starts a graceful stop,
// reaching forceAfter invokes onForce with the first signal received.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	first      os.Signal
	forceAfter int
	onForce    func(first os.Signal)
}

// NewSignalCounter creates a counter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func(first os.Signal)) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Increment records sig and returns the new count. The force callback runs
// while the lock is held.
func (s *SignalCounter) Increment(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.first == nil {
		s.first = sig
	}
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce(s.first)
	}
	return s.count
}

// Count returns the number of signals received.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// ExitCode maps the first received signal to its exit code, or
// core.ExitCodeSuccess when no signal arrived.
func (s *SignalCounter) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.first == nil {
		return core.ExitCodeSuccess
	}
	return core.ExitCodeForSignal(s.first)
}
