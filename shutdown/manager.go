// Package shutdown coordinates graceful termination of long-running
// commands: signal handling, ordered cleanup and a forced exit on a repeated
// signal.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imagestream/core"
	"imagestream/logging"
)

// DefaultTimeout bounds the whole cleanup sequence.
const DefaultTimeout = 60 * time.Second

// Manager composes a Registry and a SignalCounter around a cancellable
// context. Components watch Context(); main calls Shutdown once it is done.
//
//	m := shutdown.NewManager(ctx, logger)
//	m.Register("http", 10, srv.Shutdown)
//	m.Start()
//	<-m.Context().Done()
//	err := m.Shutdown()
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration
	exit    func(int)

	ctx    context.Context
	cancel context.CancelFunc

	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the cleanup deadline. Default is DefaultTimeout.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = timeout }
}

// WithExitFunc replaces os.Exit for the forced-shutdown path.
func WithExitFunc(exit func(int)) ManagerOption {
	return func(m *Manager) { m.exit = exit }
}

// NewManager creates a Manager whose context derives from parent.
func NewManager(parent context.Context, logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	m := &Manager{
		logger:   logger,
		timeout:  DefaultTimeout,
		exit:     os.Exit,
		ctx:      ctx,
		cancel:   cancel,
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.signals = NewSignalCounter(2, func(first os.Signal) {
		m.logger.Warn("Received second signal, forcing exit")
		m.exit(core.ExitCodeForSignal(first))
	})
	return m
}

// Context is cancelled on the first signal or when the parent is done.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup handler; lower priorities run first.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown handler", zap.String("name", name), zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Increment(sig) == 1 {
		m.logger.Info("Received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))
		m.cancel()
	}
}

// Shutdown cancels the context and runs the cleanup handlers within the
// configured timeout. Subsequent calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	start := time.Now()
	m.logger.Info("Running shutdown handlers",
		zap.Strings("handlers", m.registry.Names()),
		zap.Duration("timeout", m.timeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	errs := m.registry.Run(ctx)

	if started {
		signal.Stop(m.sigChan)
	}

	if len(errs) > 0 {
		for _, err := range errs {
			m.logger.Error("Shutdown handler failed", zap.Error(err))
		}
		return errors.Join(errs...)
	}
	m.logger.Info("Shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}

// ExitCode reports the conventional exit code for the signal that started
// the shutdown, or 0 if none did.
func (m *Manager) ExitCode() int {
	return m.signals.ExitCode()
}
