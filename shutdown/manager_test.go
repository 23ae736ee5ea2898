package shutdown

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"imagestream/core"
	"imagestream/logging"
)

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	return NewManager(context.Background(), logging.NewFromZap(zaptest.NewLogger(t)), opts...)
}

func TestManager_FirstSignalCancelsContext(t *testing.T) {
	m := newTestManager(t)

	m.handleSignal(syscall.SIGTERM)

	select {
	case <-m.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	assert.Equal(t, core.ExitCodeSIGTERM, m.ExitCode())
}

func TestManager_SecondSignalForcesExit(t *testing.T) {
	var code int
	m := newTestManager(t, WithExitFunc(func(c int) { code = c }))

	m.handleSignal(syscall.SIGINT)
	assert.Zero(t, code)
	m.handleSignal(syscall.SIGTERM)

	assert.Equal(t, core.ExitCodeSIGINT, code)
}

func TestManager_ShutdownRunsHandlersWithDeadline(t *testing.T) {
	m := newTestManager(t, WithTimeout(5*time.Second))

	var hadDeadline bool
	m.Register("http", 10, func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	m.Register("logger", 90, func(context.Context) error { return errors.New("sync failed") })

	err := m.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown: logger: sync failed")
	assert.True(t, hadDeadline)
	assert.Error(t, m.Context().Err())

	assert.NoError(t, m.Shutdown())
	assert.Equal(t, core.ExitCodeSuccess, m.ExitCode())
}

func TestManager_ParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, nil)

	cancel()
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
}

func TestSignalCounter(t *testing.T) {
	var forced []int
	c := NewSignalCounter(2, func(first os.Signal) { forced = append(forced, core.ExitCodeForSignal(first)) })

	assert.Equal(t, core.ExitCodeSuccess, c.ExitCode())
	assert.Equal(t, 1, c.Increment(syscall.SIGTERM))
	assert.Empty(t, forced)
	assert.Equal(t, 2, c.Increment(syscall.SIGINT))
	assert.Equal(t, []int{core.ExitCodeSIGTERM}, forced)
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, core.ExitCodeSIGTERM, c.ExitCode())
}
