package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerWaitsForServices(t *testing.T) {
	m := NewManager(zap.NewNop())

	stopped := make(chan struct{})
	require.NoError(t, m.Go("worker", func(h *Handle) {
		<-h.Done()
		close(stopped)
	}))

	m.Shutdown()
	assert.Empty(t, m.WaitWithTimeout(time.Second))
	<-stopped
}

func TestManagerReportsStuckServices(t *testing.T) {
	m := NewManager(zap.NewNop())

	_, err := m.NewServiceHandle("stuck")
	require.NoError(t, err)
	h, err := m.NewServiceHandle("polite")
	require.NoError(t, err)
	h.Close()
	h.Close()

	m.Shutdown()
	assert.Equal(t, []string{"stuck"}, m.WaitWithTimeout(20*time.Millisecond))
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	m := NewManager(zap.NewNop())

	_, err := m.NewServiceHandle("svc")
	require.NoError(t, err)
	_, err = m.NewServiceHandle("svc")
	assert.Error(t, err)
}

func TestHandleSleep(t *testing.T) {
	m := NewManager(zap.NewNop())
	h, err := m.NewServiceHandle("sleeper")
	require.NoError(t, err)
	defer h.Close()

	assert.NoError(t, h.Sleep(time.Millisecond))

	m.Shutdown()
	err = h.Sleep(time.Hour)
	assert.True(t, errors.Is(err, h.Ctx().Err()))
}
