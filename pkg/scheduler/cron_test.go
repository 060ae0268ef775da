package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronRunsJob(t *testing.T) {
	cr := NewCron(time.UTC, time.Second)
	var runs atomic.Int32
	_, err := cr.AddFunc("@every 1s", func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		runs.Add(1)
	})
	require.NoError(t, err)
	require.Len(t, cr.Entries(), 1)

	cr.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	cr.Stop()
}

func TestCronStopCancelsRunningJob(t *testing.T) {
	cr := NewCron(nil, 0)
	started := make(chan struct{})
	var cancelled atomic.Bool
	_, err := cr.Add("@every 1s", FuncJob(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	}))
	require.NoError(t, err)

	cr.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}
	cr.Stop()
	assert.True(t, cancelled.Load())
}

func TestCronRejectsBadExpression(t *testing.T) {
	cr := NewCron(nil, 0)
	_, err := cr.AddFunc("every now and then", func(context.Context) {})
	assert.Error(t, err)
}
