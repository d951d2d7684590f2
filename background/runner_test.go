package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, workers, depth int) (*Runner, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewRunner(log, workers, depth), hook
}

func TestRunner_RunsSubmittedTasks(t *testing.T) {
	r, _ := newTestRunner(t, 2, 4)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		r.Submit(Task{Name: "count", Run: func(context.Context) error {
			n.Add(1)
			return nil
		}})
	}

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, int32(10), n.Load())
}

func TestRunner_FailureIsLoggedNotReturned(t *testing.T) {
	r, hook := newTestRunner(t, 1, 1)

	r.Submit(Task{Name: "save image", Run: func(context.Context) error {
		return errors.New("disk full")
	}})
	require.NoError(t, r.Stop(context.Background()))

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "background task failed" {
			found = true
			assert.Equal(t, "save image", e.Data["task"])
		}
	}
	assert.True(t, found, "expected a warn entry for the failed task")
}

func TestRunner_RecoversPanics(t *testing.T) {
	r, hook := newTestRunner(t, 1, 1)

	r.Submit(Task{Name: "explode", Run: func(context.Context) error { panic("kaboom") }})
	require.NoError(t, r.Stop(context.Background()))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestRunner_SubmitAfterStopIsDropped(t *testing.T) {
	r, hook := newTestRunner(t, 1, 1)
	require.NoError(t, r.Stop(context.Background()))

	var ran atomic.Bool
	r.Submit(Task{Name: "late", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}})

	assert.False(t, ran.Load())
	assert.Equal(t, "background runner stopped, task dropped", hook.LastEntry().Message)
	// stopping twice is fine
	assert.NoError(t, r.Stop(context.Background()))
}

func TestRunner_StopHonoursDeadline(t *testing.T) {
	r, _ := newTestRunner(t, 1, 1)

	r.Submit(Task{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Stop(ctx), context.DeadlineExceeded)
}
