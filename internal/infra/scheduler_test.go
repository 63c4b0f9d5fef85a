package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_EveryRejectsSubSecondInterval(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))

	_, err := s.Every("too-fast", 500*time.Millisecond, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestJob_RunNowReportsState(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))

	var observed string
	var job *Job
	job, err := s.Every("settlement", time.Minute, func(context.Context) error {
		observed = job.State()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, StateIdle, job.State())
	require.NoError(t, job.RunNow(context.Background()))
	assert.Equal(t, StateRunning, observed)
	assert.Equal(t, StateIdle, job.State())
}

func TestJob_RunNowDoesNotOverlap(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))

	entered := make(chan struct{})
	release := make(chan struct{})
	job, err := s.Every("slow", time.Minute, func(context.Context) error {
		close(entered)
		<-release
		return nil
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- job.RunNow(context.Background()) }()
	<-entered

	assert.ErrorIs(t, job.RunNow(context.Background()), ErrJobBusy)

	close(release)
	assert.NoError(t, <-done)
}

func TestJob_RunNowPropagatesError(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))
	boom := errors.New("boom")

	job, err := s.Every("failing", time.Minute, func(context.Context) error { return boom })
	require.NoError(t, err)

	assert.ErrorIs(t, job.RunNow(context.Background()), boom)
}

func TestScheduler_StopCancelsTickContext(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))

	job, err := s.Every("noop", time.Minute, func(context.Context) error { return nil })
	require.NoError(t, err)

	s.Start()
	s.Stop()

	// ticks fired by cron after Stop see a cancelled base context
	assert.ErrorIs(t, job.run(job.baseCtx()), context.Canceled)
}

func TestJob_TickLogging(t *testing.T) {
	t.Run("failure is logged at error", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		s := NewScheduler(zap.New(core))

		job, err := s.Every("failing", time.Minute, func(context.Context) error { return errors.New("boom") })
		require.NoError(t, err)

		job.tick()
		assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).FilterMessage("Scheduled tick failed").Len())
	})

	t.Run("shutdown is not an error", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		s := NewScheduler(zap.New(core))

		job, err := s.Every("settlement", time.Minute, func(ctx context.Context) error { return ctx.Err() })
		require.NoError(t, err)

		s.Start()
		s.Stop()
		job.tick()

		assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
		assert.Equal(t, 1, logs.FilterMessage("Scheduled tick stopped by shutdown").Len())
	})
}
