package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackgroundRefresher_NeverOverlaps tests the single-flight guarantee.
func TestBackgroundRefresher_NeverOverlaps(t *testing.T) {
	// Arrange
	var running, overlaps, runs int32
	job := func(ctx context.Context) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&runs, 1)
		return nil
	}
	r := NewBackgroundRefresher("test", time.Millisecond, job, discardLogger())

	// Act
	r.Start(context.Background())
	for i := 0; i < 20; i++ {
		r.Trigger()
		time.Sleep(time.Millisecond)
	}
	r.Stop()

	// Assert
	assert.Zero(t, atomic.LoadInt32(&overlaps))
	assert.Positive(t, atomic.LoadInt32(&runs))
}

// TestBackgroundRefresher_RunOnceWaitsForLoop tests that RunOnce never overlaps a loop run.
func TestBackgroundRefresher_RunOnceWaitsForLoop(t *testing.T) {
	// Arrange
	var running, overlaps, runs int32
	started := make(chan struct{}, 1)
	job := func(ctx context.Context) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&runs, 1)
		return nil
	}
	r := NewBackgroundRefresher("test", time.Hour, job, discardLogger())
	r.Start(context.Background())
	<-started

	// Act
	err := r.RunOnce(context.Background())
	r.Stop()

	// Assert
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&overlaps))
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

// TestBackgroundRefresher_IntervalFromCompletion tests that waiting starts after the run ends.
func TestBackgroundRefresher_IntervalFromCompletion(t *testing.T) {
	var starts []time.Time
	var ends []time.Time
	done := make(chan struct{})
	job := func(ctx context.Context) error {
		starts = append(starts, time.Now())
		time.Sleep(30 * time.Millisecond)
		ends = append(ends, time.Now())
		if len(starts) == 2 {
			close(done)
		}
		return nil
	}
	r := NewBackgroundRefresher("test", 20*time.Millisecond, job, discardLogger())

	r.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second run never happened")
	}
	r.Stop()

	require.GreaterOrEqual(t, len(starts), 2)
	assert.GreaterOrEqual(t, starts[1].Sub(ends[0]), 20*time.Millisecond)
}

// TestBackgroundRefresher_TriggerCoalesces tests that bursts collapse into one follow-up run.
func TestBackgroundRefresher_TriggerCoalesces(t *testing.T) {
	r := NewBackgroundRefresher("test", time.Hour, func(ctx context.Context) error { return nil }, discardLogger())

	r.Trigger()
	r.Trigger()
	r.Trigger()

	assert.Len(t, r.trigger, 1)
}

// TestBackgroundRefresher_ErrorsAreReported tests OnComplete and RunOnce.
func TestBackgroundRefresher_ErrorsAreReported(t *testing.T) {
	boom := errors.New("boom")
	r := NewBackgroundRefresher("test", time.Hour, func(ctx context.Context) error { return boom }, discardLogger())
	var observed error
	r.OnComplete = func(err error, d time.Duration) { observed = err }

	err := r.RunOnce(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, observed, boom)
}

// TestBackgroundRefresher_StopCancelsContext tests that Stop interrupts a blocked job.
func TestBackgroundRefresher_StopCancelsContext(t *testing.T) {
	started := make(chan struct{}, 1)
	job := func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
	r := NewBackgroundRefresher("test", time.Hour, job, discardLogger())
	r.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
