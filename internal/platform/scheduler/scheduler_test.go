package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu      sync.Mutex
	calls   int32
	running int32
	maxSeen int32
	lastNow time.Time
	block   chan struct{}
	entered chan struct{}
	err     error
}

func (f *fakeSweeper) Sweep(ctx context.Context, now time.Time) (*domain.SweepResult, error) {
	atomic.AddInt32(&f.calls, 1)
	cur := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)

	f.mu.Lock()
	f.lastNow = now
	if cur > f.maxSeen {
		f.maxSeen = cur
	}
	f.mu.Unlock()

	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return &domain.SweepResult{}, ctx.Err()
		}
	}
	return &domain.SweepResult{Claimed: 1, Emitted: 1}, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	_, err := New("every tuesday", &fakeSweeper{}, discardLogger())
	assert.Error(t, err)
}

func TestNew_AcceptsStandardAndDescriptorSchedules(t *testing.T) {
	for _, spec := range []string{"0 2 * * *", "*/30 * * * * *", "@daily", "@every 1h"} {
		_, err := New(spec, &fakeSweeper{}, discardLogger())
		assert.NoError(t, err, spec)
	}
}

func TestRunOnce_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{}
	s, err := New("@daily", sweeper, discardLogger(), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Emitted)
	assert.Equal(t, fixed, sweeper.lastNow)
}

func TestRunOnce_TimeoutCancelsSweep(t *testing.T) {
	sweeper := &fakeSweeper{block: make(chan struct{})}
	s, err := New("@daily", sweeper, discardLogger(), WithRunTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunOnce_PropagatesSweepError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("claim failed")}
	s, err := New("@daily", sweeper, discardLogger())
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "claim failed")
}

func TestScheduler_SkipsOverlappingRunsAndStopWaits(t *testing.T) {
	sweeper := &fakeSweeper{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, err := New("@every 1s", sweeper, discardLogger())
	require.NoError(t, err)

	s.Start()

	select {
	case <-sweeper.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled sweep never started")
	}

	// Let the schedule fire again while the first run is still blocked.
	time.Sleep(1200 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sweep was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(sweeper.block)
	require.NoError(t, <-stopped)

	assert.Equal(t, int32(1), sweeper.maxSeen)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sweeper.calls))
}

func TestScheduler_StopHonorsContext(t *testing.T) {
	sweeper := &fakeSweeper{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	defer close(sweeper.block)
	s, err := New("@every 1s", sweeper, discardLogger())
	require.NoError(t, err)

	s.Start()
	select {
	case <-sweeper.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled sweep never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
