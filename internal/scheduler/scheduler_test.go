package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	applog "simbank/internal/log"
	"simbank/internal/services"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestNextHour(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	kolkata := mustLoad(t, "Asia/Kolkata")

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want time.Time
	}{
		{"mid hour", time.Date(2025, 7, 1, 12, 34, 56, 0, la), la, time.Date(2025, 7, 1, 13, 0, 0, 0, la)},
		{"exactly on the hour", time.Date(2025, 7, 1, 12, 0, 0, 0, la), la, time.Date(2025, 7, 1, 13, 0, 0, 0, la)},
		{"crosses midnight", time.Date(2025, 7, 1, 23, 59, 0, 0, la), la, time.Date(2025, 7, 2, 0, 0, 0, 0, la)},
		{"spring forward", time.Date(2025, 3, 9, 1, 30, 0, 0, la), la, time.Date(2025, 3, 9, 3, 0, 0, 0, la)},
		{"half hour offset zone", time.Date(2025, 7, 1, 10, 15, 0, 0, kolkata), kolkata, time.Date(2025, 7, 1, 11, 0, 0, 0, kolkata)},
		{"utc input", time.Date(2025, 7, 1, 19, 30, 0, 0, time.UTC), la, time.Date(2025, 7, 1, 13, 0, 0, 0, la)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextHour(tt.now, tt.loc); !got.Equal(tt.want) {
				t.Fatalf("NextHour = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextHourFallBack(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	// 01:30 PST, the second 01:30 of 2025-11-02.
	now := time.Date(2025, 11, 2, 9, 30, 0, 0, time.UTC)
	got := NextHour(now, la)
	if !got.After(now) {
		t.Fatalf("NextHour(%v) = %v, not after now", now, got)
	}
	if want := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("NextHour = %v, want %v", got, want)
	}
}

type fakeSweeper struct {
	mu     sync.Mutex
	calls  []time.Time
	skip   bool
	err    error
	stopAt int
	cancel context.CancelFunc
}

func (f *fakeSweeper) SweepExclusive(_ context.Context, now time.Time) (services.SweepReport, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	if len(f.calls) == f.stopAt {
		f.cancel()
	}
	return services.SweepReport{Day: now.Format(time.DateOnly)}, f.skip, f.err
}

func newTestScheduler(t *testing.T, sw *fakeSweeper, start time.Time) *Scheduler {
	t.Helper()
	s, err := New(sw, mustLoad(t, "America/Los_Angeles"), applog.New(applog.Config{Output: io.Discard}))
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	clock := start
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	// Fire immediately and move the clock to the requested instant.
	s.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		clock = clock.Add(d)
		fired := clock
		mu.Unlock()
		ch := make(chan time.Time, 1)
		ch <- fired
		return ch
	}
	return s
}

func TestRunSweepsEveryHour(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sw := &fakeSweeper{stopAt: 3, cancel: cancel}
	start := time.Date(2025, 7, 1, 19, 20, 0, 0, time.UTC)
	s := newTestScheduler(t, sw, start)

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sw.calls) != 3 {
		t.Fatalf("got %d sweeps, want 3", len(sw.calls))
	}
	for i, got := range sw.calls {
		want := time.Date(2025, 7, 1, 20+i, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("sweep %d at %v, want %v", i, got, want)
		}
	}
}

func TestRunSurvivesSweepErrors(t *testing.T) {
	for _, sw := range []*fakeSweeper{
		{stopAt: 2, err: errors.New("list users: disk I/O error")},
		{stopAt: 2, skip: true},
	} {
		ctx, cancel := context.WithCancel(context.Background())
		sw.cancel = cancel
		s := newTestScheduler(t, sw, time.Date(2025, 7, 1, 19, 20, 0, 0, time.UTC))
		if err := s.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(sw.calls) != 2 {
			t.Fatalf("got %d sweeps, want 2", len(sw.calls))
		}
		cancel()
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := New(&fakeSweeper{}, time.UTC, applog.New(applog.Config{Output: io.Discard}))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestNewRequiresSweeper(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
