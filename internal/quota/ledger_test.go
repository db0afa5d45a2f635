package quota

import (
	"context"
	"sync"
	"testing"

	"simbank/internal/core"
	"simbank/internal/generator"
	"simbank/internal/store/memory"
)

var ref = core.AccountRef{UserID: "alice", Type: core.Checking}

func newLedger(t *testing.T, cfg Config) (*Ledger, *memory.Store) {
	t.Helper()
	st := memory.New()
	l, err := NewLedger(st, cfg, generator.NewRand(42))
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l, st
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"fixed target", Config{MinScheduled: 4, MaxScheduled: 4, ManualCap: 1}, false},
		{"zero everything", Config{}, false},
		{"inverted range", Config{MinScheduled: 5, MaxScheduled: 3, ManualCap: 5}, true},
		{"negative min", Config{MinScheduled: -1, MaxScheduled: 3, ManualCap: 5}, true},
		{"negative cap", Config{MinScheduled: 1, MaxScheduled: 3, ManualCap: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduledTargetWithinRange(t *testing.T) {
	l, st := newLedger(t, DefaultConfig())
	ctx := context.Background()
	for d := 1; d <= 28; d++ {
		day := "2025-02-" + twoDigits(d)
		granted := 0
		for i := 0; i < 10; i++ {
			ok, err := l.ConsumeScheduled(ctx, ref, day)
			if err != nil {
				t.Fatalf("consume: %v", err)
			}
			if ok {
				granted++
			}
		}
		q, _ := st.GetScheduled(ctx, ref, day)
		if q.Target < 3 || q.Target > 5 {
			t.Fatalf("day %s target %d outside [3,5]", day, q.Target)
		}
		if granted != q.Target || q.Generated != q.Target {
			t.Fatalf("day %s granted %d, record %+v", day, granted, q)
		}
	}
}

func TestScheduledExhaustedDayCreatesNothing(t *testing.T) {
	l, _ := newLedger(t, Config{MinScheduled: 3, MaxScheduled: 3, ManualCap: 5})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if ok, _ := l.ConsumeScheduled(ctx, ref, "2025-03-01"); !ok {
			t.Fatalf("slot %d refused", i)
		}
	}
	for i := 0; i < 2; i++ {
		if ok, _ := l.ConsumeScheduled(ctx, ref, "2025-03-01"); ok {
			t.Fatal("exhausted day granted a slot")
		}
	}
}

func TestManualRemainingCountsDown(t *testing.T) {
	l, _ := newLedger(t, DefaultConfig())
	ctx := context.Background()
	for want := 4; want >= 0; want-- {
		res, err := l.ConsumeManual(ctx, ref, "2025-03-01")
		if err != nil || !res.Allowed {
			t.Fatalf("consume: %+v %v", res, err)
		}
		if res.Remaining() != want {
			t.Fatalf("remaining = %d, want %d", res.Remaining(), want)
		}
	}
	res, err := l.ConsumeManual(ctx, ref, "2025-03-01")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.Allowed || res.Used != 5 || res.Cap != 5 || res.Remaining() != 0 {
		t.Fatalf("sixth call: %+v", res)
	}
}

func TestManualCapFixedAtCreation(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	small, _ := NewLedger(st, Config{MinScheduled: 1, MaxScheduled: 1, ManualCap: 1}, generator.NewRand(1))
	big, _ := NewLedger(st, Config{MinScheduled: 1, MaxScheduled: 1, ManualCap: 10}, generator.NewRand(1))

	if res, _ := small.ConsumeManual(ctx, ref, "2025-03-01"); !res.Allowed {
		t.Fatal("first manual refused")
	}
	if res, _ := big.ConsumeManual(ctx, ref, "2025-03-01"); res.Allowed || res.Cap != 1 {
		t.Fatalf("raised cap applied to existing day: %+v", res)
	}
	if res, _ := big.ConsumeManual(ctx, ref, "2025-03-02"); !res.Allowed || res.Cap != 10 {
		t.Fatalf("new day should take the new cap: %+v", res)
	}
}

func TestConcurrentManualConsume(t *testing.T) {
	tests := []struct{ callers, cap int }{
		{callers: 20, cap: 5},
		{callers: 3, cap: 5},
		{callers: 50, cap: 0},
	}
	for _, tt := range tests {
		l, _ := newLedger(t, Config{MinScheduled: 1, MaxScheduled: 1, ManualCap: tt.cap})
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < tt.callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := l.ConsumeManual(context.Background(), ref, "2025-03-01")
				if err != nil {
					t.Errorf("consume: %v", err)
					return
				}
				if res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if want := min(tt.callers, tt.cap); allowed != want {
			t.Errorf("callers=%d cap=%d: allowed %d, want %d", tt.callers, tt.cap, allowed, want)
		}
	}
}

func TestReleaseReturnsSlot(t *testing.T) {
	l, _ := newLedger(t, Config{MinScheduled: 1, MaxScheduled: 1, ManualCap: 1})
	ctx := context.Background()
	day := "2025-03-01"

	if ok, _ := l.ConsumeScheduled(ctx, ref, day); !ok {
		t.Fatal("scheduled refused")
	}
	if err := l.ReleaseScheduled(ctx, ref, day); err != nil {
		t.Fatalf("release scheduled: %v", err)
	}
	if ok, _ := l.ConsumeScheduled(ctx, ref, day); !ok {
		t.Fatal("released scheduled slot not reusable")
	}

	if res, _ := l.ConsumeManual(ctx, ref, day); !res.Allowed {
		t.Fatal("manual refused")
	}
	if err := l.ReleaseManual(ctx, ref, day); err != nil {
		t.Fatalf("release manual: %v", err)
	}
	usage, err := l.ManualUsage(ctx, ref, day)
	if err != nil || usage.Used != 0 || usage.Remaining() != 1 {
		t.Fatalf("usage after release: %+v %v", usage, err)
	}
}

func TestManualUsageOfUntouchedDay(t *testing.T) {
	l, _ := newLedger(t, DefaultConfig())
	usage, err := l.ManualUsage(context.Background(), ref, "2030-01-01")
	if err != nil {
		t.Fatalf("ManualUsage: %v", err)
	}
	if usage.Used != 0 || usage.Cap != DefaultManualCap {
		t.Fatalf("usage = %+v", usage)
	}
}

func twoDigits(n int) string {
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
