package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fast(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestDo_FirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast(3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 1 {
		t.Fatalf("got %q, %v after %d calls", got, err, calls)
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	var attempts []int
	p := fast(3)
	p.OnRetry = func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }

	calls := 0
	err := DoErr(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 2}, attempts); diff != "" {
		t.Errorf("retries (-want +got):\n%s", diff)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := DoErr(context.Background(), fast(4), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 4 {
		t.Fatalf("err %v after %d calls", err, calls)
	}
}

func TestDo_NotRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	p := fast(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := DoErr(context.Background(), p, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("err %v after %d calls", err, calls)
	}
}

func TestDo_ContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := Policy{Attempts: 100, Initial: 50 * time.Millisecond}

	calls := 0
	err := DoErr(ctx, p, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestDo_CanceledIsNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := DoErr(context.Background(), fast(3), func(context.Context) error {
		calls++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err %v after %d calls", err, calls)
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2}
	want := []time.Duration{10, 20, 40, 50, 50}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w*time.Millisecond {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w*time.Millisecond)
		}
	}

	p.Jitter = 0.5
	for i := 0; i < 20; i++ {
		if got := p.Backoff(1); got < 5*time.Millisecond || got > 15*time.Millisecond {
			t.Fatalf("jittered backoff %v out of range", got)
		}
	}
}
