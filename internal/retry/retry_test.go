package retry

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSleep records requested waits without blocking.
type fakeSleep struct {
	waits []time.Duration
}

func (f *fakeSleep) sleep(d time.Duration) { f.waits = append(f.waits, d) }

func newTestExecutor(maxRetries int, base time.Duration) (*Executor, *fakeSleep) {
	fs := &fakeSleep{}
	e := New(maxRetries, base)
	e.Sleep = fs.sleep
	return e, fs
}

func upper(_ context.Context, batch []string) ([]string, error) {
	out := make([]string, len(batch))
	for i, v := range batch {
		out[i] = strings.ToUpper(v)
	}
	return out, nil
}

func TestInvoke_FirstAttemptSucceeds(t *testing.T) {
	e, fs := newTestExecutor(3, time.Second)

	res := e.Invoke(context.Background(), upper, []string{"a", "b"})

	if !res.OK() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !reflect.DeepEqual(res.Values, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", res.Values)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
	if len(fs.waits) != 0 {
		t.Errorf("expected no waits, got %v", fs.waits)
	}
}

func TestInvoke_SucceedsAfterFailures(t *testing.T) {
	for k := 0; k <= 3; k++ {
		e, fs := newTestExecutor(3, time.Second)
		var calls atomic.Int32
		fn := func(ctx context.Context, batch []string) ([]string, error) {
			if int(calls.Add(1)) <= k {
				return nil, errors.New("unavailable")
			}
			return upper(ctx, batch)
		}

		res := e.Invoke(context.Background(), fn, []string{"x"})

		if !res.OK() {
			t.Fatalf("k=%d: unexpected error: %v", k, res.Err)
		}
		if got := int(calls.Load()); got != k+1 {
			t.Errorf("k=%d: expected %d calls, got %d", k, k+1, got)
		}
		if res.Attempts != k+1 {
			t.Errorf("k=%d: expected %d attempts, got %d", k, k+1, res.Attempts)
		}
		if len(fs.waits) != k {
			t.Errorf("k=%d: expected %d waits, got %v", k, k, fs.waits)
		}
	}
}

func TestInvoke_BackoffDoubles(t *testing.T) {
	e, fs := newTestExecutor(3, 2*time.Second)
	fn := func(context.Context, []string) ([]string, error) {
		return nil, errors.New("down")
	}

	res := e.Invoke(context.Background(), fn, []string{"x"})

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if !reflect.DeepEqual(fs.waits, want) {
		t.Errorf("expected waits %v, got %v", want, fs.waits)
	}
	if res.Waited != 14*time.Second {
		t.Errorf("expected total wait 14s, got %v", res.Waited)
	}
}

func TestInvoke_Exhausted(t *testing.T) {
	e, _ := newTestExecutor(3, time.Millisecond)
	cause := errors.New("service unavailable")
	var calls atomic.Int32
	fn := func(context.Context, []string) ([]string, error) {
		calls.Add(1)
		return nil, cause
	}

	res := e.Invoke(context.Background(), fn, []string{"first item", "second"})

	if res.OK() {
		t.Fatal("expected failure")
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("expected 4 calls, got %d", got)
	}
	if res.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", res.Attempts)
	}
	if !errors.Is(res.Err, ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", res.Err)
	}
	if !errors.Is(res.Err, cause) {
		t.Errorf("expected last cause to be wrapped, got %v", res.Err)
	}
	msg := res.Err.Error()
	if !strings.Contains(msg, `"first item"`) || !strings.Contains(msg, "batch size 2") {
		t.Errorf("expected error to describe the batch, got %q", msg)
	}
}

func TestInvoke_ZeroRetries(t *testing.T) {
	e, fs := newTestExecutor(0, time.Second)
	var calls atomic.Int32
	fn := func(context.Context, []string) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("nope")
	}

	res := e.Invoke(context.Background(), fn, []string{"x"})

	if res.OK() {
		t.Fatal("expected failure")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
	if len(fs.waits) != 0 {
		t.Errorf("expected no waits, got %v", fs.waits)
	}
}

func TestInvoke_CountMismatchRetried(t *testing.T) {
	e, _ := newTestExecutor(3, time.Millisecond)
	var calls atomic.Int32
	fn := func(ctx context.Context, batch []string) ([]string, error) {
		if calls.Add(1) == 1 {
			return []string{"only one"}, nil
		}
		return upper(ctx, batch)
	}

	res := e.Invoke(context.Background(), fn, []string{"a", "b"})

	if !res.OK() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestInvoke_CountMismatchExhausted(t *testing.T) {
	e, _ := newTestExecutor(1, time.Millisecond)
	fn := func(context.Context, []string) ([]string, error) {
		return []string{"a", "b", "c"}, nil
	}

	res := e.Invoke(context.Background(), fn, []string{"a", "b"})

	if !errors.Is(res.Err, ErrCountMismatch) {
		t.Errorf("expected ErrCountMismatch, got %v", res.Err)
	}
	if !errors.Is(res.Err, ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", res.Err)
	}
}

func TestInvoke_BlankFallback(t *testing.T) {
	e, _ := newTestExecutor(0, 0)
	fn := func(context.Context, []string) ([]string, error) {
		return []string{"Hola", "  ", ""}, nil
	}

	res := e.Invoke(context.Background(), fn, []string{"Hello", "World", "Again"})

	want := []string{"Hola", "World", "Again"}
	if !reflect.DeepEqual(res.Values, want) {
		t.Errorf("expected %v, got %v", want, res.Values)
	}
}

func TestInvoke_ExcerptTruncated(t *testing.T) {
	e, _ := newTestExecutor(0, 0)
	long := strings.Repeat("é", 200)
	fn := func(context.Context, []string) ([]string, error) {
		return nil, errors.New("boom")
	}

	res := e.Invoke(context.Background(), fn, []string{long})

	if strings.Contains(res.Err.Error(), strings.Repeat("é", 81)) {
		t.Error("expected the first item to be truncated in the error")
	}
	if !strings.Contains(res.Err.Error(), strings.Repeat("é", 80)) {
		t.Error("expected 80 runes of the first item in the error")
	}
}

func TestBackoff(t *testing.T) {
	e := New(5, 500*time.Millisecond)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Saturates(t *testing.T) {
	e := New(DefaultMaxRetries, 2*time.Second)
	maxWait := time.Duration(math.MaxInt64)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{33, 2 * time.Second << 32},
		{34, maxWait},
		{63, maxWait},
		{64, maxWait},
		{200, maxWait},
	}
	for _, tt := range tests {
		if got := e.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	if got := New(1, 0).Backoff(40); got != 0 {
		t.Errorf("expected zero base to give no wait, got %v", got)
	}
}
