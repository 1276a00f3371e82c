package syncer

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRunBoundedRespectsLimit(t *testing.T) {
	const (
		limit = 3
		tasks = 20
	)

	var (
		mu      sync.Mutex
		running int
		peak    int
	)

	inputs := make([]int, tasks)
	for i := range inputs {
		inputs[i] = i
	}

	runBounded(context.Background(), inputs, limit, func(_ context.Context, n int) int {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()

		return n
	})

	if peak > limit {
		t.Fatalf("observed %d concurrent workers, limit is %d", peak, limit)
	}
	if peak == 0 {
		t.Fatalf("expected at least one worker to run")
	}
}

func TestRunBoundedPreservesOrder(t *testing.T) {
	inputs := []string{"a", "b", "c", "d", "e"}

	results := runBounded(context.Background(), inputs, 2, func(_ context.Context, s string) string {
		return s + "!"
	})

	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}

	for i, in := range inputs {
		if results[i] != in+"!" {
			t.Fatalf("result %d: expected %q, got %q", i, in+"!", results[i])
		}
	}
}

func TestRunBoundedZeroLimitStillRuns(t *testing.T) {
	results := runBounded(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, n int) int {
		return n * 2
	})

	if len(results) != 3 || results[0] != 2 || results[2] != 6 {
		t.Fatalf("unexpected results: %v", results)
	}
}
