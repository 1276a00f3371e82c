package syncer

import (
	"context"
	"sync"
)

// runBounded runs worker over every task with at most limit invocations
// outstanding at once. Results are aligned with input order, and one task's
// failure never short-circuits the batch: workers report their own errors
// inside R.
func runBounded[T, R any](
	ctx context.Context,
	tasks []T,
	limit int,
	worker func(context.Context, T) R,
) []R {
	if limit <= 0 {
		limit = 1
	}

	results := make([]R, len(tasks))

	semCh := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i := range tasks {
		wg.Add(1)
		semCh <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-semCh }()

			results[idx] = worker(ctx, tasks[idx])
		}(i)
	}

	wg.Wait()

	return results
}
