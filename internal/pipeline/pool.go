package pipeline

import (
	"context"
	"runtime"
	"sync"
)

// Map runs fn over every item with at most workers concurrent executions
// and returns the outputs positionally aligned with the inputs. Items must
// be independent: fn sees one item and shares no mutable state. workers <= 1
// degenerates to a sequential loop with identical results.
func Map[I, O any](ctx context.Context, items []I, workers int, fn func(context.Context, I) O) []O {
	out := make([]O, len(items))
	if len(items) == 0 {
		return out
	}

	if max := runtime.GOMAXPROCS(0); workers > max {
		workers = max
	}
	if workers <= 1 {
		for i, item := range items {
			out[i] = fn(ctx, item)
		}
		return out
	}
	if workers > len(items) {
		workers = len(items)
	}

	type job struct {
		index int
		item  I
	}
	jobs := make(chan job, len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				out[j.index] = fn(ctx, j.item)
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)
	wg.Wait()

	return out
}
