package pool

import (
	"github.com/rs/zerolog/log"
)

// StaticPartition distributes items across workers up front by round-robin
// index assignment (item i goes to worker i mod workers). Round-robin is
// used instead of contiguous chunks so that any cost skew correlated with
// the original ordering is spread evenly across workers.
//
// Each worker processes its whole slice sequentially and returns its
// sub-slice over a dedicated channel; Run concatenates the sub-slices in
// worker-index order. This is the cheapest strategy per item and suits
// uniform, CPU-bound transforms.
type StaticPartition[T, R any] struct{}

// SplitRoundRobin splits items into workers sub-slices by round-robin index
// assignment. Exposed for callers that want the partitioning without the pool.
func SplitRoundRobin[T any](items []T, workers int) [][]T {
	if workers < 1 {
		workers = 1
	}
	parts := make([][]T, workers)
	for i, item := range items {
		w := i % workers
		parts[w] = append(parts[w], item)
	}
	return parts
}

// Run executes fn over every item and returns the results concatenated in
// worker-index order (not input order).
func (StaticPartition[T, R]) Run(items []T, workers int, fn Func[T, R]) []R {
	if len(items) == 0 {
		return nil
	}
	workers = clampWorkers(workers, len(items))
	log.Debug().Int("workers", workers).Int("items", len(items)).Msg("static partition run")

	parts := SplitRoundRobin(items, workers)
	channels := make([]chan []R, workers)
	for w := range channels {
		channels[w] = make(chan []R, 1)
	}

	for w := 0; w < workers; w++ {
		go func(w int) {
			sub := make([]R, 0, len(parts[w]))
			for _, item := range parts[w] {
				r, err := fn(w, item)
				if err != nil {
					log.Error().Err(err).Int("worker", w).Msg("transform failed")
					continue
				}
				sub = append(sub, r)
			}
			channels[w] <- sub
		}(w)
	}

	results := make([]R, 0, len(items))
	for w := 0; w < workers; w++ {
		results = append(results, <-channels[w]...)
	}
	return results
}
