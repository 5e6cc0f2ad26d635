// Package pool implements the worker-pool strategies used by every batch
// operation in the toolkit: a static-partition executor for uniform CPU-bound
// work, a queue-fed executor for uneven or I/O-bound work, and a dynamic
// scheduler for workloads where finishing one task can produce new tasks
// (multi-turn rollouts).
//
// All strategies share the same shape: the caller provides the items, a
// worker count, and a per-item transform. The transform receives the worker
// slot index (0..workers-1) so per-worker side effects (worker-specific
// output files, client connections) are possible. Fixed per-run arguments
// are closure captures on the transform.
//
// A transform error never stops the pool: it is logged with the worker index
// and the item simply yields no result. Result ordering differs per strategy
// and is documented on each; callers that need input ordering must carry an
// index in the item and sort afterwards.
package pool

import "time"

// Func is the per-item transform executed by pool workers.
// worker is the slot index of the goroutine invoking it.
type Func[T, R any] func(worker int, item T) (R, error)

// Executor runs a transform over a fixed item list with bounded concurrency.
// Implementations are strategy values; callers pick one and pass it around.
type Executor[T, R any] interface {
	Run(items []T, workers int, fn Func[T, R]) []R
}

// progressInterval is how often executors emit a progress log line while
// collecting results. Roughly matches an interactive progress bar refresh
// without flooding logs on large batches.
const progressInterval = 2 * time.Second

func clampWorkers(workers, items int) int {
	if workers < 1 {
		workers = 1
	}
	if items > 0 && workers > items {
		workers = items
	}
	return workers
}
