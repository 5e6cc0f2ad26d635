package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one unit of work for the Dynamic scheduler. ItemID groups the
// turns of one logical item; Turn is the ordinal of this round. The payload
// carries whatever state the transform needs to produce the next turn.
//
// The JSON shape is stable so tasks can cross process boundaries.
type Task[S any] struct {
	TaskID  string `json:"task_id"`
	ItemID  string `json:"item_id"`
	Turn    int    `json:"turn"`
	Payload S      `json:"payload"`
}

// TaskResult is the outcome of one task. Result is nil when the task was
// processed but produced no output. NextTasks are enqueued, in order, after
// this result is committed, which is what preserves per-item turn ordering.
type TaskResult[S, R any] struct {
	TaskID    string    `json:"task_id"`
	ItemID    string    `json:"item_id"`
	Turn      int       `json:"turn"`
	Result    *R        `json:"result"`
	NextTasks []Task[S] `json:"next_tasks"`
}

// TaskFunc is the per-task transform for the Dynamic scheduler.
type TaskFunc[S, R any] func(worker int, task Task[S]) (TaskResult[S, R], error)

// Dynamic schedules workloads whose total task count is unknown up front:
// completing a task may enqueue new tasks. Termination is exact, not
// heuristic: an in-flight counter covers every task from enqueue until its
// children have been enqueued, so the queue closes only when the pool is
// truly quiescent and no worker can still produce work.
type Dynamic[S, R any] struct{}

// taskQueue is an unbounded FIFO guarded by a condition variable. Channels
// are not used here because a worker must be able to enqueue children while
// every other worker is blocked popping, without any bound on depth.
type taskQueue[S any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []Task[S]
	inflight int
	closed   bool
}

func newTaskQueue[S any](initial []Task[S]) *taskQueue[S] {
	q := &taskQueue[S]{}
	q.cond = sync.NewCond(&q.mu)
	q.pending = append(q.pending, initial...)
	q.inflight = len(initial)
	return q
}

// push enqueues child tasks. Must be called before done() for the parent so
// the in-flight count can never touch zero while children are pending.
func (q *taskQueue[S]) push(tasks []Task[S]) {
	if len(tasks) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, tasks...)
	q.inflight += len(tasks)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until a task is available or the queue is closed.
func (q *taskQueue[S]) pop() (Task[S], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		var zero Task[S]
		return zero, false
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	return task, true
}

// done marks one task fully finished (result committed, children enqueued).
// The last done closes the queue and releases every blocked worker.
func (q *taskQueue[S]) done() {
	q.mu.Lock()
	q.inflight--
	if q.inflight == 0 {
		q.closed = true
	}
	closed := q.closed
	q.mu.Unlock()
	if closed {
		q.cond.Broadcast()
	}
}

// Run processes the initial tasks and everything they transitively spawn,
// returning the flat result list in completion order.
func (Dynamic[S, R]) Run(initial []Task[S], workers int, fn TaskFunc[S, R]) []TaskResult[S, R] {
	if len(initial) == 0 {
		log.Info().Msg("no initial tasks to process")
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	log.Debug().Int("workers", workers).Int("initial_tasks", len(initial)).Msg("dynamic scheduler run")

	queue := newTaskQueue(initial)
	var completed atomic.Int64
	var wg sync.WaitGroup

	resultsMu := sync.Mutex{}
	var results []TaskResult[S, R]

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			processed := 0
			for {
				task, ok := queue.pop()
				if !ok {
					break
				}
				res, err := fn(w, task)
				if err != nil {
					log.Error().Err(err).
						Int("worker", w).
						Str("task_id", task.TaskID).
						Str("item_id", task.ItemID).
						Int("turn", task.Turn).
						Msg("task failed")
				} else {
					resultsMu.Lock()
					results = append(results, res)
					resultsMu.Unlock()
					// Children become visible only after the result
					// is committed.
					queue.push(res.NextTasks)
				}
				queue.done()
				processed++
				completed.Add(1)
			}
			log.Debug().Int("worker", w).Int("processed", processed).Msg("worker finished")
		}(w)
	}

	// Progress monitor; stops once all workers have exited.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				log.Info().Int64("completed", completed.Load()).Msg("processing turns")
			}
		}
	}()

	wg.Wait()
	close(stop)

	log.Info().
		Int64("completed", completed.Load()).
		Int("results", len(results)).
		Msg("all workers finished")
	return results
}

// ReduceHighestTurn keeps, for every item, only the result with the highest
// turn. Intermediate turns are working state, not final answers. Items come
// back in first-seen order of the input slice.
func ReduceHighestTurn[S, R any](results []TaskResult[S, R]) []TaskResult[S, R] {
	best := make(map[string]int, len(results))
	var order []string
	for i, res := range results {
		at, seen := best[res.ItemID]
		if !seen {
			best[res.ItemID] = i
			order = append(order, res.ItemID)
			continue
		}
		if res.Turn > results[at].Turn {
			best[res.ItemID] = i
		}
	}
	reduced := make([]TaskResult[S, R], 0, len(order))
	for _, id := range order {
		reduced = append(reduced, results[best[id]])
	}
	return reduced
}
