package pool

import (
	"time"

	"github.com/rs/zerolog/log"
)

// QueueFed feeds all items through a single shared queue that every worker
// pulls from, so slow items never stall the rest of the batch. The feeder
// enqueues every item followed by one termination marker per worker; a
// worker that takes a marker stops without needing to know the state of its
// siblings.
//
// Results arrive in completion order, not input order. Every item produces
// exactly one completion signal: items whose transform fails are logged and
// counted but contribute no result value, so the returned slice may be
// shorter than the input.
//
// The original system kept separate process and thread flavors of this pool
// for CPU-bound versus I/O-bound transforms; goroutines cover both, so there
// is a single implementation.
type QueueFed[T, R any] struct{}

type completion[R any] struct {
	value R
	ok    bool
}

// Run executes fn over every item and returns the results in completion order.
func (QueueFed[T, R]) Run(items []T, workers int, fn Func[T, R]) []R {
	if len(items) == 0 {
		return nil
	}
	workers = clampWorkers(workers, len(items))
	log.Debug().Int("workers", workers).Int("items", len(items)).Msg("queue-fed run")

	type envelope struct {
		item T
		stop bool
	}

	feed := make(chan envelope)
	done := make(chan completion[R], workers)

	// Feeder goroutine so the caller is never blocked enqueueing; the
	// markers go in last and each stops exactly one worker.
	go func() {
		for _, item := range items {
			feed <- envelope{item: item}
		}
		for w := 0; w < workers; w++ {
			feed <- envelope{stop: true}
		}
	}()

	for w := 0; w < workers; w++ {
		go func(w int) {
			for env := range feed {
				if env.stop {
					return
				}
				r, err := fn(w, env.item)
				if err != nil {
					log.Error().Err(err).Int("worker", w).Msg("transform failed")
					done <- completion[R]{ok: false}
					continue
				}
				done <- completion[R]{value: r, ok: true}
			}
		}(w)
	}

	// Exactly one completion per item, which also drives progress.
	results := make([]R, 0, len(items))
	lastLog := time.Now()
	for i := 0; i < len(items); i++ {
		c := <-done
		if c.ok {
			results = append(results, c.value)
		}
		if time.Since(lastLog) >= progressInterval {
			log.Info().Int("done", i+1).Int("total", len(items)).Msg("processing")
			lastLog = time.Now()
		}
	}
	return results
}
