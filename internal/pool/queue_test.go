package pool

import (
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueFedExactlyOneResultPerItem(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		items := make([]int, 250)
		for i := range items {
			items[i] = i
		}

		var calls atomic.Int64
		var exec QueueFed[int, int]
		results := exec.Run(items, workers, func(worker int, item int) (int, error) {
			calls.Add(1)
			return item, nil
		})

		if got := calls.Load(); got != int64(len(items)) {
			t.Fatalf("workers=%d: transform called %d times, want %d", workers, got, len(items))
		}
		if len(results) != len(items) {
			t.Fatalf("workers=%d: got %d results, want %d", workers, len(results), len(items))
		}
		sort.Ints(results)
		for i, r := range results {
			if r != i {
				t.Fatalf("workers=%d: output multiset differs from input at %d", workers, i)
			}
		}
	}
}

func TestQueueFedFailedItemsYieldNoResult(t *testing.T) {
	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}

	var exec QueueFed[int, int]
	results := exec.Run(items, 4, func(worker int, item int) (int, error) {
		if item%4 == 0 {
			return 0, errors.New("boom")
		}
		return item, nil
	})

	// 10 of 40 items fail; the pool must still terminate and return the rest.
	if len(results) != 30 {
		t.Fatalf("got %d results, want 30", len(results))
	}
	for _, r := range results {
		if r%4 == 0 {
			t.Errorf("failed item %d leaked into results", r)
		}
	}
}

func TestQueueFedIdempotentAcrossRuns(t *testing.T) {
	items := []int{5, 1, 9, 3}
	var exec QueueFed[int, int]
	fn := func(worker int, item int) (int, error) { return item * 2, nil }

	first := exec.Run(items, 2, fn)
	second := exec.Run(items, 2, fn)
	sort.Ints(first)
	sort.Ints(second)

	if len(first) != len(second) {
		t.Fatalf("run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("runs differ: %v vs %v", first, second)
		}
	}
}

func TestQueueFedParallelism(t *testing.T) {
	// 1000 items at 1ms each is one second of serial work; with 8 workers
	// the wall-clock must come in well under that.
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	var exec QueueFed[int, int]
	start := time.Now()
	results := exec.Run(items, 8, func(worker int, item int) (int, error) {
		time.Sleep(time.Millisecond)
		return item, nil
	})
	elapsed := time.Since(start)

	if len(results) != 1000 {
		t.Fatalf("got %d results, want 1000", len(results))
	}
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		if seen[r] {
			t.Fatalf("duplicate result %d", r)
		}
		seen[r] = true
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("8 workers took %v for 1s of serial work; parallelism not exercised", elapsed)
	}
}

func TestQueueFedEmptyInput(t *testing.T) {
	var exec QueueFed[int, int]
	if results := exec.Run(nil, 8, func(worker, item int) (int, error) { return item, nil }); len(results) != 0 {
		t.Errorf("got %d results for empty input, want 0", len(results))
	}
}
