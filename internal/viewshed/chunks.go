package viewshed

import (
	"fmt"
	"runtime"
	"sync"
)

// Span is a half-open index range [Start, End) of rows or ray directions
// assigned to one worker task.
type Span struct {
	Start, End int
}

// ChunkSize balances worker count against per-task overhead: roughly four
// tasks per worker, never below 64 units, matching the row-chunking scheme
// the direct engine was tuned with.
func ChunkSize(n, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	chunk := n / (workers * 4)
	if chunk < 64 {
		chunk = 64
	}
	return chunk
}

// PartitionSpans splits [0, n) into contiguous spans of at most chunk units.
// Spans are disjoint by construction, which is what makes lock-free output
// writes safe.
func PartitionSpans(n, chunk int) []Span {
	if n <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = n
	}
	spans := make([]Span, 0, (n+chunk-1)/chunk)
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

// normWorkers resolves the worker count, defaulting to the logical core
// count.
func normWorkers(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

// RunSpans executes fn over every span on the given number of workers and
// returns the first task error. Any failure is fatal to the whole run: the
// remaining queue is drained without producing partial results, so a
// corrupted merge can never be mistaken for output.
func RunSpans(spans []Span, workers int, fn func(Span) error) error {
	workers = normWorkers(workers)
	if len(spans) == 0 {
		return nil
	}
	if workers > len(spans) {
		workers = len(spans)
	}

	jobs := make(chan Span)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for span := range jobs {
				if errs[w] != nil {
					continue // drain after failure
				}
				if err := fn(span); err != nil {
					errs[w] = err
				}
			}
		}(w)
	}
	for _, s := range spans {
		jobs <- s
	}
	close(jobs)
	wg.Wait()

	for w, err := range errs {
		if err != nil {
			return fmt.Errorf("worker %d: %w", w, err)
		}
	}
	return nil
}
