package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/stocksight/stocksight/internal/dataset"
)

// ChunkFunc processes one chunk of item series
type ChunkFunc func(ctx context.Context, chunk *dataset.Chunk) error

// Pool runs chunk work with a bounded number of goroutines. The
// semaphore keeps memory proportional to workers * chunk size no
// matter how large the catalog is.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given concurrency
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run pulls every chunk from the iterator and hands it to fn on a
// bounded set of goroutines. The first error cancels the remaining
// work; chunks that already completed keep their effects, so a rerun
// from the iterator checkpoint picks up where the failure stopped.
// progress, when set, is called with the completed chunk count.
func (p *Pool) Run(ctx context.Context, it *dataset.ChunkIterator, fn ChunkFunc, progress func(done int)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	semaphore := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error
	done := 0

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for {
		chunk, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			setErr(err)
			break
		}

		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			setErr(ctx.Err())
		}
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop {
			break
		}

		wg.Add(1)
		go func(chunk *dataset.Chunk) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := fn(ctx, chunk); err != nil {
				setErr(err)
				return
			}
			mu.Lock()
			done++
			completed := done
			mu.Unlock()
			if progress != nil {
				progress(completed)
			}
		}(chunk)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}
