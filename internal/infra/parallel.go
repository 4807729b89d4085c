// Package infra provides bounded-concurrency helpers shared by the pipeline stages.
package infra

import (
	"context"
	"sync"
)

// ParallelProcess runs processor over items with at most workers goroutines in flight.
// Results and errors are returned in input order; each goroutine writes only its own slot.
func ParallelProcess[T, R any](ctx context.Context, items []T, workers int, processor func(context.Context, int, T) (R, error)) ([]R, []error) {
	if workers <= 0 {
		workers = 1
	}
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, data T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}

			result, err := processor(ctx, idx, data)
			results[idx] = result
			errs[idx] = err
		}(i, item)
	}

	wg.Wait()
	return results, errs
}

// Batch groups items into batches for processing.
type Batch[T any] struct {
	Items []T
	// Index is the batch number, starting at 0.
	Index int
	// Offset is the position of the first item in the original slice.
	Offset int
}

// BatchItems divides items into batches of the specified size.
func BatchItems[T any](items []T, batchSize int) []Batch[T] {
	if batchSize <= 0 {
		batchSize = 1
	}

	var batches []Batch[T]
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, Batch[T]{
			Items:  items[i:end],
			Index:  i / batchSize,
			Offset: i,
		})
	}
	return batches
}

// FirstError returns the first non-nil error in errs.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
