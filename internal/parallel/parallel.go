// Package parallel runs index-addressed work across a bounded number of
// goroutines while keeping results in input order.
package parallel

import (
	"golang.org/x/sync/errgroup"
)

// MinBatch is the smallest input worth splitting across goroutines.
const MinBatch = 256

// Map evaluates fn for every index in [0, n) and returns the results in
// index order. Work is split into contiguous chunks, one per worker. When
// several indexes fail, the error of the lowest index is returned, which is
// the error a sequential loop would have stopped at.
func Map[T any](n, workers int, fn func(i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}

	if workers <= 1 || n < MinBatch {
		for i := 0; i < n; i++ {
			v, err := fn(i)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	errs := make([]error, workers)

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				v, err := fn(i)
				if err != nil {
					errs[w] = err
					return nil
				}
				out[i] = v
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
