package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"gatehouse/internal/sentinel"
)

// ConcurrentResult tallies outcomes of RunConcurrent.
type ConcurrentResult struct {
	Successes int32
	Rejected  int32
	Conflicts int32
	Errors    int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Rejected + r.Conflicts + r.Errors
}

// ErrRejected is returned by test callbacks for an expected policy denial
// (rate limited, invalid token) so it is tallied apart from real failures.
var ErrRejected = errors.New("rejected")

// RunConcurrent runs fn on n goroutines and tallies the outcomes.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, rejected, conflicts, errs atomic.Int32

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrRejected):
				rejected.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Rejected:  rejected.Load(),
		Conflicts: conflicts.Load(),
		Errors:    errs.Load(),
	}
}
