// Package concurrent provides the "await all N in parallel" primitive
// used to fire off the independent reads at the start of a pass (and
// the distinct-miss lookups of a bulk travel-time fetch) and join them
// before the next serial step. It is built on goroutines and
// sync.WaitGroup rather than an errgroup-style helper library, since
// nothing else in this codebase's lineage pulls one in for this.
package concurrent

import "sync"

// Task is one unit of concurrent work.
type Task func() error

// RunAll runs every task in its own goroutine and blocks until all
// have returned, preserving the input order in the returned slice: the
// error at index i corresponds to tasks[i], or nil if it succeeded.
func RunAll(tasks ...Task) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for i, task := range tasks {
		go func(i int, task Task) {
			defer wg.Done()
			errs[i] = task()
		}(i, task)
	}

	wg.Wait()
	return errs
}

// FirstError returns the first non-nil error in errs, or nil if none.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
