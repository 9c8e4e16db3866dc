package concurrent

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunAll_AllSucceed(t *testing.T) {
	var counter int64
	tasks := make([]Task, 5)
	for i := range tasks {
		tasks[i] = func() error {
			atomic.AddInt64(&counter, 1)
			return nil
		}
	}

	errs := RunAll(tasks...)

	assert.Len(t, errs, 5)
	assert.Nil(t, FirstError(errs))
	assert.EqualValues(t, 5, counter)
}

func TestRunAll_PreservesOrderOfErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	errs := RunAll(
		func() error { return errA },
		func() error { return nil },
		func() error { return errC },
	)

	assert.Equal(t, errA, errs[0])
	assert.Nil(t, errs[1])
	assert.Equal(t, errC, errs[2])
	assert.Equal(t, errA, FirstError(errs))
}

func TestRunAll_Empty(t *testing.T) {
	errs := RunAll()
	assert.Empty(t, errs)
	assert.Nil(t, FirstError(errs))
}
