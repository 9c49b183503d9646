// Package task runs best-effort background work whose result is delivered
// through callbacks instead of being awaited by the caller.
package task

import (
	"context"
	"fmt"
	"sync"
)

// Task is the handle of a single asynchronous call.
type Task[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	value     T
	err       error
	finished  bool
	onSuccess []func(T)
	onError   []func(error)
}

// Go starts fn on its own goroutine. A panic inside fn is converted into
// the task's error.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		var (
			v   T
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task panicked: %v", r)
				}
			}()
			v, err = fn(ctx)
		}()
		t.complete(v, err)
	}()
	return t
}

// Done returns an already finished task. Useful where a step is skipped.
func Done[T any](v T, err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	t.complete(v, err)
	return t
}

func (t *Task[T]) complete(v T, err error) {
	t.mu.Lock()
	t.value, t.err, t.finished = v, err, true
	success, failure := t.onSuccess, t.onError
	t.onSuccess, t.onError = nil, nil
	t.mu.Unlock()

	if err != nil {
		for _, cb := range failure {
			cb(err)
		}
	} else {
		for _, cb := range success {
			cb(v)
		}
	}
	close(t.done)
}

// OnSuccess registers cb to run with the result. If the task already
// succeeded cb runs immediately on the calling goroutine.
func (t *Task[T]) OnSuccess(cb func(T)) *Task[T] {
	t.mu.Lock()
	if !t.finished {
		t.onSuccess = append(t.onSuccess, cb)
		t.mu.Unlock()
		return t
	}
	v, err := t.value, t.err
	t.mu.Unlock()
	if err == nil {
		cb(v)
	}
	return t
}

// OnError registers cb to run with the failure. If the task already
// failed cb runs immediately on the calling goroutine.
func (t *Task[T]) OnError(cb func(error)) *Task[T] {
	t.mu.Lock()
	if !t.finished {
		t.onError = append(t.onError, cb)
		t.mu.Unlock()
		return t
	}
	err := t.err
	t.mu.Unlock()
	if err != nil {
		cb(err)
	}
	return t
}

// Done is closed once the task and all its callbacks have finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
