// Package debounce runs a function once activity has been quiet for a delay.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Task coalesces triggers into a single delayed call of fn. Each Trigger
// restarts the delay. At most one call of fn runs at a time.
type Task struct {
	delay time.Duration
	fn    func(ctx context.Context) error
	onErr func(error)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool

	run sync.Mutex
}

// New returns a Task that calls fn delay after the last Trigger. Errors from
// timer-driven runs go to onErr, which may be nil.
func New(delay time.Duration, fn func(ctx context.Context) error, onErr func(error)) *Task {
	return &Task{delay: delay, fn: fn, onErr: onErr}
}

// Trigger schedules fn, restarting the delay if a call is already pending.
func (t *Task) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.pending = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, t.fire)
}

// Pending reports whether a call is scheduled but has not started.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Flush runs fn now if a call is pending and waits for it.
func (t *Task) Flush(ctx context.Context) error {
	if !t.take() {
		// a timer-driven run may be in flight; wait for it
		t.run.Lock()
		t.run.Unlock()
		return nil
	}
	return t.exec(ctx)
}

// Cancel drops a pending call without stopping the task.
func (t *Task) Cancel() {
	t.take()
}

// Stop cancels any pending call. Later Triggers are ignored.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Task) fire() {
	if !t.take() {
		return
	}
	if err := t.exec(context.Background()); err != nil && t.onErr != nil {
		t.onErr(err)
	}
}

func (t *Task) take() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pending {
		return false
	}
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return true
}

func (t *Task) exec(ctx context.Context) error {
	t.run.Lock()
	defer t.run.Unlock()
	return t.fn(ctx)
}
