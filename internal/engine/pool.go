/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package engine

import (
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many fiber steps may run concurrently. A fiber that
// suspends releases its slot back to the pool; resuming it re-acquires one,
// so OS threads are never held idle on a pending watch or timer.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool allowing up to n concurrent step executions.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

// Submit runs fn once a slot is available. It returns immediately: a new
// goroutine waits for the slot and then runs fn, so the caller never blocks
// and no slot is held while waiting.
func (p *Pool) Submit(fn func()) {
	go func() {
		_ = p.sem.Acquire(noopCtx{}, 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// noopCtx is a context.Context that is never done, used because Acquire
// requires one but the pool itself has no cancellation concept independent
// of the fiber's own context (which is checked inside the fiber loop, not
// here).
type noopCtx struct{}

func (noopCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (noopCtx) Done() <-chan struct{}       { return nil }
func (noopCtx) Err() error                  { return nil }
func (noopCtx) Value(key any) any           { return nil }
