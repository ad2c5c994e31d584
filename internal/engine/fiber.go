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
	"context"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// CompletionStatus reports how a Fiber ended.
type CompletionStatus int

const (
	Completed CompletionStatus = iota
	Cancelled
	Threw
)

// CompletionCallback is notified exactly once when a Fiber ends. Steps never
// terminate the process on error; every failure arrives here.
type CompletionCallback interface {
	OnCompletion(packet *Packet)
	OnCancelled(packet *Packet)
	OnThrowable(packet *Packet, err error)
}

// CallbackFuncs adapts three plain functions to CompletionCallback. Any nil
// func is treated as a no-op, which test code frequently relies on.
type CallbackFuncs struct {
	Completion func(packet *Packet)
	Cancel     func(packet *Packet)
	Throwable  func(packet *Packet, err error)
}

func (c CallbackFuncs) OnCompletion(packet *Packet) {
	if c.Completion != nil {
		c.Completion(packet)
	}
}

func (c CallbackFuncs) OnCancelled(packet *Packet) {
	if c.Cancel != nil {
		c.Cancel(packet)
	}
}

func (c CallbackFuncs) OnThrowable(packet *Packet, err error) {
	if c.Throwable != nil {
		c.Throwable(packet, err)
	}
}

// Fiber is a cooperative task executing one step chain against one Packet.
// It is ephemeral: created by a FiberGate, terminated on end-of-chain,
// explicit cancel, or an error from a step.
type Fiber struct {
	id        uint64
	pool      *Pool
	log       logr.Logger
	cancelled atomic.Bool
	cancel    context.CancelFunc
	ctx       context.Context

	step   Step
	packet *Packet
	cb     CompletionCallback
}

var fiberIDs atomic.Uint64

// NewFiber creates a Fiber bound to pool and parent. The fiber does not run
// until Start is called.
func NewFiber(parent context.Context, pool *Pool, log logr.Logger) *Fiber {
	ctx, cancel := context.WithCancel(parent)
	return &Fiber{
		id:     fiberIDs.Add(1),
		pool:   pool,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns a process-unique identifier for diagnostics and
// StartFiberIfLastFiberMatches comparisons.
func (f *Fiber) ID() uint64 { return f.id }

// Start schedules the first Apply of step against packet and returns
// immediately; cb is invoked exactly once when the chain ends.
func (f *Fiber) Start(step Step, packet *Packet, cb CompletionCallback) {
	f.step, f.packet, f.cb = step, packet, cb
	f.pool.Submit(f.run)
}

// Cancel marks the fiber for cancellation. It takes effect at the next
// cooperative point (the next Apply call or the next suspend/resume
// boundary); in-flight Kubernetes requests started by the current Apply are
// not rolled back.
func (f *Fiber) Cancel() {
	f.cancelled.Store(true)
	f.cancel()
}

// run executes Apply calls in a tight loop for as long as steps keep
// returning Continue, holding one pool slot the whole time. A Suspend gives
// up that slot immediately: a lightweight waiter goroutine (not itself
// counted against the pool) parks on the resume channel and re-submits the
// fiber to the pool once it fires, so no OS thread sits idle on the wait.
func (f *Fiber) run() {
	step, packet := f.step, f.packet
	for step != nil {
		if f.cancelled.Load() {
			f.finish(Cancelled, packet, nil)
			return
		}
		na, err := step.Apply(f.ctx, packet)
		if err != nil {
			if f.cancelled.Load() {
				f.finish(Cancelled, packet, nil)
				return
			}
			f.finish(Threw, packet, err)
			return
		}
		switch na.Kind {
		case Continue:
			step = na.Next
		case Suspend:
			f.step, f.packet = step, packet
			go f.awaitResume(na.Resume)
			return
		case End:
			f.finish(Completed, packet, nil)
			return
		}
	}
	f.finish(Completed, packet, nil)
}

func (f *Fiber) awaitResume(resume <-chan struct{}) {
	select {
	case <-resume:
		f.pool.Submit(f.run)
	case <-f.ctx.Done():
		f.finish(Cancelled, f.packet, nil)
	}
}

func (f *Fiber) finish(status CompletionStatus, packet *Packet, err error) {
	if f.cb == nil {
		return
	}
	switch status {
	case Completed:
		f.cb.OnCompletion(packet)
	case Cancelled:
		f.cb.OnCancelled(packet)
	case Threw:
		f.cb.OnThrowable(packet, err)
	}
}
