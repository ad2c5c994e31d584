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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

// blockingStep runs until its release channel closes, then ends the chain.
// It is used to keep a fiber "in flight" so tests can observe FiberGate
// mutual exclusion deterministically.
type blockingStep struct {
	started chan struct{}
	release <-chan struct{}
	ran     *atomic.Int32
}

func (s *blockingStep) Name() string { return "blockingStep" }

func (s *blockingStep) Apply(ctx context.Context, _ *Packet) (NextAction, error) {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return NextAction{}, ctx.Err()
	}
	if s.ran != nil {
		s.ran.Add(1)
	}
	return EndChain(), nil
}

// countingStep immediately ends the chain, recording that it ran.
type countingStep struct {
	ran *atomic.Int32
}

func (countingStep) Name() string { return "countingStep" }

func (s countingStep) Apply(context.Context, *Packet) (NextAction, error) {
	if s.ran != nil {
		s.ran.Add(1)
	}
	return EndChain(), nil
}

func newTestGate() *FiberGate {
	return NewFiberGate(NewPool(4), logr.Discard())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// TestFiberGate_MutualExclusion is P1: at most one active fiber per key.
func TestFiberGate_MutualExclusion(t *testing.T) {
	gate := newTestGate()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var ran atomic.Int32

	info := NewDomainPresenceInfo("ns", "uid", nil)
	packet := NewPacket(info)

	done := make(chan struct{})
	gate.StartFiberIfNoCurrentFiber(context.Background(), "uid", &blockingStep{started: started, release: release, ran: &ran}, packet, CallbackFuncs{
		Completion: func(*Packet) { close(done) },
	})
	<-started

	if gate.CurrentFiber("uid") == nil {
		t.Fatalf("expected a current fiber for key uid")
	}

	// A second StartFiberIfNoCurrentFiber must be a no-op while the first is active.
	second := gate.StartFiberIfNoCurrentFiber(context.Background(), "uid", countingStep{ran: &ran}, packet, nil)
	if second != nil {
		t.Errorf("StartFiberIfNoCurrentFiber() returned a fiber while one was active, want nil")
	}

	close(release)
	<-done

	waitFor(t, time.Second, func() bool { return gate.CurrentFiber("uid") == nil })
	if got := ran.Load(); got != 1 {
		t.Errorf("ran = %d, want exactly 1 (the second start must not have run)", got)
	}
}

func TestFiberGate_StartFiberInterruptsCurrent(t *testing.T) {
	gate := newTestGate()
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	info := NewDomainPresenceInfo("ns", "uid", nil)
	packet := NewPacket(info)

	var firstStatus atomic.Int32 // 0=unset, 1=completed, 2=cancelled
	firstDone := make(chan struct{})
	gate.StartFiber(context.Background(), "uid", &blockingStep{started: started, release: release}, packet, CallbackFuncs{
		Completion: func(*Packet) { firstStatus.Store(1); close(firstDone) },
		Cancel:     func(*Packet) { firstStatus.Store(2); close(firstDone) },
	})
	<-started

	var secondRan atomic.Int32
	secondDone := make(chan struct{})
	gate.StartFiber(context.Background(), "uid", countingStep{ran: &secondRan}, packet, CallbackFuncs{
		Completion: func(*Packet) { close(secondDone) },
	})

	<-firstDone
	<-secondDone

	if firstStatus.Load() != 2 {
		t.Errorf("first fiber status = %d, want Cancelled (2)", firstStatus.Load())
	}
	if secondRan.Load() != 1 {
		t.Errorf("second fiber ran = %d, want 1", secondRan.Load())
	}
	close(release) // allow the interrupted fiber's goroutine to fully unwind
}

func TestFiberGate_StartFiberIfLastFiberMatches(t *testing.T) {
	gate := newTestGate()
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	info := NewDomainPresenceInfo("ns", "uid", nil)
	packet := NewPacket(info)

	f := gate.StartFiberIfNoCurrentFiber(context.Background(), "uid", &blockingStep{started: started, release: release}, packet, nil)
	<-started

	// A stale "expected" fiber must not be allowed to start a follow-up.
	stale := NewFiber(context.Background(), NewPool(1), logr.Discard())
	if got := gate.StartFiberIfLastFiberMatches(context.Background(), "uid", stale, countingStep{}, packet, nil); got != nil {
		t.Errorf("StartFiberIfLastFiberMatches() with a stale expected fiber = %v, want nil", got)
	}

	close(release)
	waitFor(t, time.Second, func() bool { return gate.CurrentFiber("uid") == nil })

	// Now that f has finished and cleared itself, matching against it should
	// also fail since it is no longer current.
	if got := gate.StartFiberIfLastFiberMatches(context.Background(), "uid", f, countingStep{}, packet, nil); got != nil {
		t.Errorf("StartFiberIfLastFiberMatches() after completion = %v, want nil", got)
	}
}

func TestFiberGate_CurrentFibersSnapshot(t *testing.T) {
	gate := newTestGate()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	info := NewDomainPresenceInfo("ns", "uid", nil)
	packet := NewPacket(info)

	gate.StartFiberIfNoCurrentFiber(context.Background(), "uid-a", &blockingStep{started: started, release: release}, packet, nil)
	<-started

	snap := gate.CurrentFibers()
	if _, ok := snap["uid-a"]; !ok {
		t.Errorf("CurrentFibers() = %v, want an entry for uid-a", snap)
	}
	close(release)
}

// TestFiber_ChainRunsStepsInOrder exercises Step.Chain/engine.Chain walking
// multiple leaf steps to completion.
func TestFiber_ChainRunsStepsInOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) Step {
		return recordingStep{name: name, order: &order, mu: &mu}
	}

	chain := Chain(nil, record("a"), record("b"), record("c"))
	info := NewDomainPresenceInfo("ns", "uid", nil)
	packet := NewPacket(info)

	pool := NewPool(1)
	done := make(chan struct{})
	f := NewFiber(context.Background(), pool, logr.Discard())
	f.Start(chain, packet, CallbackFuncs{Completion: func(*Packet) { close(done) }})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fiber did not complete in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

type recordingStep struct {
	name  string
	order *[]string
	mu    *sync.Mutex
}

func (r recordingStep) Name() string { return r.name }

func (r recordingStep) Apply(context.Context, *Packet) (NextAction, error) {
	r.mu.Lock()
	*r.order = append(*r.order, r.name)
	r.mu.Unlock()
	return EndChain(), nil
}

func TestFiber_CancelDeliversCancelledCompletion(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	info := NewDomainPresenceInfo("ns", "uid", nil)
	packet := NewPacket(info)

	pool := NewPool(1)
	f := NewFiber(context.Background(), pool, logr.Discard())

	var status atomic.Int32
	done := make(chan struct{})
	f.Start(&blockingStep{started: started, release: release}, packet, CallbackFuncs{
		Cancel:     func(*Packet) { status.Store(int32(Cancelled)); close(done) },
		Completion: func(*Packet) { status.Store(int32(Completed)); close(done) },
	})
	<-started
	f.Cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fiber did not report cancellation in time")
	}
	if CompletionStatus(status.Load()) != Cancelled {
		t.Errorf("completion status = %v, want Cancelled", status.Load())
	}
	close(release)
}

func TestFiber_ThrowableDeliversError(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	packet := NewPacket(info)
	pool := NewPool(1)
	f := NewFiber(context.Background(), pool, logr.Discard())

	boom := errBoom{}
	done := make(chan error, 1)
	f.Start(erroringStep{err: boom}, packet, CallbackFuncs{
		Throwable: func(_ *Packet, err error) { done <- err },
	})

	select {
	case err := <-done:
		if err != boom {
			t.Errorf("OnThrowable err = %v, want %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("fiber did not report the error in time")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type erroringStep struct{ err error }

func (erroringStep) Name() string { return "erroringStep" }

func (s erroringStep) Apply(context.Context, *Packet) (NextAction, error) {
	return NextAction{}, s.err
}
