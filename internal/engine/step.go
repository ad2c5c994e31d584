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

import "context"

// ActionKind is the verdict a Step returns from Apply.
type ActionKind int

const (
	// Continue moves the fiber to NextAction.Next with the same Packet.
	Continue ActionKind = iota
	// Suspend parks the fiber until NextAction.Resume is closed or the fiber's
	// context is cancelled.
	Suspend
	// End terminates the chain successfully.
	End
)

// NextAction is the verdict a Step.Apply returns to the Fiber loop.
type NextAction struct {
	Kind ActionKind
	// Next is consulted when Kind == Continue.
	Next Step
	// Resume is consulted when Kind == Suspend; closing it (or cancelling the
	// fiber's context) re-queues the fiber onto the pool.
	Resume <-chan struct{}
}

// ContinueWith builds a Continue NextAction.
func ContinueWith(next Step) NextAction { return NextAction{Kind: Continue, Next: next} }

// SuspendUntil builds a Suspend NextAction parked on resume.
func SuspendUntil(resume <-chan struct{}) NextAction { return NextAction{Kind: Suspend, Resume: resume} }

// EndChain builds an End NextAction.
func EndChain() NextAction { return NextAction{Kind: End} }

// Step is an immutable unit of work. Variants (head/tail/up/down/validation/wait)
// are distinct values implementing this one contract; there is no shared
// mutable base and no subtyping between them.
type Step interface {
	// Name identifies the step for logging and metrics; it is not used for
	// dispatch.
	Name() string
	// Apply executes one cooperative unit of work and reports what the fiber
	// should do next. Apply must never block an OS thread on I/O; long waits
	// are expressed as a Suspend whose Resume channel is closed by a watcher
	// or timer elsewhere.
	Apply(ctx context.Context, packet *Packet) (NextAction, error)
}

// chainStep composes a fixed sequence of steps into a single Step, walking
// them in order before handing off to whatever the chain itself continues to.
type chainStep struct {
	name  string
	steps []Step
	then  Step
}

// Chain composes steps into a single Step that runs each of them in order,
// then falls through to then (nil means "end the chain here"). A leaf step
// signals it is finished by returning EndChain(); Chain interprets that as
// "advance to the next step in this chain", not "terminate the fiber". A step
// that returns ContinueWith(x) instead is branching explicitly to x, which
// runs before the remainder of this chain resumes — this is how a step
// "chooses its next" per the branching contract.
func Chain(then Step, steps ...Step) Step {
	return &chainStep{name: "Chain", steps: steps, then: then}
}

func (c *chainStep) Name() string { return c.name }

func (c *chainStep) Apply(ctx context.Context, packet *Packet) (NextAction, error) {
	if len(c.steps) == 0 {
		if c.then == nil {
			return EndChain(), nil
		}
		return ContinueWith(c.then), nil
	}
	head, rest := c.steps[0], c.steps[1:]
	na, err := head.Apply(ctx, packet)
	if err != nil {
		return NextAction{}, err
	}
	tail := &chainStep{name: c.name, steps: rest, then: c.then}
	switch na.Kind {
	case End:
		// head finished; advance to the next position in this chain.
		return ContinueWith(tail), nil
	case Continue:
		// head branched explicitly; run its chosen step, then resume this
		// chain's remainder.
		return ContinueWith(Chain(tail, na.Next)), nil
	default: // Suspend
		// The fiber keeps holding this exact chainStep across the suspend; on
		// resume it re-enters head.Apply, which must consult the Packet (not
		// its own fields, since Steps are immutable) to tell whether the
		// awaited event already landed.
		return na, nil
	}
}
