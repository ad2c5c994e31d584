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

	"github.com/go-logr/logr"
)

// FiberGate is a per-namespace registry enforcing at-most-one active Fiber
// per key (spec §4.2). A processor keeps one FiberGate per namespace; gates
// are independent of one another.
type FiberGate struct {
	pool *Pool
	log  logr.Logger

	mu      sync.Mutex
	current map[string]*Fiber
}

// NewFiberGate creates a FiberGate whose fibers run on pool.
func NewFiberGate(pool *Pool, log logr.Logger) *FiberGate {
	return &FiberGate{pool: pool, log: log, current: make(map[string]*Fiber)}
}

// CurrentFiber returns the fiber currently registered for key, or nil.
func (g *FiberGate) CurrentFiber(key string) *Fiber {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[key]
}

// CurrentFibers returns a snapshot of every active key->Fiber pair, for
// diagnostics (spec §4.2).
func (g *FiberGate) CurrentFibers() map[string]*Fiber {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]*Fiber, len(g.current))
	for k, v := range g.current {
		out[k] = v
	}
	return out
}

// StartFiber cancels whatever fiber is currently registered for key, then
// starts a new one unconditionally. Used for "interrupt" make-right requests
// (spec §4.2, §4.4).
func (g *FiberGate) StartFiber(ctx context.Context, key string, step Step, packet *Packet, cb CompletionCallback) *Fiber {
	g.mu.Lock()
	if old, ok := g.current[key]; ok {
		old.Cancel()
	}
	f := NewFiber(ctx, g.pool, g.log)
	g.current[key] = f
	g.mu.Unlock()

	f.Start(step, packet, g.wrap(key, f, cb))
	return f
}

// StartFiberIfNoCurrentFiber starts a new fiber for key only if none is
// currently active; otherwise it is a no-op and returns nil (spec §4.2).
func (g *FiberGate) StartFiberIfNoCurrentFiber(ctx context.Context, key string, step Step, packet *Packet, cb CompletionCallback) *Fiber {
	g.mu.Lock()
	if _, ok := g.current[key]; ok {
		g.mu.Unlock()
		return nil
	}
	f := NewFiber(ctx, g.pool, g.log)
	g.current[key] = f
	g.mu.Unlock()

	f.Start(step, packet, g.wrap(key, f, cb))
	return f
}

// StartFiberIfLastFiberMatches starts a new fiber for key only if the fiber
// currently registered for key is exactly expected; used to safely chain a
// follow-up step from within a completion callback without racing a newer
// fiber that may have started in the meantime (spec §4.2).
func (g *FiberGate) StartFiberIfLastFiberMatches(ctx context.Context, key string, expected *Fiber, step Step, packet *Packet, cb CompletionCallback) *Fiber {
	g.mu.Lock()
	if g.current[key] != expected {
		g.mu.Unlock()
		return nil
	}
	f := NewFiber(ctx, g.pool, g.log)
	g.current[key] = f
	g.mu.Unlock()

	f.Start(step, packet, g.wrap(key, f, cb))
	return f
}

// wrap clears the key->fiber registration once f completes, provided no
// newer fiber has since replaced it, then delegates to cb.
func (g *FiberGate) wrap(key string, f *Fiber, cb CompletionCallback) CompletionCallback {
	clear := func() {
		g.mu.Lock()
		if g.current[key] == f {
			delete(g.current, key)
		}
		g.mu.Unlock()
	}
	return CallbackFuncs{
		Completion: func(p *Packet) {
			clear()
			if cb != nil {
				cb.OnCompletion(p)
			}
		},
		Cancel: func(p *Packet) {
			clear()
			if cb != nil {
				cb.OnCancelled(p)
			}
		},
		Throwable: func(p *Packet, err error) {
			clear()
			if cb != nil {
				cb.OnThrowable(p, err)
			}
		},
	}
}
