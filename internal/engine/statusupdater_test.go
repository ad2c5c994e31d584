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
	"testing"
	"time"

	"github.com/go-logr/logr"
)

func TestPerDomainSchedule_InitialThenSteady(t *testing.T) {
	s := &perDomainSchedule{initialDelay: time.Second, steadyDelay: time.Minute}
	now := time.Now()
	if got := s.Next(now); !got.Equal(now.Add(time.Second)) {
		t.Errorf("first Next() = %v, want now+initialDelay", got)
	}
	if got := s.Next(now); !got.Equal(now.Add(time.Minute)) {
		t.Errorf("second Next() = %v, want now+steadyDelay", got)
	}
	if got := s.Next(now); !got.Equal(now.Add(time.Minute)) {
		t.Errorf("third Next() = %v, want now+steadyDelay", got)
	}
}

func TestStatusUpdater_ScheduleRunsAndStopCancels(t *testing.T) {
	u := NewStatusUpdater(NewFiberGate(NewPool(2), logr.Discard()), logr.Discard())
	defer u.Shutdown()

	var runs atomic.Int32
	done := make(chan struct{}, 8)
	u.Schedule(context.Background(), "ns1", "uid1",
		10*time.Millisecond, 10*time.Millisecond,
		func() (Step, *Packet) {
			return countingStep{ran: &runs}, NewPacket(NewDomainPresenceInfo("ns1", "uid1", nil))
		},
		func(ok bool, err error) {
			if !ok {
				t.Errorf("onResult ok = false, err = %v", err)
			}
			select {
			case done <- struct{}{}:
			default:
			}
		},
	)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("status tick never ran")
	}

	u.Stop("uid1")
	runsAtStop := runs.Load()
	time.Sleep(50 * time.Millisecond)
	// One tick may have been in flight when Stop was called; there must be no
	// further growth after that settles.
	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != settled {
		t.Errorf("runs after Stop grew from %d to %d (stop observed at %d)", settled, got, runsAtStop)
	}
}

func TestStatusUpdater_ReplacingScheduleCancelsOldEntry(t *testing.T) {
	u := NewStatusUpdater(NewFiberGate(NewPool(2), logr.Discard()), logr.Discard())
	defer u.Shutdown()

	var first, second atomic.Int32
	build := func(n *atomic.Int32) func() (Step, *Packet) {
		return func() (Step, *Packet) {
			return countingStep{ran: n}, NewPacket(NewDomainPresenceInfo("ns1", "uid1", nil))
		}
	}
	u.Schedule(context.Background(), "ns1", "uid1", time.Hour, time.Hour, build(&first), nil)
	u.Schedule(context.Background(), "ns1", "uid1", 10*time.Millisecond, 10*time.Millisecond, build(&second), nil)

	deadline := time.After(5 * time.Second)
	for second.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("replacement schedule never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if first.Load() != 0 {
		t.Errorf("replaced schedule ran %d times, want 0", first.Load())
	}
}
