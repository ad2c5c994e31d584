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
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/wlsoperator/domain-engine/internal/logging"
)

// perDomainSchedule implements cron.Schedule as "initialShortDelay once, then
// steadyDelay forever" (spec §4.7 "periodic task (configurable initial
// delay, steady delay) per domain") — the teacher's go.mod carries
// robfig/cron/v3 for backup scheduling; this repurposes the same scheduler
// for a duration-based cadence rather than a calendar cron expression, since
// robfig/cron calls Schedule.Next(now) again after every run.
type perDomainSchedule struct {
	mu           sync.Mutex
	initialDelay time.Duration
	steadyDelay  time.Duration
	usedInitial  bool
}

func (s *perDomainSchedule) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usedInitial {
		s.usedInitial = true
		return t.Add(s.initialDelay)
	}
	return t.Add(s.steadyDelay)
}

// StatusUpdater implements spec §4.7: a periodic per-domain task, run on its
// own "status" FiberGate (independent of the make-right gate), that reads
// server health and writes back Domain status.
type StatusUpdater struct {
	cron *cron.Cron
	gate *FiberGate
	log  logr.Logger

	mu        sync.Mutex
	entries   map[string]cron.EntryID
	throttles map[string]*rate.Limiter

	// Timeout bounds each status-read fiber (spec §5 "Status read has
	// statusUpdateTimeoutSeconds").
	Timeout time.Duration
}

// NewStatusUpdater creates a StatusUpdater whose fibers run on gate (a
// FiberGate distinct from the make-right gate) and starts its internal cron
// scheduler.
func NewStatusUpdater(gate *FiberGate, log logr.Logger) *StatusUpdater {
	u := &StatusUpdater{
		cron:      cron.New(),
		gate:      gate,
		log:       log,
		entries:   make(map[string]cron.EntryID),
		throttles: make(map[string]*rate.Limiter),
		Timeout:   20 * time.Second,
	}
	u.cron.Start()
	return u
}

// Schedule registers (or replaces) the periodic status-read task for
// domainUID. build constructs the step chain to run on each tick; it is
// called fresh every tick so it can close over the current DomainPresenceInfo
// and tuning snapshot. onResult is invoked after each read: ok=true for a
// complete read (which resets the logging throttle per spec §4.7), ok=false
// otherwise.
func (u *StatusUpdater) Schedule(
	ctx context.Context,
	namespace, domainUID string,
	initialDelay, steadyDelay time.Duration,
	build func() (Step, *Packet),
	onResult func(ok bool, err error),
) {
	u.mu.Lock()
	if id, exists := u.entries[domainUID]; exists {
		u.cron.Remove(id)
	}
	u.mu.Unlock()

	key := "status:" + domainUID
	sched := &perDomainSchedule{initialDelay: initialDelay, steadyDelay: steadyDelay}
	id := u.cron.Schedule(sched, cron.FuncJob(func() {
		step, packet := build()
		if step == nil {
			return
		}
		readCtx, cancel := context.WithTimeout(ctx, u.Timeout)
		u.gate.StartFiberIfNoCurrentFiber(readCtx, key, step, packet, CallbackFuncs{
			Completion: func(*Packet) {
				cancel()
				u.recordResult(domainUID, true, nil, onResult)
			},
			Cancel: func(*Packet) {
				cancel()
			},
			Throwable: func(_ *Packet, err error) {
				cancel()
				u.recordResult(domainUID, false, err, onResult)
			},
		})
	}))

	u.mu.Lock()
	u.entries[domainUID] = id
	u.throttles[domainUID] = rate.NewLimiter(rate.Every(steadyDelay), 1)
	u.mu.Unlock()
}

// recordResult applies the once-per-message logging filter of spec §4.7: a
// failed read logs at most once per throttle window; a successful complete
// read resets the throttle so the next failure always logs immediately.
func (u *StatusUpdater) recordResult(domainUID string, ok bool, err error, onResult func(bool, error)) {
	u.mu.Lock()
	limiter := u.throttles[domainUID]
	u.mu.Unlock()

	if ok {
		if limiter != nil {
			// A fresh limiter starts with a full bucket, so the next failure
			// logs immediately.
			u.mu.Lock()
			if u.throttles[domainUID] == limiter {
				u.throttles[domainUID] = rate.NewLimiter(limiter.Limit(), 1)
			}
			u.mu.Unlock()
		}
		logging.LogDomainEvent(u.log, "status_read_complete", map[string]string{"domainUID": domainUID})
	} else if limiter == nil || limiter.Allow() {
		u.log.Error(err, "status read failed", "domainUID", domainUID)
	}

	if onResult != nil {
		onResult(ok, err)
	}
}

// Stop cancels the periodic task for domainUID (spec §4.5 DownHead "stop
// status updater").
func (u *StatusUpdater) Stop(domainUID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if id, ok := u.entries[domainUID]; ok {
		u.cron.Remove(id)
		delete(u.entries, domainUID)
	}
	delete(u.throttles, domainUID)
}

// Shutdown stops the underlying cron scheduler, waiting for in-flight jobs.
func (u *StatusUpdater) Shutdown() {
	<-u.cron.Stop().Done()
}
