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
	"time"

	"github.com/go-logr/logr"

	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
	"github.com/wlsoperator/domain-engine/internal/tuning"
)

// RetryController implements the Retry/Backoff Controller (spec §4.8): it is
// the completion-callback handler a make-right FiberGate's OnThrowable wires
// into, and it owns scheduling bounded re-execution after transient failures.
type RetryController struct {
	// Tuning returns the live tuning snapshot; nil means use tuning.Default().
	Tuning func() tuning.Tuning
	Log    logr.Logger

	// OnFailureStatus reports the failed step to the caller, typically by
	// writing a status-failed condition onto the Domain (spec §4.8 step 1).
	// It is always invoked, including for terminal (non-retryable) failures.
	OnFailureStatus func(info *DomainPresenceInfo, err error)

	// Retry re-triggers make-right for (namespace, domainUID) after the
	// scheduled delay. It is the same MakeRightTrigger the Watch Dispatcher
	// uses, so both paths funnel through one decision point.
	Retry MakeRightTrigger
}

// HandleThrowable implements spec §4.8 in full:
//
//  1. report the failed step via OnFailureStatus;
//  2. schedule a retry after failureRetrySeconds;
//  3. retry only while failureCount <= maxFailureRetries; beyond that, log
//     severe and stop until a spec change triggers a fresh run (handled by
//     the Make-Right Planner's rule 3, not by this controller re-checking);
//  4. the scheduled retry runs with explicitRecheck=true and the last
//     deleting flag preserved.
//
// Fatal-introspector and validation errors are terminal per spec §7 ("no
// retry until spec edit" / "make-right aborts this cycle") and are reported
// without scheduling anything.
func (r *RetryController) HandleThrowable(_ context.Context, info *DomainPresenceInfo, err error, deleting bool) {
	if info == nil || err == nil {
		return
	}

	if weblogicerrors.IsFatalIntrospector(err) || weblogicerrors.IsValidation(err) {
		if r.OnFailureStatus != nil {
			r.OnFailureStatus(info, err)
		}
		return
	}

	failureCount := info.IncrementFailureCount()
	if r.OnFailureStatus != nil {
		r.OnFailureStatus(info, err)
	}

	t := tuning.Default()
	if r.Tuning != nil {
		t = r.Tuning()
	}

	if failureCount > t.DomainPresenceFailureRetryMaxCount {
		r.Log.Error(err, "make-right exceeded max failure retries, stopping until spec change",
			"namespace", info.Namespace, "domainUID", info.DomainUID, "failureCount", failureCount)
		return
	}

	delay := time.Duration(t.DomainPresenceFailureRetrySeconds) * time.Second
	namespace, domainUID := info.Namespace, info.DomainUID
	time.AfterFunc(delay, func() {
		if r.Retry == nil {
			return
		}
		// The fiber's own context is long gone by the time this fires;
		// the retry is a fresh, independently-cancellable make-right cycle.
		r.Retry(context.Background(), namespace, domainUID, DecisionFlags{
			ExplicitRecheck: true,
			Deleting:        deleting,
		})
	})
}
