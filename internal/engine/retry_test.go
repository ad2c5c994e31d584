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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"

	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
	"github.com/wlsoperator/domain-engine/internal/tuning"
)

func testTuning() tuning.Tuning {
	t := tuning.Default()
	t.DomainPresenceFailureRetrySeconds = 0
	t.DomainPresenceFailureRetryMaxCount = 2
	return t
}

// TestRetryController_RetriesUntilMaxThenStops is P5: bounded retry.
func TestRetryController_RetriesUntilMaxThenStops(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	var statusCalls, retryCalls atomic.Int32
	retryDone := make(chan struct{}, 10)

	rc := &RetryController{
		Log: logr.Discard(),
		Tuning: func() tuning.Tuning {
			return testTuning()
		},
		OnFailureStatus: func(*DomainPresenceInfo, error) { statusCalls.Add(1) },
		Retry: func(context.Context, string, string, DecisionFlags) {
			retryCalls.Add(1)
			retryDone <- struct{}{}
		},
	}

	boom := errors.New("transient boom")
	awaitRetry := func() {
		select {
		case <-retryDone:
		case <-time.After(time.Second):
			t.Fatal("expected retry was not scheduled in time")
		}
	}

	// maxCount is 2: the 1st and 2nd failures should schedule a retry, the
	// 3rd must not (failureCount now 3 > 2).
	rc.HandleThrowable(context.Background(), info, boom, false)
	awaitRetry()
	rc.HandleThrowable(context.Background(), info, boom, false)
	awaitRetry()
	rc.HandleThrowable(context.Background(), info, boom, false)

	select {
	case <-retryDone:
		t.Fatalf("unexpected retry scheduled after exceeding max failure retries")
	case <-time.After(100 * time.Millisecond):
	}

	if statusCalls.Load() != 3 {
		t.Errorf("OnFailureStatus called %d times, want 3 (always reported)", statusCalls.Load())
	}
	if retryCalls.Load() != 2 {
		t.Errorf("retry scheduled %d times, want 2", retryCalls.Load())
	}
	if info.FailureCount() != 3 {
		t.Errorf("FailureCount() = %d, want 3", info.FailureCount())
	}
}

func TestRetryController_FatalIntrospectorErrorNeverRetries(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	var statusCalls, retryCalls atomic.Int32

	rc := &RetryController{
		Log:             logr.Discard(),
		Tuning:          func() tuning.Tuning { return testTuning() },
		OnFailureStatus: func(*DomainPresenceInfo, error) { statusCalls.Add(1) },
		Retry:           func(context.Context, string, string, DecisionFlags) { retryCalls.Add(1) },
	}

	rc.HandleThrowable(context.Background(), info, weblogicerrors.ErrFatalIntrospector, false)

	time.Sleep(50 * time.Millisecond)
	if statusCalls.Load() != 1 {
		t.Errorf("OnFailureStatus called %d times, want 1", statusCalls.Load())
	}
	if retryCalls.Load() != 0 {
		t.Errorf("retry scheduled %d times, want 0 for a fatal introspector error", retryCalls.Load())
	}
	if info.FailureCount() != 0 {
		t.Errorf("FailureCount() = %d, want 0 (terminal errors don't count toward retry budget)", info.FailureCount())
	}
}

func TestRetryController_ValidationErrorNeverRetries(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	var retryCalls atomic.Int32

	rc := &RetryController{
		Log:    logr.Discard(),
		Tuning: func() tuning.Tuning { return testTuning() },
		Retry:  func(context.Context, string, string, DecisionFlags) { retryCalls.Add(1) },
	}

	rc.HandleThrowable(context.Background(), info, weblogicerrors.ErrValidation, true)

	time.Sleep(50 * time.Millisecond)
	if retryCalls.Load() != 0 {
		t.Errorf("retry scheduled %d times, want 0 for a validation error", retryCalls.Load())
	}
}

func TestRetryController_RetryPreservesDeletingFlag(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	flagsCh := make(chan DecisionFlags, 1)

	rc := &RetryController{
		Log:    logr.Discard(),
		Tuning: func() tuning.Tuning { return testTuning() },
		Retry: func(_ context.Context, _ string, _ string, flags DecisionFlags) {
			flagsCh <- flags
		},
	}

	rc.HandleThrowable(context.Background(), info, errors.New("boom"), true)

	select {
	case flags := <-flagsCh:
		if !flags.Deleting || !flags.ExplicitRecheck {
			t.Errorf("retry flags = %+v, want Deleting=true ExplicitRecheck=true", flags)
		}
	case <-time.After(time.Second):
		t.Fatal("retry was not scheduled")
	}
}
