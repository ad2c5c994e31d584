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
	"reflect"
	"strings"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
)

// Plan names the kind of step chain a Decision selects.
type Plan int

const (
	// PlanNone means no fiber should start this cycle.
	PlanNone Plan = iota
	// PlanUp builds the up-plan (spec §4.5).
	PlanUp
	// PlanDown builds the down-plan (spec §4.5).
	PlanDown
)

// DecisionFlags are the inputs to Decide beyond the two Domain snapshots
// (spec §4.5).
type DecisionFlags struct {
	ExplicitRecheck bool
	Deleting        bool
	Interrupt       bool
}

// Decision is the verdict of the Make-Right Planner's decision function.
type Decision struct {
	Run  bool
	Plan Plan
}

// maxFailureRetriesDefault is used by Decide when no tuning is supplied by
// the caller's retry controller; callers that track tuning should prefer
// DecideWithMaxRetries.
const maxFailureRetriesDefault = 5

// Decide implements the six ordered rules of spec §4.5 against the default
// maxFailureRetries. Use DecideWithMaxRetries when the live tuning value is
// available.
func Decide(live, cached *weblogicv1.Domain, flags DecisionFlags) Decision {
	return DecideWithMaxRetries(live, cached, flags, maxFailureRetriesDefault)
}

// DecideWithMaxRetries implements spec §4.5's decision function:
//
//  1. cached == nil or no cached Domain -> run (initial adoption).
//  2. cached is newer than live (by resourceVersion/creationTimestamp) -> skip.
//  3. introspectJobFailureCount >= maxFailureRetries and none of
//     {image, restartVersion, introspectVersion} changed -> skip.
//  4. status.message contains "FatalIntrospectorError" and the spec is
//     unchanged -> skip.
//  5. explicitRecheck or live.spec != cached.spec -> run.
//  6. otherwise -> skip (refresh cache with latest status).
//
// Plus the Model-in-Image onlineUpdate coercion rule: when onlineUpdate is
// enabled and the spec delta reaches beyond introspectVersion+onlineUpdate,
// the caller must force onlineUpdate.enabled=false before running (exposed as
// Decision metadata via NeedsOnlineUpdateCoercion, checked separately since
// it mutates the live spec the caller is about to act on rather than
// changing the run/skip/plan verdict itself).
func DecideWithMaxRetries(live, cached *weblogicv1.Domain, flags DecisionFlags, maxFailureRetries int32) Decision {
	if flags.Deleting {
		return Decision{Run: true, Plan: PlanDown}
	}

	// Rule 1: initial adoption.
	if cached == nil {
		return Decision{Run: true, Plan: PlanUp}
	}

	// Rule 2: stale event.
	if isNewer(cached, live) {
		return Decision{Run: false}
	}

	// Rule 3: give up after too many introspector failures unless something
	// that would change introspection changed.
	if cached.Status.IntrospectJobFailureCount >= maxFailureRetries && !introspectionRelevantFieldsChanged(live, cached) {
		return Decision{Run: false}
	}

	// Rule 4: fatal introspector error is terminal until a spec edit.
	if strings.Contains(cached.Status.Message, weblogicerrors.FatalIntrospectorToken) && !specChanged(live, cached) {
		return Decision{Run: false}
	}

	// Rule 5: explicit recheck or spec delta triggers a run.
	if flags.ExplicitRecheck || specChanged(live, cached) {
		return Decision{Run: true, Plan: PlanUp}
	}

	// Rule 6: nothing to do but refresh cached status.
	return Decision{Run: false}
}

// specChanged reports whether live.Spec differs from cached.Spec.
func specChanged(live, cached *weblogicv1.Domain) bool {
	if live == nil || cached == nil {
		return live != cached
	}
	return !reflect.DeepEqual(live.Spec, cached.Spec)
}

// introspectionRelevantFieldsChanged reports whether image, restartVersion,
// or introspectVersion differ between live and cached (spec §4.5 rule 3).
func introspectionRelevantFieldsChanged(live, cached *weblogicv1.Domain) bool {
	if live == nil || cached == nil {
		return live != cached
	}
	return live.Spec.Image != cached.Spec.Image ||
		live.Spec.RestartVersion != cached.Spec.RestartVersion ||
		live.Spec.IntrospectVersion != cached.Spec.IntrospectVersion
}

// isNewer reports whether cached is strictly newer than live by the
// monotonic resourceVersion/creationTimestamp comparison of spec §4.3/§4.5
// rule 2 — i.e. the incoming live event is stale.
func isNewer(cached, live *weblogicv1.Domain) bool {
	if cached == nil || live == nil {
		return false
	}
	cachedRV, liveRV := cached.ResourceVersion, live.ResourceVersion
	if cachedRV == "" || liveRV == "" {
		return cached.CreationTimestamp.After(live.CreationTimestamp.Time)
	}
	if cachedRV == liveRV {
		return false
	}
	// IsStale(a, b) asks "is b no newer than a"; cached is newer than live
	// exactly when live is stale relative to cached.
	return IsStale(cachedRV, liveRV)
}

// NeedsOnlineUpdateCoercion implements the Model-in-Image rule appended to
// spec §4.5: when the domain is FromModel with onlineUpdate.enabled=true, and
// the spec delta between live and cached contains anything beyond the
// allowedFields whitelist (Open Question #1, resolved in DESIGN.md), the
// caller must coerce onlineUpdate.enabled=false on the copy of live it is
// about to act on before building the up-plan.
func NeedsOnlineUpdateCoercion(live, cached *weblogicv1.Domain, allowedFields []string) bool {
	if live == nil || live.Spec.DomainHomeSourceType != weblogicv1.DomainHomeSourceTypeFromModel {
		return false
	}
	if !live.Spec.Configuration.Model.OnlineUpdate.Enabled {
		return false
	}
	if cached == nil {
		return false
	}
	return specDeltaExceedsAllowlist(live, cached, allowedFields)
}

// specDeltaExceedsAllowlist reports whether any field that differs between
// live.Spec and cached.Spec falls outside allowedFields. It compares a fixed
// set of top-level/nested fields the Model-in-Image online-update path is
// documented to tolerate changes to; any other difference is "beyond" the
// whitelist.
func specDeltaExceedsAllowlist(live, cached *weblogicv1.Domain, allowedFields []string) bool {
	allowed := make(map[string]bool, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = true
	}

	ls, cs := live.Spec, cached.Spec
	check := func(field string, changed bool) bool {
		return changed && !allowed[field]
	}

	if check("introspectVersion", ls.IntrospectVersion != cs.IntrospectVersion) {
		return true
	}
	if check("configuration.model.onlineUpdate", ls.Configuration.Model.OnlineUpdate != cs.Configuration.Model.OnlineUpdate) {
		return true
	}
	// Everything else in DomainSpec is outside the whitelist by construction;
	// if it changed and neither of the two allowances above covered it, the
	// delta exceeds the allowlist.
	lsCopy, csCopy := ls, cs
	lsCopy.IntrospectVersion, csCopy.IntrospectVersion = "", ""
	lsCopy.Configuration.Model.OnlineUpdate, csCopy.Configuration.Model.OnlineUpdate = weblogicv1.OnlineUpdate{}, weblogicv1.OnlineUpdate{}
	return !reflect.DeepEqual(lsCopy, csCopy)
}
