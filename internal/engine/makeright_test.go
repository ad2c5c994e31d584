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
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
)

func domainAt(rv string, gen int64, image string) *weblogicv1.Domain {
	return &weblogicv1.Domain{
		ObjectMeta: metav1.ObjectMeta{ResourceVersion: rv, Generation: gen},
		Spec:       weblogicv1.DomainSpec{Image: image},
	}
}

func TestDecide_InitialAdoption(t *testing.T) {
	live := domainAt("1", 1, "img:1")
	d := Decide(live, nil, DecisionFlags{})
	if !d.Run || d.Plan != PlanUp {
		t.Errorf("Decide() = %+v, want Run=true Plan=PlanUp", d)
	}
}

func TestDecide_StaleEventSkipped(t *testing.T) {
	cached := domainAt("10", 1, "img:1")
	live := domainAt("5", 1, "img:1")
	d := Decide(live, cached, DecisionFlags{})
	if d.Run {
		t.Errorf("Decide() = %+v, want Run=false for a stale event", d)
	}
}

// TestDecide_RepeatedIdenticalModified is P4: delivering the same MODIFIED
// event twice (same resourceVersion, no explicit recheck, no spec delta)
// must not run make-right a second time.
func TestDecide_RepeatedIdenticalModified(t *testing.T) {
	cached := domainAt("7", 2, "img:1")
	live := domainAt("7", 2, "img:1")

	first := Decide(live, cached, DecisionFlags{})
	if first.Run {
		t.Fatalf("first Decide() = %+v, want Run=false (no change, no explicit recheck)", first)
	}
	second := Decide(live, cached, DecisionFlags{})
	if second.Run {
		t.Fatalf("second Decide() = %+v, want Run=false", second)
	}
}

func TestDecide_SpecDeltaRuns(t *testing.T) {
	cached := domainAt("7", 2, "img:1")
	live := domainAt("8", 3, "img:2")
	d := Decide(live, cached, DecisionFlags{})
	if !d.Run || d.Plan != PlanUp {
		t.Errorf("Decide() = %+v, want Run=true Plan=PlanUp for a spec delta", d)
	}
}

func TestDecide_ExplicitRecheckRunsEvenWithoutDelta(t *testing.T) {
	cached := domainAt("7", 2, "img:1")
	live := domainAt("7", 2, "img:1")
	d := Decide(live, cached, DecisionFlags{ExplicitRecheck: true})
	if !d.Run {
		t.Errorf("Decide() = %+v, want Run=true for explicit recheck", d)
	}
}

func TestDecide_Deleting(t *testing.T) {
	live := domainAt("1", 1, "img:1")
	d := Decide(live, nil, DecisionFlags{Deleting: true})
	if !d.Run || d.Plan != PlanDown {
		t.Errorf("Decide() = %+v, want Run=true Plan=PlanDown", d)
	}
}

// TestDecide_BoundedRetryExhaustion is P5: once introspectJobFailureCount
// reaches maxFailureRetries and nothing introspection-relevant changed,
// no further fiber starts until image/restartVersion/introspectVersion
// changes.
func TestDecide_BoundedRetryExhaustion(t *testing.T) {
	cached := domainAt("7", 2, "img:1")
	cached.Status.IntrospectJobFailureCount = 5
	live := domainAt("7", 2, "img:1")

	d := DecideWithMaxRetries(live, cached, DecisionFlags{ExplicitRecheck: true}, 5)
	if d.Run {
		t.Fatalf("Decide() = %+v, want Run=false once max retries exhausted with no relevant change", d)
	}

	// A change to image (introspection-relevant) should unlock a fresh run.
	live.Spec.Image = "img:2"
	d = DecideWithMaxRetries(live, cached, DecisionFlags{ExplicitRecheck: true}, 5)
	if !d.Run {
		t.Errorf("Decide() = %+v, want Run=true after an image change unlocks retries", d)
	}
}

func TestDecide_RestartVersionChangeUnlocksRetries(t *testing.T) {
	cached := domainAt("7", 2, "img:1")
	cached.Status.IntrospectJobFailureCount = 9
	cached.Spec.RestartVersion = "v1"
	live := domainAt("7", 2, "img:1")
	live.Spec.RestartVersion = "v2"

	d := DecideWithMaxRetries(live, cached, DecisionFlags{}, 5)
	if !d.Run {
		t.Errorf("Decide() = %+v, want Run=true after restartVersion change unlocks retries", d)
	}
}

func TestDecide_FatalIntrospectorErrorIsTerminal(t *testing.T) {
	cached := domainAt("7", 2, "img:1")
	cached.Status.Message = "boom: FatalIntrospectorError: bad model"
	live := domainAt("7", 2, "img:1")

	d := Decide(live, cached, DecisionFlags{ExplicitRecheck: true})
	if d.Run {
		t.Errorf("Decide() = %+v, want Run=false while FatalIntrospectorError persists", d)
	}

	// A spec edit clears the terminal state.
	live.Spec.Image = "img:2"
	d = Decide(live, cached, DecisionFlags{})
	if !d.Run {
		t.Errorf("Decide() = %+v, want Run=true once the spec changes past a fatal introspector error", d)
	}
}

func TestDecide_NoChangeNoRecheckSkips(t *testing.T) {
	cached := domainAt("7", 2, "img:1")
	live := domainAt("7", 2, "img:1")
	d := Decide(live, cached, DecisionFlags{})
	if d.Run {
		t.Errorf("Decide() = %+v, want Run=false (rule 6: refresh only)", d)
	}
}

func TestNeedsOnlineUpdateCoercion(t *testing.T) {
	allowed := []string{"introspectVersion", "configuration.model.onlineUpdate"}

	mk := func(introspectVersion string, onlineUpdate bool, image string) *weblogicv1.Domain {
		d := domainAt("1", 1, image)
		d.Spec.DomainHomeSourceType = weblogicv1.DomainHomeSourceTypeFromModel
		d.Spec.IntrospectVersion = introspectVersion
		d.Spec.Configuration.Model.OnlineUpdate.Enabled = onlineUpdate
		return d
	}

	t.Run("only introspectVersion changed does not coerce", func(t *testing.T) {
		cached := mk("v1", true, "img:1")
		live := mk("v2", true, "img:1")
		if NeedsOnlineUpdateCoercion(live, cached, allowed) {
			t.Errorf("NeedsOnlineUpdateCoercion() = true, want false")
		}
	})

	t.Run("image also changed forces coercion", func(t *testing.T) {
		cached := mk("v1", true, "img:1")
		live := mk("v2", true, "img:2")
		if !NeedsOnlineUpdateCoercion(live, cached, allowed) {
			t.Errorf("NeedsOnlineUpdateCoercion() = false, want true")
		}
	})

	t.Run("onlineUpdate disabled never coerces", func(t *testing.T) {
		cached := mk("v1", false, "img:1")
		live := mk("v2", false, "img:2")
		if NeedsOnlineUpdateCoercion(live, cached, allowed) {
			t.Errorf("NeedsOnlineUpdateCoercion() = true, want false when onlineUpdate disabled")
		}
	})

	t.Run("non-FromModel domains never coerce", func(t *testing.T) {
		cached := mk("v1", true, "img:1")
		cached.Spec.DomainHomeSourceType = weblogicv1.DomainHomeSourceTypeImage
		live := mk("v2", true, "img:2")
		live.Spec.DomainHomeSourceType = weblogicv1.DomainHomeSourceTypeImage
		if NeedsOnlineUpdateCoercion(live, cached, allowed) {
			t.Errorf("NeedsOnlineUpdateCoercion() = true, want false for non-FromModel source")
		}
	})
}
