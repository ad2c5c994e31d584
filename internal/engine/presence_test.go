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
	"sync"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestIsStale(t *testing.T) {
	tests := []struct {
		name       string
		cur, inc   string
		wantStale  bool
	}{
		{"incoming older", "10", "5", true},
		{"incoming equal", "10", "10", true},
		{"incoming newer", "10", "11", false},
		{"non-numeric identical", "abc", "abc", true},
		{"non-numeric different", "abc", "def", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(tt.cur, tt.inc); got != tt.wantStale {
				t.Errorf("IsStale(%q, %q) = %v, want %v", tt.cur, tt.inc, got, tt.wantStale)
			}
		})
	}
}

func TestCache_RegisterGetUnregister(t *testing.T) {
	c := NewCache()
	info := NewDomainPresenceInfo("ns1", "uid1", nil)
	c.Register(info)

	if got := c.Get("ns1", "uid1"); got != info {
		t.Fatalf("Get() = %v, want %v", got, info)
	}
	if got := c.Get("ns1", "missing"); got != nil {
		t.Errorf("Get() for missing uid = %v, want nil", got)
	}

	c.Unregister("ns1", "uid1")
	if got := c.Get("ns1", "uid1"); got != nil {
		t.Errorf("Get() after Unregister = %v, want nil", got)
	}
}

func TestCache_GetOrRegisterCreatesOnce(t *testing.T) {
	c := NewCache()
	calls := 0
	create := func() *DomainPresenceInfo {
		calls++
		return NewDomainPresenceInfo("ns", "uid", nil)
	}

	first := c.GetOrRegister("ns", "uid", create)
	second := c.GetOrRegister("ns", "uid", create)

	if first != second {
		t.Errorf("GetOrRegister() returned different instances across calls")
	}
	if calls != 1 {
		t.Errorf("create() called %d times, want 1", calls)
	}
}

// TestDomainPresenceInfo_PodEventsAreLastWriteWins is P6: after the final
// watch event for a server is applied, the cache must match that event's
// payload.
func TestDomainPresenceInfo_PodEventsAreLastWriteWins(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)

	pod1 := &corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodPending}}
	pod2 := &corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodRunning}}

	info.SetServerPod("managed-server1", pod1)
	info.SetServerPod("managed-server1", pod2)

	got, ok := info.ServerPod("managed-server1")
	if !ok {
		t.Fatalf("ServerPod() not found")
	}
	if got.Status.Phase != corev1.PodRunning {
		t.Errorf("ServerPod() phase = %v, want Running (last event wins)", got.Status.Phase)
	}
}

func TestDomainPresenceInfo_DeleteServerPodRemovesOnlyMatchingEntry(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	info.SetServerPod("managed-server1", &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "pod-1"}})
	info.SetServerPod("managed-server2", &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "pod-2"}})

	info.DeleteServerPod("managed-server1", "pod-1")

	if _, ok := info.ServerPod("managed-server1"); ok {
		t.Errorf("managed-server1 still present after delete")
	}
	if _, ok := info.ServerPod("managed-server2"); !ok {
		t.Errorf("managed-server2 should remain present")
	}
}

func TestDomainPresenceInfo_DeleteServerPodIgnoresStaleUID(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	info.SetServerPod("managed-server1", &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "pod-new"}})

	// A reordered DELETE for the pod's previous incarnation must not evict
	// the replacement already observed.
	info.DeleteServerPod("managed-server1", "pod-old")

	if _, ok := info.ServerPod("managed-server1"); !ok {
		t.Errorf("stale-UID delete evicted the current pod")
	}

	info.DeleteServerPod("managed-server1", "pod-new")
	if _, ok := info.ServerPod("managed-server1"); ok {
		t.Errorf("matching-UID delete left the pod cached")
	}
}

func TestDomainPresenceInfo_DeleteServiceIgnoresStaleUID(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	info.SetService("uid-AdminServer", &corev1.Service{ObjectMeta: metav1.ObjectMeta{UID: "svc-new"}})

	info.DeleteService("uid-AdminServer", "svc-old")
	if _, ok := info.ServicesSnapshot()["uid-AdminServer"]; !ok {
		t.Errorf("stale-UID delete evicted the current service")
	}

	info.DeleteService("uid-AdminServer", "svc-new")
	if _, ok := info.ServicesSnapshot()["uid-AdminServer"]; ok {
		t.Errorf("matching-UID delete left the service cached")
	}
}

func TestDomainPresenceInfo_FailureCount(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	if info.FailureCount() != 0 {
		t.Fatalf("initial FailureCount() = %d, want 0", info.FailureCount())
	}
	info.IncrementFailureCount()
	info.IncrementFailureCount()
	if info.FailureCount() != 2 {
		t.Errorf("FailureCount() = %d, want 2", info.FailureCount())
	}
	info.ResetFailureCount()
	if info.FailureCount() != 0 {
		t.Errorf("FailureCount() after reset = %d, want 0", info.FailureCount())
	}
}

func TestDomainPresenceInfo_ConcurrentPodWritesAreRaceFree(t *testing.T) {
	info := NewDomainPresenceInfo("ns", "uid", nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info.SetServerPod("managed-server1", &corev1.Pod{})
			_ = info.ServerPodsSnapshot()
		}(i)
	}
	wg.Wait()
	if _, ok := info.ServerPod("managed-server1"); !ok {
		t.Errorf("expected managed-server1 present after concurrent writes")
	}
}

func TestCache_MarkAllUnpopulated(t *testing.T) {
	c := NewCache()
	a := NewDomainPresenceInfo("ns", "a", nil)
	b := NewDomainPresenceInfo("ns", "b", nil)
	a.SetPopulated(true)
	b.SetPopulated(true)
	c.Register(a)
	c.Register(b)

	c.MarkAllUnpopulated("ns")

	if a.Populated() || b.Populated() {
		t.Errorf("expected both domains unpopulated after MarkAllUnpopulated")
	}
}
