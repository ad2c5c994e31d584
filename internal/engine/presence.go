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
	"maps"
	"strconv"
	"sync"
	"sync/atomic"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
)

// DomainPresenceInfo is the in-memory view of one live domain (spec §3). It is
// referenced by exactly one entry of Cache per (namespace, domainUID); a
// Packet references exactly one DomainPresenceInfo and no two concurrent
// Fibers ever share one.
type DomainPresenceInfo struct {
	Namespace string
	DomainUID string

	mu     sync.RWMutex
	domain *weblogicv1.Domain

	podsMu     sync.RWMutex
	serverPods map[string]*corev1.Pod

	svcMu    sync.RWMutex
	services map[string]*corev1.Service

	statusMu          sync.RWMutex
	lastKnownStatus   map[string]string
	beingDeletedMu    sync.RWMutex
	beingDeleted      map[string]bool

	deleting  atomic.Bool
	populated atomic.Bool

	failureMu    sync.Mutex
	failureCount int
}

// NewDomainPresenceInfo creates an empty DomainPresenceInfo for (ns, uid).
// domain may be nil for the brief window between a watch ADDED event and the
// first successful GET/LIST.
func NewDomainPresenceInfo(ns, uid string, domain *weblogicv1.Domain) *DomainPresenceInfo {
	return &DomainPresenceInfo{
		Namespace:       ns,
		DomainUID:       uid,
		domain:          domain,
		serverPods:      make(map[string]*corev1.Pod),
		services:        make(map[string]*corev1.Service),
		lastKnownStatus: make(map[string]string),
		beingDeleted:    make(map[string]bool),
	}
}

// Domain returns the last observed Domain object, or nil if none has been
// seen yet.
func (dpi *DomainPresenceInfo) Domain() *weblogicv1.Domain {
	dpi.mu.RLock()
	defer dpi.mu.RUnlock()
	return dpi.domain
}

// SetDomain replaces the cached Domain snapshot.
func (dpi *DomainPresenceInfo) SetDomain(d *weblogicv1.Domain) {
	dpi.mu.Lock()
	defer dpi.mu.Unlock()
	dpi.domain = d
}

// Deleting reports whether a down-plan is currently active for this domain.
// While true, spec §3 forbids starting an up-plan.
func (dpi *DomainPresenceInfo) Deleting() bool    { return dpi.deleting.Load() }
func (dpi *DomainPresenceInfo) SetDeleting(v bool) { dpi.deleting.Store(v) }

// Populated reports whether the server/service maps have been seeded from a
// LIST. Until true, the next make-right must LIST before issuing any
// CREATE/DELETE (spec §3 invariant).
func (dpi *DomainPresenceInfo) Populated() bool     { return dpi.populated.Load() }
func (dpi *DomainPresenceInfo) SetPopulated(v bool) { dpi.populated.Store(v) }

// FailureCount returns the number of consecutive make-right exceptions
// recorded since the last successful run or spec change.
func (dpi *DomainPresenceInfo) FailureCount() int {
	dpi.failureMu.Lock()
	defer dpi.failureMu.Unlock()
	return dpi.failureCount
}

// IncrementFailureCount bumps the failure counter and returns the new value.
func (dpi *DomainPresenceInfo) IncrementFailureCount() int {
	dpi.failureMu.Lock()
	defer dpi.failureMu.Unlock()
	dpi.failureCount++
	return dpi.failureCount
}

// ResetFailureCount clears the failure counter, e.g. after a spec change.
func (dpi *DomainPresenceInfo) ResetFailureCount() {
	dpi.failureMu.Lock()
	defer dpi.failureMu.Unlock()
	dpi.failureCount = 0
}

// SetServerPod records the last observed Pod for serverName.
func (dpi *DomainPresenceInfo) SetServerPod(serverName string, pod *corev1.Pod) {
	dpi.podsMu.Lock()
	defer dpi.podsMu.Unlock()
	dpi.serverPods[serverName] = pod
}

// DeleteServerPod removes the cached Pod for serverName, but only when uid
// matches the cached object's UID (spec §4.3: "On DELETE, the cached object
// is dropped only if the removed UID matches") — a stale DELETE for a pod
// that has since been recreated must not evict its replacement. An empty uid
// skips the check, for callers that hold no UID (a DeletedFinalStateUnknown
// with no final object).
func (dpi *DomainPresenceInfo) DeleteServerPod(serverName string, uid types.UID) {
	dpi.podsMu.Lock()
	defer dpi.podsMu.Unlock()
	if cur, ok := dpi.serverPods[serverName]; ok {
		if uid != "" && cur != nil && cur.UID != uid {
			return
		}
		delete(dpi.serverPods, serverName)
	}
}

// ServerPod returns the cached Pod for serverName, and whether it is present.
func (dpi *DomainPresenceInfo) ServerPod(serverName string) (*corev1.Pod, bool) {
	dpi.podsMu.RLock()
	defer dpi.podsMu.RUnlock()
	p, ok := dpi.serverPods[serverName]
	return p, ok
}

// ServerPodsSnapshot returns a shallow copy of the server-pod map, safe to
// iterate without holding the DomainPresenceInfo lock (spec §9: "never
// iterate and mutate under the same lock; snapshot first").
func (dpi *DomainPresenceInfo) ServerPodsSnapshot() map[string]*corev1.Pod {
	dpi.podsMu.RLock()
	defer dpi.podsMu.RUnlock()
	return maps.Clone(dpi.serverPods)
}

// SetService records the last observed Service for serviceName.
func (dpi *DomainPresenceInfo) SetService(serviceName string, svc *corev1.Service) {
	dpi.svcMu.Lock()
	defer dpi.svcMu.Unlock()
	dpi.services[serviceName] = svc
}

// DeleteService removes the cached Service for serviceName, under the same
// UID-match rule as DeleteServerPod.
func (dpi *DomainPresenceInfo) DeleteService(serviceName string, uid types.UID) {
	dpi.svcMu.Lock()
	defer dpi.svcMu.Unlock()
	if cur, ok := dpi.services[serviceName]; ok {
		if uid != "" && cur != nil && cur.UID != uid {
			return
		}
		delete(dpi.services, serviceName)
	}
}

// ServicesSnapshot returns a shallow copy of the service map.
func (dpi *DomainPresenceInfo) ServicesSnapshot() map[string]*corev1.Service {
	dpi.svcMu.RLock()
	defer dpi.svcMu.RUnlock()
	return maps.Clone(dpi.services)
}

// SetLastKnownServerStatus records the textual readiness status parsed from a
// readiness Event for serverName (spec §4.4 Event row).
func (dpi *DomainPresenceInfo) SetLastKnownServerStatus(serverName, status string) {
	dpi.statusMu.Lock()
	defer dpi.statusMu.Unlock()
	dpi.lastKnownStatus[serverName] = status
}

// LastKnownServerStatus returns the last readiness status recorded for
// serverName.
func (dpi *DomainPresenceInfo) LastKnownServerStatus(serverName string) (string, bool) {
	dpi.statusMu.RLock()
	defer dpi.statusMu.RUnlock()
	s, ok := dpi.lastKnownStatus[serverName]
	return s, ok
}

// SetBeingDeleted marks serverName as having an in-flight, intentional
// delete so the dispatcher's Pod-DELETED handler (spec §4.4) can distinguish
// an operator-initiated delete from an external one.
func (dpi *DomainPresenceInfo) SetBeingDeleted(serverName string, v bool) {
	dpi.beingDeletedMu.Lock()
	defer dpi.beingDeletedMu.Unlock()
	if !v {
		delete(dpi.beingDeleted, serverName)
		return
	}
	dpi.beingDeleted[serverName] = true
}

// IsBeingDeleted reports whether serverName has an in-flight, intentional
// delete marker set.
func (dpi *DomainPresenceInfo) IsBeingDeleted(serverName string) bool {
	dpi.beingDeletedMu.RLock()
	defer dpi.beingDeletedMu.RUnlock()
	return dpi.beingDeleted[serverName]
}

// Cache is the process-wide Domain Presence Cache: namespace -> domainUID ->
// DomainPresenceInfo (spec §3). It is created once at engine start and lives
// for the process lifetime; individual entries are created on first Domain
// ADDED/MODIFIED and destroyed by Unregister at the end of a successful
// down-plan.
type Cache struct {
	mu sync.RWMutex
	m  map[string]map[string]*DomainPresenceInfo
}

// NewCache creates an empty Domain Presence Cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]map[string]*DomainPresenceInfo)}
}

// Get returns the DomainPresenceInfo for (ns, uid), or nil if none is
// registered.
func (c *Cache) Get(ns, uid string) *DomainPresenceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byUID, ok := c.m[ns]
	if !ok {
		return nil
	}
	return byUID[uid]
}

// GetOrRegister returns the existing DomainPresenceInfo for (ns, uid), or
// registers and returns a freshly created one. create is called only when no
// entry exists yet.
func (c *Cache) GetOrRegister(ns, uid string, create func() *DomainPresenceInfo) *DomainPresenceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	byUID, ok := c.m[ns]
	if !ok {
		byUID = make(map[string]*DomainPresenceInfo)
		c.m[ns] = byUID
	}
	if info, ok := byUID[uid]; ok {
		return info
	}
	info := create()
	byUID[uid] = info
	return info
}

// Register installs info under (info.Namespace, info.DomainUID), overwriting
// any prior entry. There is at most one DomainPresenceInfo per key (spec §3
// invariant); callers that want to preserve an existing entry should use
// GetOrRegister instead.
func (c *Cache) Register(info *DomainPresenceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byUID, ok := c.m[info.Namespace]
	if !ok {
		byUID = make(map[string]*DomainPresenceInfo)
		c.m[info.Namespace] = byUID
	}
	byUID[info.DomainUID] = info
}

// Unregister removes the entry for (ns, uid). Called at the end of a
// successful down-plan (spec §3 "Lifetime").
func (c *Cache) Unregister(ns, uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if byUID, ok := c.m[ns]; ok {
		delete(byUID, uid)
		if len(byUID) == 0 {
			delete(c.m, ns)
		}
	}
}

// Namespaces returns a snapshot of every namespace with at least one
// registered domain.
func (c *Cache) Namespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.m))
	for ns := range c.m {
		out = append(out, ns)
	}
	return out
}

// SnapshotNamespace returns a shallow copy of the uid->info map for ns, safe
// to iterate without holding the Cache lock.
func (c *Cache) SnapshotNamespace(ns string) map[string]*DomainPresenceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.m[ns])
}

// MarkAllUnpopulated clears the Populated flag on every DomainPresenceInfo in
// ns, used after a watch re-LIST following a 410 Gone (spec §9 "Watchers").
func (c *Cache) MarkAllUnpopulated(ns string) {
	for _, info := range c.SnapshotNamespace(ns) {
		info.SetPopulated(false)
	}
}

// IsStale reports whether an incoming object's resourceVersion is older than
// or equal to current's, using a monotonic integer comparison when both are
// numeric. Non-numeric resourceVersions cannot be ordered: they count as
// stale only when identical to a non-empty current value (spec §4.3).
func IsStale(currentResourceVersion, incomingResourceVersion string) bool {
	cur, curErr := strconv.ParseUint(currentResourceVersion, 10, 64)
	in, inErr := strconv.ParseUint(incomingResourceVersion, 10, 64)
	if curErr == nil && inErr == nil {
		return in <= cur
	}
	// Non-numeric resourceVersions (synthetic values from fake clients):
	// treat identical strings as stale, anything else as not stale since we
	// cannot order them.
	return currentResourceVersion != "" && currentResourceVersion == incomingResourceVersion
}
