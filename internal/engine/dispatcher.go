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
	"strings"
	"sync"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/watch"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
)

// IntrospectorPodStatus is the terminal-ish classification the dispatcher
// derives from an IntrospectorJob Pod event (spec §4.4 "Inspect pod status").
type IntrospectorPodStatus int

const (
	// IntrospectorPodRunning is the default when nothing terminal was observed.
	IntrospectorPodRunning IntrospectorPodStatus = iota
	// IntrospectorPodProgressing covers "container waiting during success",
	// e.g. still pulling the image for an otherwise-succeeding pod.
	IntrospectorPodProgressing
	// IntrospectorPodFailed covers failed/waiting-with-message/terminated/
	// unschedulable container states.
	IntrospectorPodFailed
)

// MakeRightTrigger starts (or re-triggers) make-right for one domain. It is
// supplied by the process wiring layer (outside this package, to avoid the
// import cycle engine -> steps -> engine), which is expected to run
// engine.Decide/DecideWithMaxRetries against the Domain Presence Cache and
// hand the result to a FiberGate (spec §4.5).
type MakeRightTrigger func(ctx context.Context, namespace, domainUID string, flags DecisionFlags)

// Dispatcher implements the Watch Dispatcher (spec §4.4): it is the single
// consumer of watch.Event streams for Domain/Pod/Service/ConfigMap/Event and
// owns translating each into a Domain Presence Cache mutation plus, where the
// per-kind rule calls for it, a MakeRightTrigger invocation.
type Dispatcher struct {
	Cache            *Cache
	TriggerMakeRight MakeRightTrigger
	Log              logr.Logger

	// ScriptConfigMapName maps a domainUID to the name of its shared scripts
	// ConfigMap (spec §4.4 ConfigMap row).
	ScriptConfigMapName func(domainUID string) string
	// RecreateScriptConfigMap is invoked when the script ConfigMap is
	// observed changed or deleted.
	RecreateScriptConfigMap func(ctx context.Context, namespace, domainUID string) error

	// OnIntrospectorPodStatus is invoked for every IntrospectorJob Pod
	// ADDED/MODIFIED event with the status classification derived from it.
	OnIntrospectorPodStatus func(ctx context.Context, namespace, domainUID string, status IntrospectorPodStatus, message string)

	readinessParsers []ReadinessParser

	coalesceMu sync.Mutex
	coalesced  map[string]int // domainUID -> count, for the metric in §11

	// OnCoalescedEvent is called every time a MODIFIED Domain event arrives
	// while a fiber is already active for that domainUID (spec §5 "the
	// dispatcher may coalesce multiple MODIFIED events if a fiber is already
	// running"), for internal/metrics' coalesced_events_total (spec §11).
	OnCoalescedEvent func(domainUID string)
	// IsFiberActive reports whether a make-right fiber is currently running
	// for domainUID, used only to decide whether to count a coalesced event.
	IsFiberActive func(domainUID string) bool
}

// NewDispatcher creates a Dispatcher using the default readiness parser chain.
func NewDispatcher(cache *Cache, trigger MakeRightTrigger, log logr.Logger) *Dispatcher {
	return &Dispatcher{
		Cache:            cache,
		TriggerMakeRight: trigger,
		Log:              log,
		readinessParsers: DefaultReadinessParsers(),
		coalesced:        make(map[string]int),
	}
}

// SetReadinessParsers overrides the parser chain used by HandleEvent.
func (d *Dispatcher) SetReadinessParsers(parsers []ReadinessParser) { d.readinessParsers = parsers }

func (d *Dispatcher) trigger(ctx context.Context, namespace, domainUID string, flags DecisionFlags) {
	if d.TriggerMakeRight == nil {
		return
	}
	d.TriggerMakeRight(ctx, namespace, domainUID, flags)
}

// HandleDomainEvent implements spec §4.4's Domain row, including the
// metadata-only MODIFIED special case: a MODIFIED event whose
// metadata.generation equals the cached Domain's generation carries no
// spec/status change worth a full make-right and is routed to a cache
// refresh only (spec §4.4 "Stale events").
func (d *Dispatcher) HandleDomainEvent(ctx context.Context, eventType watch.EventType, domain *weblogicv1.Domain) {
	if domain == nil {
		return
	}
	namespace, domainUID := domain.Namespace, domain.Spec.DomainUID
	info := d.Cache.GetOrRegister(namespace, domainUID, func() *DomainPresenceInfo {
		return NewDomainPresenceInfo(namespace, domainUID, nil)
	})

	switch eventType {
	case watch.Deleted:
		info.SetDomain(domain)
		d.trigger(ctx, namespace, domainUID, DecisionFlags{Interrupt: true, Deleting: true, ExplicitRecheck: true})
	case watch.Added:
		info.SetDomain(domain)
		d.trigger(ctx, namespace, domainUID, DecisionFlags{Interrupt: true})
	case watch.Modified:
		cached := info.Domain()
		metadataOnly := cached != nil && cached.Generation == domain.Generation
		info.SetDomain(domain)
		if metadataOnly {
			return
		}
		if d.IsFiberActive != nil && d.IsFiberActive(domainUID) {
			d.recordCoalesced(domainUID)
			return
		}
		d.trigger(ctx, namespace, domainUID, DecisionFlags{})
	}
}

func (d *Dispatcher) recordCoalesced(domainUID string) {
	d.coalesceMu.Lock()
	d.coalesced[domainUID]++
	d.coalesceMu.Unlock()
	if d.OnCoalescedEvent != nil {
		d.OnCoalescedEvent(domainUID)
	}
}

// CoalescedEventCount returns the number of MODIFIED Domain events coalesced
// for domainUID so far, for tests and diagnostics.
func (d *Dispatcher) CoalescedEventCount(domainUID string) int {
	d.coalesceMu.Lock()
	defer d.coalesceMu.Unlock()
	return d.coalesced[domainUID]
}

// HandlePodEvent implements spec §4.4's ServerPod and IntrospectorJob Pod
// rows, distinguished by which ownership label the pod carries.
func (d *Dispatcher) HandlePodEvent(ctx context.Context, eventType watch.EventType, pod *corev1.Pod) {
	if pod == nil {
		return
	}
	domainUID := pod.Labels[constants.LabelDomainUID]
	if domainUID == "" {
		return
	}
	if jobName := pod.Labels[constants.LabelJobName]; jobName != "" {
		d.handleIntrospectorPod(ctx, pod.Namespace, domainUID, eventType, pod)
		return
	}

	serverName := pod.Labels[constants.LabelServerName]
	if serverName == "" {
		return
	}
	info := d.Cache.Get(pod.Namespace, domainUID)
	if info == nil {
		return
	}

	switch eventType {
	case watch.Added:
		info.SetServerPod(serverName, pod)
		info.SetBeingDeleted(serverName, false)
	case watch.Modified:
		info.SetServerPod(serverName, pod)
	case watch.Deleted:
		intentional := info.IsBeingDeleted(serverName)
		info.DeleteServerPod(serverName, pod.UID)
		info.SetBeingDeleted(serverName, false)
		if !intentional && !info.Deleting() {
			d.trigger(ctx, pod.Namespace, domainUID, DecisionFlags{Interrupt: true, ExplicitRecheck: true})
		}
	}
}

func (d *Dispatcher) handleIntrospectorPod(ctx context.Context, namespace, domainUID string, eventType watch.EventType, pod *corev1.Pod) {
	if eventType == watch.Deleted || d.OnIntrospectorPodStatus == nil {
		return
	}
	status, message := classifyIntrospectorPod(pod)
	if status == IntrospectorPodRunning {
		return
	}
	d.OnIntrospectorPodStatus(ctx, namespace, domainUID, status, message)
}

// classifyIntrospectorPod implements spec §4.4's "if failed/waiting-with-
// message/terminated/unschedulable, dispatch a DomainStatus failure step; if
// container waiting during success, dispatch 'progressing'".
func classifyIntrospectorPod(pod *corev1.Pod) (IntrospectorPodStatus, string) {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodScheduled && cond.Status == corev1.ConditionFalse && cond.Reason == "Unschedulable" {
			return IntrospectorPodFailed, cond.Message
		}
	}
	if pod.Status.Phase == corev1.PodFailed {
		return IntrospectorPodFailed, pod.Status.Message
	}

	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Terminated != nil && cs.State.Terminated.ExitCode != 0 {
			return IntrospectorPodFailed, cs.State.Terminated.Message
		}
		if cs.State.Waiting != nil && cs.State.Waiting.Message != "" {
			if pod.Status.Phase == corev1.PodSucceeded {
				return IntrospectorPodProgressing, cs.State.Waiting.Message
			}
			return IntrospectorPodFailed, cs.State.Waiting.Message
		}
	}
	return IntrospectorPodRunning, ""
}

// HandleServiceEvent implements spec §4.4's Service row.
func (d *Dispatcher) HandleServiceEvent(ctx context.Context, eventType watch.EventType, svc *corev1.Service) {
	if svc == nil {
		return
	}
	domainUID := svc.Labels[constants.LabelDomainUID]
	if domainUID == "" {
		return
	}
	info := d.Cache.Get(svc.Namespace, domainUID)
	if info == nil {
		return
	}

	switch eventType {
	case watch.Added, watch.Modified:
		info.SetService(svc.Name, svc)
	case watch.Deleted:
		info.DeleteService(svc.Name, svc.UID)
		if !info.Deleting() {
			d.trigger(ctx, svc.Namespace, domainUID, DecisionFlags{Interrupt: true, ExplicitRecheck: true})
		}
	}
}

// HandleConfigMapEvent implements spec §4.4's ConfigMap row: only the shared
// scripts ConfigMap is acted on; any other ConfigMap (e.g. the introspector's
// topology ConfigMap) is ignored by the dispatcher.
func (d *Dispatcher) HandleConfigMapEvent(ctx context.Context, eventType watch.EventType, namespace, name string) {
	domainUID := domainUIDFromScriptConfigMapName(d.ScriptConfigMapName, name)
	if domainUID == "" {
		return
	}
	if eventType != watch.Modified && eventType != watch.Deleted {
		return
	}
	if d.RecreateScriptConfigMap == nil {
		return
	}
	if err := d.RecreateScriptConfigMap(ctx, namespace, domainUID); err != nil && d.Log.GetSink() != nil {
		d.Log.Error(err, "recreating script configmap", "namespace", namespace, "configMap", name)
	}
}

func domainUIDFromScriptConfigMapName(nameFor func(string) string, observedName string) string {
	if nameFor == nil {
		return ""
	}
	if suffix := constants.SuffixScriptConfigMap; len(observedName) > len(suffix) && strings.HasSuffix(observedName, suffix) {
		candidate := strings.TrimSuffix(observedName, suffix)
		if nameFor(candidate) == observedName {
			return candidate
		}
	}
	return ""
}

// HandleEvent implements spec §4.4's Event (readiness) row: it parses the
// event message for a readiness-probe token (falling back to the cached
// pod's PodCondition when the message is not recognized) and records the
// result in the Domain Presence Cache.
func (d *Dispatcher) HandleEvent(_ context.Context, namespace, domainUID, serverName string, ev *corev1.Event) {
	if ev == nil || serverName == "" {
		return
	}
	info := d.Cache.Get(namespace, domainUID)
	if info == nil {
		return
	}
	pod, _ := info.ServerPod(serverName)
	parsers := d.readinessParsers
	if parsers == nil {
		parsers = DefaultReadinessParsers()
	}
	status, ok := ParseReadiness(parsers, ReadinessSource{EventMessage: ev.Message, Pod: pod})
	if !ok {
		return
	}
	info.SetLastKnownServerStatus(serverName, status)
}

// HandleWatchGone implements spec §9 "Watchers": on a 410 Gone the caller
// must re-LIST the kind and reseed affected DomainPresenceInfo maps; this
// marks every domain in namespace unpopulated so the next make-right's
// DomainPresence step performs that LIST (spec §3 invariant).
func (d *Dispatcher) HandleWatchGone(namespace string) {
	d.Cache.MarkAllUnpopulated(namespace)
}
