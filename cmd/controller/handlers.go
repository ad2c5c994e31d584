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

package controller

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/watch"
	toolscache "k8s.io/client-go/tools/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/processor"
)

// unwrap peels a toolscache.DeletedFinalStateUnknown off obj, returning the
// last-known object the informer had cached for it. Informers deliver this
// wrapper to DeleteFunc when a delete event was missed while the watch was
// disconnected, so the handler still needs to inspect the stale object.
func unwrap(obj interface{}) interface{} {
	if d, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
		return d.Obj
	}
	return obj
}

func podIsReady(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// domainHandlers bridges client-go's Add/Update/Delete informer callbacks
// into the watch.EventType vocabulary the Watch Dispatcher's per-kind rules
// are written against (spec §4.4 "Domain" row).
func domainHandlers(d *engine.Dispatcher) toolscache.ResourceEventHandlerFuncs {
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			if dom, ok := obj.(*weblogicv1.Domain); ok {
				d.HandleDomainEvent(context.Background(), watch.Added, dom)
			}
		},
		UpdateFunc: func(_, newObj interface{}) {
			if dom, ok := newObj.(*weblogicv1.Domain); ok {
				d.HandleDomainEvent(context.Background(), watch.Modified, dom)
			}
		},
		DeleteFunc: func(obj interface{}) {
			if dom, ok := unwrap(obj).(*weblogicv1.Domain); ok {
				d.HandleDomainEvent(context.Background(), watch.Deleted, dom)
			}
		},
	}
}

// podHandlers wires Pod informer events into HandlePodEvent, additionally
// signaling the Processor's admin-ready/introspection-done resume channels
// so fibers suspended in WaitForAdminPodReady and AwaitIntrospectorJobComplete
// are woken without polling (spec §4.5 suspension points).
func podHandlers(d *engine.Dispatcher, proc *processor.Processor) toolscache.ResourceEventHandlerFuncs {
	notify := func(pod *corev1.Pod) {
		domainUID := pod.Labels[constants.LabelDomainUID]
		if domainUID == "" {
			return
		}
		// Only a Ready admin pod wakes a fiber suspended in
		// WaitForAdminPodReady; signaling earlier would wake it just to
		// re-suspend on a channel that no longer exists.
		if pod.Labels[constants.LabelServerName] == "AdminServer" && podIsReady(pod) {
			proc.SignalAdminReady(domainUID)
		}
	}
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			if pod, ok := obj.(*corev1.Pod); ok {
				d.HandlePodEvent(context.Background(), watch.Added, pod)
				notify(pod)
			}
		},
		UpdateFunc: func(_, newObj interface{}) {
			if pod, ok := newObj.(*corev1.Pod); ok {
				d.HandlePodEvent(context.Background(), watch.Modified, pod)
				notify(pod)
			}
		},
		DeleteFunc: func(obj interface{}) {
			if pod, ok := unwrap(obj).(*corev1.Pod); ok {
				d.HandlePodEvent(context.Background(), watch.Deleted, pod)
			}
		},
	}
}

// serviceHandlers wires Service informer events into HandleServiceEvent
// (spec §4.4 "Service" row: only a Deleted of a service the cache still
// expects to exist triggers a recheck).
func serviceHandlers(d *engine.Dispatcher) toolscache.ResourceEventHandlerFuncs {
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			if svc, ok := obj.(*corev1.Service); ok {
				d.HandleServiceEvent(context.Background(), watch.Added, svc)
			}
		},
		UpdateFunc: func(_, newObj interface{}) {
			if svc, ok := newObj.(*corev1.Service); ok {
				d.HandleServiceEvent(context.Background(), watch.Modified, svc)
			}
		},
		DeleteFunc: func(obj interface{}) {
			if svc, ok := unwrap(obj).(*corev1.Service); ok {
				d.HandleServiceEvent(context.Background(), watch.Deleted, svc)
			}
		},
	}
}

// configMapHandlers wires ConfigMap informer events into HandleConfigMapEvent
// (spec §4.4 "ConfigMap" row: only the shared scripts ConfigMap matters).
func configMapHandlers(d *engine.Dispatcher) toolscache.ResourceEventHandlerFuncs {
	return toolscache.ResourceEventHandlerFuncs{
		UpdateFunc: func(_, newObj interface{}) {
			if cm, ok := newObj.(*corev1.ConfigMap); ok {
				d.HandleConfigMapEvent(context.Background(), watch.Modified, cm.Namespace, cm.Name)
			}
		},
		DeleteFunc: func(obj interface{}) {
			if cm, ok := unwrap(obj).(*corev1.ConfigMap); ok {
				d.HandleConfigMapEvent(context.Background(), watch.Deleted, cm.Namespace, cm.Name)
			}
		},
	}
}

// eventHandlers wires Event informer adds into HandleEvent (spec §4.4
// "Event" row, readiness parsing). The involved object is resolved through
// the manager's cached client to recover the domainUID/serverName labels an
// Event itself does not carry.
func eventHandlers(d *engine.Dispatcher, reader client.Reader) toolscache.ResourceEventHandlerFuncs {
	handle := func(ev *corev1.Event) {
		if ev.InvolvedObject.Kind != "Pod" {
			return
		}
		var pod corev1.Pod
		key := client.ObjectKey{Namespace: ev.Namespace, Name: ev.InvolvedObject.Name}
		if err := reader.Get(context.Background(), key, &pod); err != nil {
			return
		}
		domainUID := pod.Labels[constants.LabelDomainUID]
		serverName := pod.Labels[constants.LabelServerName]
		if domainUID == "" || serverName == "" {
			return
		}
		d.HandleEvent(context.Background(), ev.Namespace, domainUID, serverName, ev)
	}
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			if ev, ok := obj.(*corev1.Event); ok {
				handle(ev)
			}
		},
		UpdateFunc: func(_, newObj interface{}) {
			if ev, ok := newObj.(*corev1.Event); ok {
				handle(ev)
			}
		},
	}
}
