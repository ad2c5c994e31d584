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

// Package steps contains the concrete Step implementations the Make-Right
// Planner chains together (spec §4.5, §10.9). Each step is a small immutable
// value implementing engine.Step; Kubernetes access goes through
// kubeclient.Interface so steps are unit-testable against
// sigs.k8s.io/controller-runtime/pkg/client/fake.
package steps

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/kubeclient"
)

// infoOf fetches the *engine.DomainPresenceInfo this chain is operating on.
// Every Packet constructed by engine.NewPacket carries one; a missing entry
// is a programming error in the caller that built the Packet.
func infoOf(packet *engine.Packet) (*engine.DomainPresenceInfo, error) {
	info, ok := packet.Info()
	if !ok {
		return nil, fmt.Errorf("packet has no DomainPresenceInfo")
	}
	return info, nil
}

// ownerLabels returns the label set every engine-created resource for
// domainUID carries, so ownership is recoverable by label selector rather
// than by in-process parent pointer (spec §9).
func ownerLabels(domainUID, serverName string) map[string]string {
	l := map[string]string{
		constants.LabelDomainUID:         domainUID,
		constants.LabelCreatedByOperator: constants.LabelValueCreatedByOperatorTrue,
		constants.LabelAppManagedBy:      constants.LabelValueAppManagedByOperator,
	}
	if serverName != "" {
		l[constants.LabelServerName] = serverName
	}
	return l
}

// UpHead clears the domain's "deleting" flag at the start of an up-plan
// (spec §4.5 "UpHead(clear deleting)").
type UpHead struct{}

func (UpHead) Name() string { return "UpHead" }

func (UpHead) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	info.SetDeleting(false)
	return engine.EndChain(), nil
}

// DownHead sets the domain's "deleting" flag and records that the status
// updater for this domain must stop (spec §4.5 "DownHead(set deleting, stop
// status updater)"). The actual status-updater stop is performed by the
// caller via the StopStatusUpdater hook, since the steps package has no
// reference to the process-wide status gate registry.
type DownHead struct {
	StopStatusUpdater func(domainUID string)
}

func (DownHead) Name() string { return "DownHead" }

func (s DownHead) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	info.SetDeleting(true)
	if s.StopStatusUpdater != nil {
		s.StopStatusUpdater(info.DomainUID)
	}
	return engine.EndChain(), nil
}

// PopulatePacketServerMaps seeds the Packet's per-server state map from the
// cached Domain status (spec §4.5: "Both are preceded by a
// PopulatePacketServerMaps step").
type PopulatePacketServerMaps struct{}

func (PopulatePacketServerMaps) Name() string { return "PopulatePacketServerMaps" }

func (PopulatePacketServerMaps) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	m := make(map[string]string)
	if d := info.Domain(); d != nil {
		for _, s := range d.Status.Servers {
			m[s.ServerName] = s.State
		}
	}
	packet.Put(engine.KeyServerStatusMap, m)
	return engine.EndChain(), nil
}

// DomainPresence lists existing pods/services for the domain and seeds the
// DomainPresenceInfo maps, but only if info is not already Populated (spec
// §3 invariant: "populated=false ⇒ next make-right seeds the maps from a
// LIST before any CREATE/DELETE").
type DomainPresence struct {
	Client kubeclient.Interface
}

func (DomainPresence) Name() string { return "DomainPresence" }

func (s DomainPresence) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	if info.Populated() {
		return engine.EndChain(), nil
	}

	var pods corev1.PodList
	if err := s.Client.List(ctx, &pods, clientInNamespace(info.Namespace), clientMatchingLabels(map[string]string{
		constants.LabelDomainUID: info.DomainUID,
	})); err != nil {
		return engine.NextAction{}, fmt.Errorf("listing pods for domain %s: %w", info.DomainUID, err)
	}
	for i := range pods.Items {
		p := &pods.Items[i]
		if name := p.Labels[constants.LabelServerName]; name != "" {
			info.SetServerPod(name, p)
		}
	}

	var svcs corev1.ServiceList
	if err := s.Client.List(ctx, &svcs, clientInNamespace(info.Namespace), clientMatchingLabels(map[string]string{
		constants.LabelDomainUID: info.DomainUID,
	})); err != nil {
		return engine.NextAction{}, fmt.Errorf("listing services for domain %s: %w", info.DomainUID, err)
	}
	for i := range svcs.Items {
		info.SetService(svcs.Items[i].Name, &svcs.Items[i])
	}

	info.SetPopulated(true)
	return engine.EndChain(), nil
}

// DeleteAllDomainResources deletes every Pod/Service/ConfigMap/Job the engine
// created for the domain (spec §4.5 down-plan, §8 scenario 6: "every
// pod/service with weblogic.createdByOperator=true ... with matching
// domainUID is deleted").
type DeleteAllDomainResources struct {
	Client kubeclient.Interface
}

func (DeleteAllDomainResources) Name() string { return "DeleteAllDomainResources" }

func (s DeleteAllDomainResources) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	sel := clientMatchingLabels(map[string]string{
		constants.LabelDomainUID:         info.DomainUID,
		constants.LabelCreatedByOperator: constants.LabelValueCreatedByOperatorTrue,
	})
	ns := clientInNamespace(info.Namespace)

	var pods corev1.PodList
	if err := s.Client.List(ctx, &pods, ns, sel); err != nil {
		return engine.NextAction{}, fmt.Errorf("listing pods to delete: %w", err)
	}
	for i := range pods.Items {
		if serverName := pods.Items[i].Labels[constants.LabelServerName]; serverName != "" {
			info.SetBeingDeleted(serverName, true)
		}
		if err := s.Client.Delete(ctx, &pods.Items[i]); err != nil && !apierrors.IsNotFound(err) {
			return engine.NextAction{}, fmt.Errorf("deleting pod %s: %w", pods.Items[i].Name, err)
		}
	}

	var svcs corev1.ServiceList
	if err := s.Client.List(ctx, &svcs, ns, sel); err != nil {
		return engine.NextAction{}, fmt.Errorf("listing services to delete: %w", err)
	}
	for i := range svcs.Items {
		if err := s.Client.Delete(ctx, &svcs.Items[i]); err != nil && !apierrors.IsNotFound(err) {
			return engine.NextAction{}, fmt.Errorf("deleting service %s: %w", svcs.Items[i].Name, err)
		}
	}

	job := introspectorJobStub(info.Namespace, info.DomainUID)
	if err := s.Client.Delete(ctx, job); err != nil && !apierrors.IsNotFound(err) {
		return engine.NextAction{}, fmt.Errorf("deleting introspector job: %w", err)
	}

	return engine.EndChain(), nil
}

// Unregister removes the DomainPresenceInfo from the Domain Presence Cache
// at the end of a successful down-plan (spec §3 "Lifetime").
type Unregister struct {
	Cache *engine.Cache
}

func (Unregister) Name() string { return "Unregister" }

func (s Unregister) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	s.Cache.Unregister(info.Namespace, info.DomainUID)
	return engine.EndChain(), nil
}

// StartStatusUpdates installs the periodic status-read task for the domain.
// It sits between validation and admin bring-up in the up-plan (spec §4.5
// "schedule status updater") so status publishes while a slow or suspended
// bring-up is still in flight, not only after the whole plan completes. The
// actual scheduling is performed through the hook, since the steps package
// has no reference to the process-wide status gate registry.
type StartStatusUpdates struct {
	Schedule func(namespace, domainUID string)
}

func (StartStatusUpdates) Name() string { return "StartStatusUpdates" }

func (s StartStatusUpdates) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	if s.Schedule != nil {
		s.Schedule(info.Namespace, info.DomainUID)
	}
	return engine.EndChain(), nil
}

// Tail finalizes a successful up-plan by clearing the in-memory failure
// counter (spec §4.5 "Tail(complete info)"). It does not touch the Domain's
// conditions.
type Tail struct{}

func (Tail) Name() string { return "Tail" }

func (Tail) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	info.ResetFailureCount()
	return engine.EndChain(), nil
}

func introspectorJobStub(namespace, domainUID string) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.ToJobIntrospectorName(domainUID),
			Namespace: namespace,
		},
	}
}

// namespacedName is a small convenience constructor used across this
// package's steps.
func namespacedName(namespace, name string) types.NamespacedName {
	return types.NamespacedName{Namespace: namespace, Name: name}
}

// weblogicDomain is a type alias kept local to shorten long signatures below.
type weblogicDomain = weblogicv1.Domain
