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

package steps

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/kubeclient"
)

// clusterServerNames returns the member names of a cluster, in natural order.
// Static clusters are sized by Status.Clusters[].MaximumReplicas, as filled in
// by introspection; a cluster not yet introspected has no members.
func clusterServerNames(d *weblogicv1.Domain, cluster weblogicv1.ClusterSpec) []string {
	for _, cs := range d.Status.Clusters {
		if cs.ClusterName == cluster.ClusterName {
			return engine.StaticClusterServerNames(cluster.ClusterName+"-server", int(cs.MaximumReplicas))
		}
	}
	return nil
}

// managedServerOverride finds the ManagedServer override for serverName, if any.
func managedServerOverride(d *weblogicv1.Domain, serverName string) (weblogicv1.ManagedServer, bool) {
	for _, m := range d.Spec.ManagedServers {
		if m.ServerName == serverName {
			return m, true
		}
	}
	return weblogicv1.ManagedServer{}, false
}

// clusterReplicas returns the cluster's desired replica count: the explicit
// override if set, else the introspected maximum.
func clusterReplicas(d *weblogicv1.Domain, cluster weblogicv1.ClusterSpec) int {
	if cluster.Replicas != nil {
		return int(*cluster.Replicas)
	}
	for _, cs := range d.Status.Clusters {
		if cs.ClusterName == cluster.ClusterName {
			return int(cs.MaximumReplicas)
		}
	}
	return 0
}

// buildServerPolicies computes the Server-Policy Evaluator input for every
// member of cluster, sorted by natural-numeric name order (spec §4.6 step 1).
func buildServerPolicies(d *weblogicv1.Domain, cluster weblogicv1.ClusterSpec) []engine.ServerPolicy {
	names := clusterServerNames(d, cluster)
	policies := make([]engine.ServerPolicy, 0, len(names))
	for _, name := range names {
		sp := engine.ServerPolicy{
			ServerName:    name,
			ClusterPolicy: cluster.ServerStartPolicy,
			DomainPolicy:  d.Spec.ServerStartPolicy,
		}
		if override, ok := managedServerOverride(d, name); ok {
			sp.ServerPolicy = override.ServerStartPolicy
		}
		policies = append(policies, sp)
	}
	return engine.SortServerPoliciesByName(policies)
}

// ComputeStartedServers runs the Server-Policy Evaluator for every cluster in
// the domain and stashes the union of every cluster's started set on the
// Packet for the creation/deletion steps that follow (spec §4.6).
type ComputeStartedServers struct{}

func (ComputeStartedServers) Name() string { return "ComputeStartedServers" }

func (ComputeStartedServers) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		packet.Put(engine.KeyStartedSet, map[string]bool{})
		return engine.EndChain(), nil
	}

	started := make(map[string]bool)
	for _, cluster := range d.Spec.Clusters {
		policies := buildServerPolicies(d, cluster)
		replicas := clusterReplicas(d, cluster)
		for name, ok := range engine.StartedSet(policies, replicas) {
			if ok {
				started[name] = true
			}
		}
	}
	packet.Put(engine.KeyStartedSet, started)
	return engine.EndChain(), nil
}

// CreateManagedServers creates a Pod (and internal Service) for every managed
// server the Server-Policy Evaluator decided must run and that is not yet
// observed, idempotently by spec hash like CreateAdminPod (spec §4.5
// "managed-servers bring-up").
type CreateManagedServers struct {
	Client kubeclient.Interface
}

func (CreateManagedServers) Name() string { return "CreateManagedServers" }

func (s CreateManagedServers) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		return engine.EndChain(), nil
	}
	started, _ := packet.Get(engine.KeyStartedSet)
	startedSet, _ := started.(map[string]bool)
	image := resolvedImage(packet, d)

	podReconciler := CreateAdminPod{Client: s.Client}
	svcReconciler := CreateAdminInternalService{Client: s.Client}

	for _, cluster := range d.Spec.Clusters {
		for _, name := range clusterServerNames(d, cluster) {
			if !startedSet[name] {
				continue
			}
			override := cluster.ServerPod
			if m, ok := managedServerOverride(d, name); ok {
				override = mergeServerPod(override, m.ServerPod)
			}
			want := buildServerPod(d, image, name, cluster.ClusterName, override)
			want.Namespace = info.Namespace
			if _, err := podReconciler.reconcilePod(ctx, info, want); err != nil {
				return engine.NextAction{}, err
			}
			svcName := fmt.Sprintf("%s-%s", d.Spec.DomainUID, name)
			if _, err := svcReconciler.reconcileService(ctx, info, svcName, name, corev1.ServiceTypeClusterIP); err != nil {
				return engine.NextAction{}, err
			}
		}
	}
	return engine.EndChain(), nil
}

// mergeServerPod layers a per-server ServerPod override on top of its
// cluster-level base: maps are merged key-by-key, scalar fields are replaced
// wholesale when non-zero.
func mergeServerPod(base, override weblogicv1.ServerPod) weblogicv1.ServerPod {
	out := base
	if len(override.Env) > 0 {
		out.Env = override.Env
	}
	if override.Resources.Limits != nil || override.Resources.Requests != nil {
		out.Resources = override.Resources
	}
	if out.Labels == nil {
		out.Labels = map[string]string{}
	}
	for k, v := range override.Labels {
		out.Labels[k] = v
	}
	if out.Annotations == nil {
		out.Annotations = map[string]string{}
	}
	for k, v := range override.Annotations {
		out.Annotations[k] = v
	}
	if out.NodeSelector == nil {
		out.NodeSelector = map[string]string{}
	}
	for k, v := range override.NodeSelector {
		out.NodeSelector[k] = v
	}
	return out
}

// DeleteUnstartedManagedServers deletes the Pod for every server the cache
// believes exists but that the Server-Policy Evaluator's current started set
// no longer includes (spec §4.6 "a server policy transition from ALWAYS to
// NEVER must eventually delete that server's pod").
type DeleteUnstartedManagedServers struct {
	Client kubeclient.Interface
}

func (DeleteUnstartedManagedServers) Name() string { return "DeleteUnstartedManagedServers" }

func (s DeleteUnstartedManagedServers) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	started, _ := packet.Get(engine.KeyStartedSet)
	startedSet, _ := started.(map[string]bool)

	for serverName, pod := range info.ServerPodsSnapshot() {
		if serverName == AdminServerName || startedSet[serverName] {
			continue
		}
		info.SetBeingDeleted(serverName, true)
		if err := s.Client.Delete(ctx, pod); err != nil && !apierrors.IsNotFound(err) {
			return engine.NextAction{}, fmt.Errorf("deleting stopped server pod %s: %w", pod.Name, err)
		}
		info.DeleteServerPod(serverName, pod.UID)
	}
	return engine.EndChain(), nil
}
