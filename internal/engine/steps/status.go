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
	"reflect"
	"sort"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
	"github.com/wlsoperator/domain-engine/internal/kubeclient"
)

// UpdateDomainStatus is the body of the per-domain status-read task (spec
// §4.7): it collects per-server readiness from the presence cache, assembles
// status.servers[] and status.clusters[], and writes the result back through
// the status subresource. The write is skipped entirely when the assembled
// status matches what the Domain already reports, so a steady-state tick is
// read-only.
type UpdateDomainStatus struct {
	Client kubeclient.Interface
}

func (UpdateDomainStatus) Name() string { return "UpdateDomainStatus" }

func (s UpdateDomainStatus) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		return engine.EndChain(), nil
	}

	servers := assembleServerStatuses(d, info)
	clusters := assembleClusterStatuses(d, servers)

	if reflect.DeepEqual(servers, d.Status.Servers) && reflect.DeepEqual(clusters, d.Status.Clusters) {
		return engine.EndChain(), nil
	}

	updated := d.DeepCopy()
	updated.Status.Servers = servers
	updated.Status.Clusters = clusters
	if err := s.Client.Status().Update(ctx, updated); err != nil {
		if apierrors.IsConflict(err) || apierrors.IsNotFound(err) {
			// A newer Domain is already on its way through the watch; the
			// next tick reads it fresh.
			return engine.EndChain(), nil
		}
		return engine.NextAction{}, weblogicerrors.WrapTransientKubernetesAPI(
			fmt.Errorf("updating domain status for %s: %w", info.DomainUID, err))
	}
	info.SetDomain(updated)
	return engine.EndChain(), nil
}

// assembleServerStatuses builds one ServerStatus per observed server pod,
// ordered by server name so repeated assemblies of the same state compare
// equal.
func assembleServerStatuses(d *weblogicv1.Domain, info *engine.DomainPresenceInfo) []weblogicv1.ServerStatus {
	pods := info.ServerPodsSnapshot()
	names := make([]string, 0, len(pods))
	for name := range pods {
		names = append(names, name)
	}
	sort.Strings(names)

	clusterOf := make(map[string]string)
	for _, cluster := range d.Spec.Clusters {
		for _, name := range clusterServerNames(d, cluster) {
			clusterOf[name] = cluster.ClusterName
		}
	}

	servers := make([]weblogicv1.ServerStatus, 0, len(names))
	for _, name := range names {
		state := constants.ServerStateStarting
		if podReady(pods[name]) {
			state = constants.ServerStateRunning
		}
		if info.IsBeingDeleted(name) {
			state = constants.ServerStateShutdown
		}
		st := weblogicv1.ServerStatus{
			ServerName:  name,
			State:       state,
			ClusterName: clusterOf[name],
		}
		if health, ok := info.LastKnownServerStatus(name); ok {
			st.Health = weblogicv1.ServerHealth{OverallHealth: health}
		}
		servers = append(servers, st)
	}
	return servers
}

// assembleClusterStatuses computes per-cluster maximumReplicas and the count
// of cluster members currently RUNNING.
func assembleClusterStatuses(d *weblogicv1.Domain, servers []weblogicv1.ServerStatus) []weblogicv1.ClusterStatus {
	if len(d.Spec.Clusters) == 0 {
		return nil
	}
	ready := make(map[string]int32)
	for _, s := range servers {
		if s.ClusterName != "" && s.State == constants.ServerStateRunning {
			ready[s.ClusterName]++
		}
	}
	clusters := make([]weblogicv1.ClusterStatus, 0, len(d.Spec.Clusters))
	for _, cluster := range d.Spec.Clusters {
		maxReplicas := cluster.MaxDynamicClusterSize
		if maxReplicas == 0 {
			maxReplicas = int32(len(clusterServerNames(d, cluster)))
		}
		clusters = append(clusters, weblogicv1.ClusterStatus{
			ClusterName:     cluster.ClusterName,
			MaximumReplicas: maxReplicas,
			ReadyReplicas:   ready[cluster.ClusterName],
		})
	}
	return clusters
}
