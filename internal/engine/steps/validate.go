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
	"strings"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/engine"
	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
)

// ValidateDomainTopology is the after-introspect validation step of the
// up-plan (spec §4.5): it checks the Domain spec against the introspected
// topology before any server pod is created. A failure is a validation error
// (spec §7): it aborts this make-right cycle without scheduling a retry, and
// stays aborted until the user edits the spec.
type ValidateDomainTopology struct{}

func (ValidateDomainTopology) Name() string { return "ValidateDomainTopology" }

func (ValidateDomainTopology) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		return engine.EndChain(), nil
	}
	if err := validateDomain(d); err != nil {
		return engine.NextAction{}, weblogicerrors.WrapValidation(err)
	}
	return engine.EndChain(), nil
}

func validateDomain(d *weblogicv1.Domain) error {
	if d.Spec.DomainUID == "" {
		return fmt.Errorf("spec.domainUID must not be empty")
	}
	if d.Spec.Image == "" {
		return fmt.Errorf("spec.image must not be empty")
	}
	if d.Spec.WebLogicCredentialsSecret == "" {
		return fmt.Errorf("spec.webLogicCredentialsSecret must not be empty")
	}

	seen := make(map[string]bool, len(d.Spec.Clusters))
	for _, cluster := range d.Spec.Clusters {
		if cluster.ClusterName == "" {
			return fmt.Errorf("spec.clusters[] entry with empty clusterName")
		}
		if seen[cluster.ClusterName] {
			return fmt.Errorf("duplicate cluster %q", cluster.ClusterName)
		}
		seen[cluster.ClusterName] = true
	}

	for _, m := range d.Spec.ManagedServers {
		if m.ServerName == "" {
			return fmt.Errorf("spec.managedServers[] entry with empty serverName")
		}
		for _, cluster := range d.Spec.Clusters {
			if cluster.MaxDynamicClusterSize <= 0 {
				continue
			}
			n, ok := dynamicServerNumber(cluster, m.ServerName)
			if !ok {
				continue
			}
			if err := engine.ValidateDynamicClusterServerNumber(n, int(cluster.MaxDynamicClusterSize)); err != nil {
				return fmt.Errorf("managed server %q in dynamic cluster %q: %w", m.ServerName, cluster.ClusterName, err)
			}
		}
	}
	return nil
}

// dynamicServerNumber extracts the member index from a dynamic cluster server
// name of the form <cluster>-server<i>. Names that do not match the cluster's
// member naming scheme belong elsewhere and are skipped.
func dynamicServerNumber(cluster weblogicv1.ClusterSpec, serverName string) (int, bool) {
	prefix := cluster.ClusterName + "-server"
	if !strings.HasPrefix(serverName, prefix) {
		return 0, false
	}
	digits := serverName[len(prefix):]
	if digits == "" {
		return 0, false
	}
	n := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
