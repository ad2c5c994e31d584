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
	"fmt"
	"sort"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
)

// ServerPolicy is the Server-Policy Evaluator's view of one cluster member:
// its name and the three policy layers that determine its effective policy
// (spec §4.6).
type ServerPolicy struct {
	ServerName    string
	ServerPolicy  weblogicv1.StartPolicy // per-server override; "" means unset
	ClusterPolicy weblogicv1.StartPolicy // cluster-level policy; "" means unset
	DomainPolicy  weblogicv1.StartPolicy // domain-level default; "" means unset
}

// EffectivePolicy returns the most-specific non-empty policy for a server:
// per-server override, then cluster policy, then domain policy, then the
// default IF_NEEDED (spec §4.6).
func EffectivePolicy(sp ServerPolicy) weblogicv1.StartPolicy {
	if sp.ServerPolicy != "" {
		return sp.ServerPolicy
	}
	if sp.ClusterPolicy != "" {
		return sp.ClusterPolicy
	}
	if sp.DomainPolicy != "" {
		return sp.DomainPolicy
	}
	return weblogicv1.StartPolicyIfNeeded
}

// StaticClusterServerNames returns count server names for a static cluster,
// numbered from 1, in natural-numeric order (spec §4.6 step 1). prefix is
// typically the cluster name, e.g. "managed-server" -> "managed-server1".
func StaticClusterServerNames(prefix string, count int) []string {
	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

// ValidateDynamicClusterServerNumber checks that i is within
// [1, maxDynamicClusterSize] (spec §4.6 edge case, §8 boundary behavior).
func ValidateDynamicClusterServerNumber(i, maxDynamicClusterSize int) error {
	if i < 1 || i > maxDynamicClusterSize {
		return fmt.Errorf("dynamic cluster server number %d out of range [1,%d]", i, maxDynamicClusterSize)
	}
	return nil
}

// StartedSet implements spec §4.6 step 2-4: partition servers (in their
// given, already stably-ordered input) into ALWAYS (A) and everything else
// (B), preserving each sublist's relative order, walk A-then-B against
// replicas, and return the set of server names that must run.
//
// StartedSet is a pure function: the same servers slice (regardless of the
// order ServerPolicy entries were supplied in by the caller, since ordering
// here is determined by the stable-sort the caller performed in step 1, not
// by map/slice iteration order) and the same replicas always produce the
// same result (P3, spec §8).
func StartedSet(servers []ServerPolicy, replicas int) map[string]bool {
	var always, rest []ServerPolicy
	for _, s := range servers {
		if EffectivePolicy(s) == weblogicv1.StartPolicyAlways {
			always = append(always, s)
		} else {
			rest = append(rest, s)
		}
	}

	started := make(map[string]bool, len(servers))
	c := 0
	walk := func(s ServerPolicy) {
		switch EffectivePolicy(s) {
		case weblogicv1.StartPolicyAlways:
			started[s.ServerName] = true
			c++
		case weblogicv1.StartPolicyNever, weblogicv1.StartPolicyAdminOnly:
			// ADMIN_ONLY is a domain-level policy; a managed server that
			// inherits it is as excluded as one marked NEVER.
		default:
			if c < replicas {
				started[s.ServerName] = true
				c++
			}
		}
	}
	for _, s := range always {
		walk(s)
	}
	for _, s := range rest {
		walk(s)
	}
	return started
}

// ShouldBeRunning reports whether serverName appears in the StartedSet
// computed for servers and replicas.
func ShouldBeRunning(servers []ServerPolicy, replicas int, serverName string) bool {
	return StartedSet(servers, replicas)[serverName]
}

// SortServerPoliciesByName orders servers the way static clusters are
// enumerated: natural-numeric order by name, i.e. "server2" before
// "server10". Dynamic cluster names are already produced in that order by
// StaticClusterServerNames, but ManagedServers overrides arrive from the
// Domain spec in arbitrary order and must be normalized before being fed to
// StartedSet so that replica-count adjustments (spec §4.6 edge cases) are
// deterministic regardless of input ordering (P3).
func SortServerPoliciesByName(servers []ServerPolicy) []ServerPolicy {
	out := make([]ServerPolicy, len(servers))
	copy(out, servers)
	sort.SliceStable(out, func(i, j int) bool {
		return naturalLess(out[i].ServerName, out[j].ServerName)
	})
	return out
}

// naturalLess compares two strings treating embedded runs of digits as
// numbers, so "server2" < "server10".
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			ni, na := scanNumber(a, i)
			nj, nb := scanNumber(b, j)
			if na != nb {
				return na < nb
			}
			i, j = ni, nj
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// scanNumber parses the run of digits starting at i and returns the index
// just past it along with the parsed value.
func scanNumber(s string, i int) (next int, value int) {
	j := i
	for j < len(s) && isDigit(s[j]) {
		value = value*10 + int(s[j]-'0')
		j++
	}
	return j, value
}

// AdjustReplicasForAlwaysTransition implements the replica-preservation edge
// case of spec §4.6: when promoting/demoting a server's effective policy to
// or away from ALWAYS, the caller may need to adjust the replica count it
// passes to StartedSet so that the total number of running members is
// unchanged by the transition alone. wasAlways/isAlways describe the
// server's policy before and after the edit.
func AdjustReplicasForAlwaysTransition(replicas int, wasAlways, isAlways bool) int {
	switch {
	case !wasAlways && isAlways:
		// The promoted server now starts unconditionally and still counts
		// against R; increment so the rest of the pool keeps its members.
		return replicas + 1
	case wasAlways && !isAlways:
		// The demoted server rejoins the non-ALWAYS pool; decrement so the
		// total running count is unchanged by the policy edit alone.
		if replicas > 0 {
			return replicas - 1
		}
		return 0
	default:
		return replicas
	}
}
