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
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
)

// runToEnd drives step to completion, following Continue links. Suspend is
// treated as a failure here: every plan test below leaves AdminReady and
// IntrospectorDone nil, and every suspending step in this package falls
// through to EndChain when its Resume channel is nil, so a real Suspend
// would mean the chain under test suspended on something else unexpected.
func runToEnd(t *testing.T, step engine.Step, packet *engine.Packet) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		na, err := step.Apply(ctx, packet)
		if err != nil {
			t.Fatalf("step %s: Apply() error = %v", step.Name(), err)
		}
		switch na.Kind {
		case engine.End:
			return
		case engine.Continue:
			step = na.Next
		case engine.Suspend:
			t.Fatalf("step %s suspended unexpectedly", step.Name())
		}
	}
	t.Fatalf("chain did not terminate within the iteration budget")
}

func TestBuildUpPlan_BringsUpAdminAndManagedServers(t *testing.T) {
	scheme := newIntrospectTestScheme(t)
	cl := fake.NewClientBuilder().WithScheme(scheme).Build()
	d := newClusteredDomain("uid1", 1, 2)
	d.Spec.IntrospectVersion = "1"

	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	packet := engine.NewPacket(info)

	var scheduled []string
	deps := PlanDeps{
		Client:            cl,
		Cache:             engine.NewCache(),
		MaxFailureRetries: 3,
		ScheduleStatusUpdates: func(namespace, domainUID string) {
			scheduled = append(scheduled, namespace+"/"+domainUID)
		},
	}
	plan := BuildUpPlan(deps)
	runToEnd(t, plan, packet)

	if len(scheduled) != 1 || scheduled[0] != "ns1/uid1" {
		t.Errorf("status updater scheduled = %v, want [ns1/uid1] scheduled from within the plan", scheduled)
	}

	var got corev1.Pod
	adminPodName := constants.ToAdminServerPodName("uid1", AdminServerName)
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: "ns1", Name: adminPodName}, &got); err != nil {
		t.Errorf("Get(%s) error = %v, want the admin pod to have been created", adminPodName, err)
	}

	managedPodName := constants.ToManagedServerPodName("uid1", "cluster-1-server1")
	var managed corev1.Pod
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: "ns1", Name: managedPodName}, &managed); err != nil {
		t.Errorf("Get(%s) error = %v, want the started managed server's pod to have been created", managedPodName, err)
	}

	if info.Deleting() {
		t.Error("info.Deleting() = true after an up-plan run, want false")
	}
	if info.FailureCount() != 0 {
		t.Errorf("info.FailureCount() = %d after a successful up-plan, want 0", info.FailureCount())
	}
	if !info.Populated() {
		t.Error("info.Populated() = false after an up-plan run, want true")
	}
}

func TestBuildDownPlan_DeletesResourcesAndUnregisters(t *testing.T) {
	scheme := newIntrospectTestScheme(t)
	d := newTestDomain("uid1", "wls:1")

	adminPod := buildServerPod(d, d.Spec.Image, AdminServerName, "", d.Spec.AdminServer.ServerPod)
	adminPod.Namespace = "ns1"
	cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(adminPod).Build()

	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	info.SetServerPod(AdminServerName, adminPod)
	cache := engine.NewCache()
	cache.Register(info)
	packet := engine.NewPacket(info)

	stopped := false
	deps := PlanDeps{
		Client: cl,
		Cache:  cache,
		StopStatusUpdater: func(domainUID string) {
			if domainUID == "uid1" {
				stopped = true
			}
		},
	}
	plan := BuildDownPlan(deps)
	runToEnd(t, plan, packet)

	if !stopped {
		t.Error("StopStatusUpdater was not called during the down-plan")
	}
	if !info.Deleting() {
		t.Error("info.Deleting() = false after a down-plan run, want true")
	}
	if cache.Get("ns1", "uid1") != nil {
		t.Error("Cache still holds an entry for uid1 after the down-plan unregistered it")
	}

	var got corev1.Pod
	err := cl.Get(context.Background(), types.NamespacedName{Namespace: "ns1", Name: adminPod.Name}, &got)
	if err == nil {
		t.Error("Get() for the admin pod unexpectedly succeeded, want it deleted by the down-plan")
	}
}
