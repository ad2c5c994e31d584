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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
)

func newClusteredDomain(domainUID string, replicas int32, maxReplicas int32) *weblogicv1.Domain {
	d := newTestDomain(domainUID, "wls:1")
	d.Spec.Clusters = []weblogicv1.ClusterSpec{{
		ClusterName: "cluster-1",
		Replicas:    &replicas,
	}}
	d.Status.Clusters = []weblogicv1.ClusterStatus{{
		ClusterName:     "cluster-1",
		MaximumReplicas: maxReplicas,
	}}
	return d
}

func TestCreateManagedServers_CreatesOnlyStartedServers(t *testing.T) {
	scheme := newStepsTestScheme(t)
	cl := fake.NewClientBuilder().WithScheme(scheme).Build()
	d := newClusteredDomain("uid1", 1, 3)

	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	packet := engine.NewPacket(info)

	if _, err := (ComputeStartedServers{}).Apply(context.Background(), packet); err != nil {
		t.Fatalf("ComputeStartedServers.Apply() error = %v", err)
	}

	step := CreateManagedServers{Client: cl}
	if _, err := step.Apply(context.Background(), packet); err != nil {
		t.Fatalf("CreateManagedServers.Apply() error = %v", err)
	}

	var started corev1.Pod
	startedName := constants.ToManagedServerPodName("uid1", "cluster-1-server1")
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: "ns1", Name: startedName}, &started); err != nil {
		t.Errorf("Get(%s) error = %v, want cluster-1-server1's pod to have been created", startedName, err)
	}

	for _, name := range []string{"cluster-1-server2", "cluster-1-server3"} {
		var pod corev1.Pod
		podName := constants.ToManagedServerPodName("uid1", name)
		err := cl.Get(context.Background(), types.NamespacedName{Namespace: "ns1", Name: podName}, &pod)
		if err == nil {
			t.Errorf("Get(%s) unexpectedly succeeded, want %s to remain unstarted with replicas=1", podName, name)
		}
	}

	var svc corev1.Service
	svcName := "uid1-cluster-1-server1"
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: "ns1", Name: svcName}, &svc); err != nil {
		t.Errorf("Get(%s) error = %v, want the started server's service to have been created", svcName, err)
	}
}

func TestDeleteUnstartedManagedServers_DeletesServersDroppedFromStartedSet(t *testing.T) {
	scheme := newStepsTestScheme(t)
	d := newClusteredDomain("uid1", 0, 3)

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "ns1", Name: "uid1-cluster-1-server1"},
	}
	cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(pod).Build()

	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	info.SetServerPod("cluster-1-server1", pod)
	packet := engine.NewPacket(info)

	// Replicas dropped to 0: the Server-Policy Evaluator's started set no
	// longer includes cluster-1-server1.
	if _, err := (ComputeStartedServers{}).Apply(context.Background(), packet); err != nil {
		t.Fatalf("ComputeStartedServers.Apply() error = %v", err)
	}

	step := DeleteUnstartedManagedServers{Client: cl}
	if _, err := step.Apply(context.Background(), packet); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	var got corev1.Pod
	err := cl.Get(context.Background(), types.NamespacedName{Namespace: "ns1", Name: "uid1-cluster-1-server1"}, &got)
	if err == nil {
		t.Error("Get() unexpectedly succeeded, want the unstarted server's pod to have been deleted")
	}
	if _, ok := info.ServerPod("cluster-1-server1"); ok {
		t.Error("ServerPod cache still holds cluster-1-server1 after delete")
	}
}
