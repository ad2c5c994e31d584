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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/kubeclient"
)

// AdminServerName is the fixed logical name of the administration server.
// WebLogic domains have exactly one.
const AdminServerName = "AdminServer"

// specHash hashes the pod-affecting fields of a ServerPod plus the domain
// image and restartVersion, so an idempotent creation step can tell whether
// an observed pod differs from the spec it would compute (spec §4.5 "Each
// creation step is idempotent: it patches only if the observed pod/service
// differs from the spec it computes").
func specHash(image, restartVersion string, pod weblogicv1.ServerPod) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(struct {
		Image          string
		RestartVersion string
		Pod            weblogicv1.ServerPod
	}{image, restartVersion, pod})
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CreateAdminPod creates the admin server Pod if absent, or deletes and
// recreates it if its computed spec hash differs from the observed pod's
// (spec §4.5 "Admin-server bring-up").
type CreateAdminPod struct {
	Client kubeclient.Interface
}

func (CreateAdminPod) Name() string { return "CreateAdminPod" }

func (s CreateAdminPod) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		return engine.EndChain(), nil
	}

	want := buildServerPod(d, resolvedImage(packet, d), AdminServerName, "", d.Spec.AdminServer.ServerPod)
	want.Namespace = info.Namespace
	return s.reconcilePod(ctx, info, want)
}

func (s CreateAdminPod) reconcilePod(ctx context.Context, info *engine.DomainPresenceInfo, want *corev1.Pod) (engine.NextAction, error) {
	existing, ok := info.ServerPod(want.Labels[constants.LabelServerName])
	if ok && existing != nil {
		if existing.Annotations[constants.AnnotationSpecHash] == want.Annotations[constants.AnnotationSpecHash] {
			return engine.EndChain(), nil
		}
		serverName := want.Labels[constants.LabelServerName]
		info.SetBeingDeleted(serverName, true)
		if err := s.Client.Delete(ctx, existing); err != nil && !apierrors.IsNotFound(err) {
			return engine.NextAction{}, fmt.Errorf("deleting outdated pod %s: %w", existing.Name, err)
		}
		info.DeleteServerPod(serverName, existing.UID)
	}

	if err := s.Client.Create(ctx, want); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return engine.EndChain(), nil
		}
		return engine.NextAction{}, fmt.Errorf("creating pod %s: %w", want.Name, err)
	}
	info.SetServerPod(want.Labels[constants.LabelServerName], want)
	return engine.EndChain(), nil
}

// buildServerPod computes the corev1.Pod for a server. It is a reference
// implementation sufficient for the engine's own tests (spec §1 out-of-scope:
// "the concrete bodies of every 'apply pod spec' step"), not a full WebLogic
// resource builder.
func buildServerPod(d *weblogicv1.Domain, image, serverName, clusterName string, override weblogicv1.ServerPod) *corev1.Pod {
	name := constants.ToManagedServerPodName(d.Spec.DomainUID, serverName)
	if serverName == AdminServerName {
		name = constants.ToAdminServerPodName(d.Spec.DomainUID, serverName)
	}
	labels := ownerLabels(d.Spec.DomainUID, serverName)
	if clusterName != "" {
		labels[constants.LabelClusterName] = clusterName
	}
	for k, v := range override.Labels {
		labels[k] = v
	}

	annotations := map[string]string{
		constants.AnnotationSpecHash:          specHash(image, d.Spec.RestartVersion, override),
		constants.AnnotationIntrospectVersion: d.Spec.IntrospectVersion,
	}
	for k, v := range override.Annotations {
		annotations[k] = v
	}

	var pullSecrets []corev1.LocalObjectReference
	pullSecrets = append(pullSecrets, d.Spec.ImagePullSecrets...)

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   "", // set by caller via want.Namespace before Create
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: corev1.PodSpec{
			ImagePullSecrets: pullSecrets,
			NodeSelector:     override.NodeSelector,
			Containers: []corev1.Container{{
				Name:      constants.ContainerNameWebLogicServer,
				Image:     image,
				Env:       override.Env,
				Resources: override.Resources,
			}},
		},
	}
}

// CreateAdminInternalService creates the ClusterIP service fronting the
// admin server's internal ports (spec §4.5 "create internal service").
type CreateAdminInternalService struct {
	Client kubeclient.Interface
}

func (CreateAdminInternalService) Name() string { return "CreateAdminInternalService" }

func (s CreateAdminInternalService) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		return engine.EndChain(), nil
	}
	name := fmt.Sprintf("%s-%s", d.Spec.DomainUID, AdminServerName)
	return s.reconcileService(ctx, info, name, AdminServerName, corev1.ServiceTypeClusterIP)
}

func (s CreateAdminInternalService) reconcileService(ctx context.Context, info *engine.DomainPresenceInfo, name, serverName string, svcType corev1.ServiceType) (engine.NextAction, error) {
	svcs := info.ServicesSnapshot()
	if _, ok := svcs[name]; ok {
		return engine.EndChain(), nil
	}
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: info.Namespace,
			Labels:    ownerLabels(info.DomainUID, serverName),
		},
		Spec: corev1.ServiceSpec{
			Type:     svcType,
			Selector: map[string]string{constants.LabelServerName: serverName, constants.LabelDomainUID: info.DomainUID},
			Ports:    []corev1.ServicePort{{Name: "default", Port: 7001, TargetPort: intstr.FromInt32(7001)}},
		},
	}
	if err := s.Client.Create(ctx, svc); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return engine.EndChain(), nil
		}
		return engine.NextAction{}, fmt.Errorf("creating service %s: %w", name, err)
	}
	info.SetService(name, svc)
	return engine.EndChain(), nil
}

// CreateAdminExternalService creates the admin server's external NodePort
// service, but only when the Domain spec requests one (spec §4.5
// "(if external service configured) create external service").
type CreateAdminExternalService struct {
	Client  kubeclient.Interface
	Enabled func(d *weblogicv1.Domain) bool
}

func (CreateAdminExternalService) Name() string { return "CreateAdminExternalService" }

func (s CreateAdminExternalService) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		return engine.EndChain(), nil
	}
	if s.Enabled != nil && !s.Enabled(d) {
		return engine.EndChain(), nil
	}
	name := constants.ToExternalServiceName(d.Spec.DomainUID, AdminServerName)
	reconciler := CreateAdminInternalService{Client: s.Client}
	return reconciler.reconcileService(ctx, info, name, AdminServerName, corev1.ServiceTypeNodePort)
}

// WaitForAdminPodReady suspends the fiber until the admin pod is observed
// Ready, via resume, which the dispatcher closes on the matching Pod watch
// event (spec §4.5 "wait for admin pod ready", §5 suspension point (b)).
type WaitForAdminPodReady struct {
	Resume <-chan struct{}
}

func (WaitForAdminPodReady) Name() string { return "WaitForAdminPodReady" }

func (s WaitForAdminPodReady) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	if pod, ok := info.ServerPod(AdminServerName); ok && podReady(pod) {
		return engine.EndChain(), nil
	}
	if s.Resume != nil {
		return engine.SuspendUntil(s.Resume), nil
	}
	return engine.EndChain(), nil
}

func podReady(pod *corev1.Pod) bool {
	if pod == nil {
		return false
	}
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
