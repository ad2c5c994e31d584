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

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"

	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/kube"
	"github.com/wlsoperator/domain-engine/internal/kubeclient"
)

// ReadIntrospectVersion reads the introspectVersion the domain was last
// successfully introspected at and stashes it in the Packet (spec §4.5
// "domain introspection (read introspect version, decide request, ...)").
type ReadIntrospectVersion struct{}

func (ReadIntrospectVersion) Name() string { return "ReadIntrospectVersion" }

func (ReadIntrospectVersion) Apply(_ context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	var version string
	if d := info.Domain(); d != nil {
		version = d.Spec.IntrospectVersion
	}
	packet.Put(engine.KeyIntrospectVersion, version)
	return engine.EndChain(), nil
}

// EnsureIntrospectorJob deletes any stale introspector Job (one created under
// a previous introspectVersion) and creates a fresh one when the domain's
// current introspectVersion has not yet been introspected successfully
// (spec §4.5 "delete old job, create new job").
type EnsureIntrospectorJob struct {
	Client kubeclient.Interface
}

func (EnsureIntrospectorJob) Name() string { return "EnsureIntrospectorJob" }

func (s EnsureIntrospectorJob) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil {
		return engine.EndChain(), nil
	}

	jobName := constants.ToJobIntrospectorName(info.DomainUID)
	var existing batchv1.Job
	err = s.Client.Get(ctx, namespacedName(info.Namespace, jobName), &existing)
	switch {
	case err == nil:
		if existing.Labels[constants.AnnotationIntrospectVersion] == d.Spec.IntrospectVersion {
			packet.Put(engine.KeyIntrospectorJobCreated, true)
			return engine.EndChain(), nil
		}
		if err := s.Client.Delete(ctx, &existing); err != nil && !apierrors.IsNotFound(err) {
			return engine.NextAction{}, fmt.Errorf("deleting stale introspector job: %w", err)
		}
	case apierrors.IsNotFound(err):
		// fall through to create
	default:
		return engine.NextAction{}, fmt.Errorf("getting introspector job: %w", err)
	}

	job := buildIntrospectorJob(info.Namespace, info.DomainUID, resolvedImage(packet, d), d)
	if err := s.Client.Create(ctx, job); err != nil && !apierrors.IsAlreadyExists(err) {
		return engine.NextAction{}, fmt.Errorf("creating introspector job: %w", err)
	}
	packet.Put(engine.KeyIntrospectorJobCreated, true)
	return engine.EndChain(), nil
}

func buildIntrospectorJob(namespace, domainUID, image string, d *weblogicDomain) *batchv1.Job {
	name := constants.ToJobIntrospectorName(domainUID)
	labels := ownerLabels(domainUID, "")
	labels[constants.AnnotationIntrospectVersion] = d.Spec.IntrospectVersion
	labels[constants.LabelJobName] = name

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: ptr.To(int32(0)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:  constants.ContainerNameWebLogicServer,
						Image: image,
						Args:  []string{"introspectDomain.sh"},
					}},
				},
			},
		},
	}
}

// AwaitIntrospectorJobComplete suspends the fiber until the introspector Job
// reaches a terminal state, then either continues or returns a failure
// (spec §4.5, §7 "Introspector failure"). It relies on the dispatcher's
// IntrospectorJob Pod handling (spec §4.4) to close the Resume channel
// supplied by the caller that constructed this step.
type AwaitIntrospectorJobComplete struct {
	Client            kubeclient.Interface
	Resume            <-chan struct{}
	MaxFailureRetries int
}

func (AwaitIntrospectorJobComplete) Name() string { return "AwaitIntrospectorJobComplete" }

func (s AwaitIntrospectorJobComplete) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}

	var job batchv1.Job
	jobName := constants.ToJobIntrospectorName(info.DomainUID)
	if err := s.Client.Get(ctx, namespacedName(info.Namespace, jobName), &job); err != nil {
		if apierrors.IsNotFound(err) {
			// Job vanished before completing; treat as not-yet-started and wait.
			if s.Resume != nil {
				return engine.SuspendUntil(s.Resume), nil
			}
			return engine.EndChain(), nil
		}
		return engine.NextAction{}, fmt.Errorf("getting introspector job: %w", err)
	}

	switch kube.OutcomeOf(&job) {
	case kube.JobSucceeded:
		info.ResetFailureCount()
		s.clearFailureCount(ctx, info)
		return engine.EndChain(), nil
	case kube.JobFailed:
		count := s.recordFailureCount(ctx, info)
		if count >= int32(s.MaxFailureRetries) {
			return engine.NextAction{}, weblogicerrors.WrapFatalIntrospector(
				fmt.Errorf("introspector job %s failed %d consecutive times", jobName, count))
		}
		return engine.NextAction{}, weblogicerrors.WrapTransientKubernetesAPI(
			fmt.Errorf("introspector job %s failed (attempt %d of %d)", jobName, count, s.MaxFailureRetries))
	default:
		if s.Resume != nil {
			return engine.SuspendUntil(s.Resume), nil
		}
		return engine.EndChain(), nil
	}
}

// recordFailureCount advances status.introspectJobFailureCount on the Domain
// itself, since the Make-Right Planner's give-up rule reads the count from
// the cached Domain status, and returns the new count. A write conflict or a
// vanished Domain is tolerated: the watch delivers the newer object and the
// next failure re-increments from it.
func (s AwaitIntrospectorJobComplete) recordFailureCount(ctx context.Context, info *engine.DomainPresenceInfo) int32 {
	d := info.Domain()
	if d == nil {
		return 0
	}
	updated := d.DeepCopy()
	updated.Status.IntrospectJobFailureCount++
	if err := s.Client.Status().Update(ctx, updated); err == nil {
		info.SetDomain(updated)
	}
	return updated.Status.IntrospectJobFailureCount
}

// clearFailureCount zeroes the persisted failure count after a successful
// introspection, so a later one-off failure starts a fresh streak.
func (s AwaitIntrospectorJobComplete) clearFailureCount(ctx context.Context, info *engine.DomainPresenceInfo) {
	d := info.Domain()
	if d == nil || d.Status.IntrospectJobFailureCount == 0 {
		return
	}
	updated := d.DeepCopy()
	updated.Status.IntrospectJobFailureCount = 0
	if err := s.Client.Status().Update(ctx, updated); err == nil {
		info.SetDomain(updated)
	}
}
