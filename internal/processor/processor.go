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

// Package processor is the outer wiring layer spec §10.9 calls for: it is
// the one package allowed to import both internal/engine and
// internal/engine/steps, so it is where the Make-Right Planner's decision
// function, the Domain Presence Cache, the per-namespace FiberGate pool, and
// the concrete step chains are tied into a single MakeRightTrigger the
// Watch Dispatcher and Retry Controller can both call.
package processor

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/engine/steps"
	"github.com/wlsoperator/domain-engine/internal/interfaces"
	"github.com/wlsoperator/domain-engine/internal/kubeclient"
	"github.com/wlsoperator/domain-engine/internal/logging"
	"github.com/wlsoperator/domain-engine/internal/metrics"
	"github.com/wlsoperator/domain-engine/internal/status"
	"github.com/wlsoperator/domain-engine/internal/tuning"
)

// Processor owns the make-right FiberGate, the status-update FiberGate, and
// the resume channels each in-flight plan suspends on, and exposes
// TriggerMakeRight as an engine.MakeRightTrigger for the Dispatcher and
// RetryController to call.
//
// A Domain's metadata.name is taken as its domainUID, the same convention
// the product this engine is modeled on uses; TriggerMakeRight re-GETs the
// live Domain by that name before deciding.
type Processor struct {
	Client kubeclient.Interface
	Cache  *engine.Cache
	Gate   *engine.FiberGate
	Status *engine.StatusUpdater
	Log    logr.Logger
	Tuning func() tuning.Tuning

	MaxFailureRetries int

	// Images resolves spec.image to a digest before a plan references it;
	// nil skips resolution. Verifier plus VerifyPublicKey additionally gate
	// every cycle on signature verification.
	Images          steps.ImageResolver
	Verifier        interfaces.ImageVerifier
	VerifyPublicKey string

	resumeMu   sync.Mutex
	adminReady map[string]chan struct{}
	introDone  map[string]chan struct{}
}

// New builds a Processor. pool bounds concurrent step execution for the
// make-right gate; statusPool bounds the independent status-read gate (spec
// §4.7 "own FiberGate").
func New(client kubeclient.Interface, cache *engine.Cache, poolSize, statusPoolSize int, log logr.Logger) *Processor {
	return &Processor{
		Client:            client,
		Cache:             cache,
		Gate:              engine.NewFiberGate(engine.NewPool(poolSize), log),
		Status:            engine.NewStatusUpdater(engine.NewFiberGate(engine.NewPool(statusPoolSize), log), log),
		Log:               log,
		MaxFailureRetries: 5,
		adminReady:        make(map[string]chan struct{}),
		introDone:         make(map[string]chan struct{}),
	}
}

func (p *Processor) tuningSnapshot() tuning.Tuning {
	if p.Tuning != nil {
		return p.Tuning()
	}
	return tuning.Default()
}

// AdminReadyChan returns the channel the dispatcher's Pod handler should
// close when domainUID's admin server pod becomes Ready, or nil if no
// fiber is currently waiting on one.
func (p *Processor) AdminReadyChan(domainUID string) chan struct{} {
	p.resumeMu.Lock()
	defer p.resumeMu.Unlock()
	return p.adminReady[domainUID]
}

// IntrospectorDoneChan returns the channel the dispatcher's introspector Pod
// handler should close when the Job reaches a terminal state.
func (p *Processor) IntrospectorDoneChan(domainUID string) chan struct{} {
	p.resumeMu.Lock()
	defer p.resumeMu.Unlock()
	return p.introDone[domainUID]
}

// SignalAdminReady closes and clears the admin-ready channel for domainUID,
// if one is registered.
func (p *Processor) SignalAdminReady(domainUID string) {
	p.resumeMu.Lock()
	defer p.resumeMu.Unlock()
	if ch, ok := p.adminReady[domainUID]; ok {
		close(ch)
		delete(p.adminReady, domainUID)
	}
}

// SignalIntrospectorDone closes and clears the introspector-done channel for
// domainUID, if one is registered.
func (p *Processor) SignalIntrospectorDone(domainUID string) {
	p.resumeMu.Lock()
	defer p.resumeMu.Unlock()
	if ch, ok := p.introDone[domainUID]; ok {
		close(ch)
		delete(p.introDone, domainUID)
	}
}

func (p *Processor) registerResumeChannels(domainUID string) (adminReady, introDone chan struct{}) {
	p.resumeMu.Lock()
	defer p.resumeMu.Unlock()
	adminReady = make(chan struct{})
	introDone = make(chan struct{})
	p.adminReady[domainUID] = adminReady
	p.introDone[domainUID] = introDone
	return adminReady, introDone
}

// TriggerMakeRight implements engine.MakeRightTrigger (spec §4.5). It
// re-reads the live Domain, runs the Make-Right Planner's decision function
// against the cached snapshot, and — when the decision says to run — builds
// and starts the appropriate plan on the make-right FiberGate keyed by
// domainUID (spec §4.2's at-most-one-fiber-per-key rule).
func (p *Processor) TriggerMakeRight(ctx context.Context, namespace, domainUID string, flags engine.DecisionFlags) {
	info := p.Cache.GetOrRegister(namespace, domainUID, func() *engine.DomainPresenceInfo {
		return engine.NewDomainPresenceInfo(namespace, domainUID, nil)
	})
	cached := info.Domain()

	var live *weblogicv1.Domain
	if !flags.Deleting {
		live = &weblogicv1.Domain{}
		if err := p.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: domainUID}, live); err != nil {
			if apierrors.IsNotFound(err) {
				flags.Deleting = true
			} else {
				p.Log.Error(err, "getting live domain", "namespace", namespace, "domainUID", domainUID)
				return
			}
		}
	}

	decision := engine.DecideWithMaxRetries(live, cached, flags, int32(p.MaxFailureRetries))
	if !decision.Run {
		metrics.MakeRightTotal.WithLabelValues("skip").Inc()
		if live != nil {
			info.SetDomain(live)
		}
		return
	}

	// A spec change re-opens retries that the Retry Controller had stopped.
	if live != nil && cached != nil && !reflect.DeepEqual(live.Spec, cached.Spec) {
		info.ResetFailureCount()
	}

	if live != nil {
		if t := p.tuningSnapshot(); engine.NeedsOnlineUpdateCoercion(live, cached, t.ServerShutdownAllowedFields) {
			coerced := live.DeepCopy()
			coerced.Spec.Configuration.Model.OnlineUpdate.Enabled = false
			live = coerced
		}
		info.SetDomain(live)
	}

	adminReady, introDone := p.registerResumeChannels(domainUID)

	deps := steps.PlanDeps{
		Client:                p.Client,
		Cache:                 p.Cache,
		AdminReady:            adminReady,
		IntrospectorDone:      introDone,
		MaxFailureRetries:     p.MaxFailureRetries,
		Images:                p.Images,
		ImageVerifier:         p.Verifier,
		VerifyConfig:          p.verifyConfig,
		ScheduleStatusUpdates: p.scheduleStatusUpdates,
		StopStatusUpdater:     p.Status.Stop,
	}

	var plan engine.Step
	planLabel := "up"
	if decision.Plan == engine.PlanDown {
		plan = steps.BuildDownPlan(deps)
		planLabel = "down"
	} else {
		plan = steps.BuildUpPlan(deps)
	}
	metrics.MakeRightTotal.WithLabelValues("run_" + planLabel).Inc()

	packet := engine.NewPacket(info)
	packet.Put(engine.KeyDecisionFlags, flags)

	timer := prometheus.NewTimer(metrics.FiberDuration.WithLabelValues(planLabel))
	p.Gate.StartFiber(ctx, domainUID, plan, packet, engine.CallbackFuncs{
		Completion: func(*engine.Packet) {
			timer.ObserveDuration()
			logging.LogDomainEvent(p.Log, "make_right_complete", map[string]string{
				"namespace": namespace, "domainUID": domainUID, "plan": planLabel,
			})
			if decision.Plan == engine.PlanUp {
				p.recordAvailableStatus(info)
			}
		},
		Cancel: func(*engine.Packet) {
			timer.ObserveDuration()
		},
		Throwable: func(_ *engine.Packet, err error) {
			timer.ObserveDuration()
			(&engine.RetryController{
				Tuning:          p.Tuning,
				Log:             p.Log,
				OnFailureStatus: p.recordFailureStatus,
				Retry:           p.TriggerMakeRight,
			}).HandleThrowable(ctx, info, err, flags.Deleting)
		},
	})
}

// verifyConfig builds the signature-verification settings for d, or nil when
// the operator has no verification key configured.
func (p *Processor) verifyConfig(d *weblogicv1.Domain) *interfaces.VerifyConfig {
	if p.VerifyPublicKey == "" {
		return nil
	}
	return &interfaces.VerifyConfig{
		PublicKey:        p.VerifyPublicKey,
		ImagePullSecrets: d.Spec.ImagePullSecrets,
		Namespace:        d.Namespace,
	}
}

// recordAvailableStatus marks the Domain Available once an up-plan
// completes. A conflict is left for the status updater's next tick to
// resolve against the fresher object.
func (p *Processor) recordAvailableStatus(info *engine.DomainPresenceInfo) {
	d := info.Domain()
	if d == nil {
		return
	}
	updated := d.DeepCopy()
	status.MarkAvailable(updated, "make-right complete")
	if err := p.Client.Status().Update(context.Background(), updated); err != nil {
		if !apierrors.IsConflict(err) && !apierrors.IsNotFound(err) {
			p.Log.Error(err, "updating domain available status", "namespace", info.Namespace, "domainUID", info.DomainUID)
		}
		return
	}
	info.SetDomain(updated)
}

// scheduleStatusUpdates (re)installs the periodic status-read task for
// domainUID; the up-plan invokes it through steps.StartStatusUpdates as soon
// as validation passes (spec §4.5), so status publishes while admin/managed
// bring-up is still in flight.
func (p *Processor) scheduleStatusUpdates(namespace, domainUID string) {
	t := p.tuningSnapshot()
	p.Status.Timeout = time.Duration(t.StatusUpdateTimeoutSeconds) * time.Second
	p.Status.Schedule(context.Background(), namespace, domainUID,
		t.InitialShortDelay, t.InitialShortDelay,
		func() (engine.Step, *engine.Packet) {
			info := p.Cache.Get(namespace, domainUID)
			if info == nil {
				return nil, nil
			}
			chain := engine.Chain(nil,
				steps.PopulatePacketServerMaps{},
				steps.UpdateDomainStatus{Client: p.Client},
			)
			return chain, engine.NewPacket(info)
		},
		nil,
	)
}

// recordFailureStatus writes a Failed condition onto the Domain (spec §4.8
// step 1: "report the failed step").
func (p *Processor) recordFailureStatus(info *engine.DomainPresenceInfo, err error) {
	d := info.Domain()
	if d == nil {
		return
	}
	updated := d.DeepCopy()
	status.MarkFailed(updated, constants.ReasonFailed, err.Error())
	if uerr := p.Client.Status().Update(context.Background(), updated); uerr != nil && !apierrors.IsConflict(uerr) && !apierrors.IsNotFound(uerr) {
		p.Log.Error(uerr, "updating domain failure status", "namespace", info.Namespace, "domainUID", info.DomainUID)
		return
	}
	info.SetDomain(updated)
}

// RecreateScriptConfigMap handles the dispatcher observing the shared
// scripts ConfigMap changed or deleted (spec §4.4 ConfigMap row). Its
// content is supplied by the operator's Helm chart, not generated
// in-process, so recovery here is limited to forcing a fresh make-right
// cycle with an explicit recheck; the ConfigMap itself is neither recreated
// nor re-listed.
func (p *Processor) RecreateScriptConfigMap(ctx context.Context, namespace, domainUID string) error {
	p.Log.Info("scripts configmap changed, forcing make-right recheck",
		"namespace", namespace, "domainUID", domainUID, "configMap", constants.ToScriptConfigMapName(domainUID))
	p.TriggerMakeRight(ctx, namespace, domainUID, engine.DecisionFlags{ExplicitRecheck: true})
	return nil
}
