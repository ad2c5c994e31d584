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
	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/interfaces"
	"github.com/wlsoperator/domain-engine/internal/kubeclient"
)

// PlanDeps collects the dependencies BuildUpPlan/BuildDownPlan need to wire
// into the steps they construct. It exists so the engine package's caller
// (the per-domain fiber launcher) has one value to build once per process and
// reuse across every make-right cycle, rather than threading half a dozen
// parameters through every call site (spec §10.9).
type PlanDeps struct {
	Client kubeclient.Interface
	Cache  *engine.Cache

	// AdminReady is closed by the Watch Dispatcher's Pod handler when the
	// admin server pod transitions to Ready (spec §5 suspension point (b)).
	// A fresh channel must be supplied per fiber invocation.
	AdminReady <-chan struct{}
	// IntrospectorDone is closed by the dispatcher's introspector-Job Pod
	// handling when the Job reaches a terminal state (spec §5 suspension
	// point (a)).
	IntrospectorDone <-chan struct{}

	MaxFailureRetries int

	// Images resolves spec.image to a digest before anything references it;
	// nil skips resolution (the raw tag is used as-is).
	Images ImageResolver
	// ImageVerifier and VerifyConfig enable signature verification of the
	// domain image when both are set; see ResolveDomainImage.
	ImageVerifier interfaces.ImageVerifier
	VerifyConfig  func(d *weblogicv1.Domain) *interfaces.VerifyConfig

	// AdminExternalServiceEnabled decides whether CreateAdminExternalService
	// acts. The Domain CRD in this engine has no field driving this yet
	// (spec §1 scope); callers that need one should override it, otherwise
	// it is always skipped.
	AdminExternalServiceEnabled func(d *weblogicv1.Domain) bool

	// ScheduleStatusUpdates installs the periodic status-read task once the
	// up-plan passes validation; StopStatusUpdater tears it down at the head
	// of a down-plan.
	ScheduleStatusUpdates func(namespace, domainUID string)
	StopStatusUpdater     func(domainUID string)
}

// BuildUpPlan assembles the up-plan chain of spec §4.5: clear deleting, seed
// the per-server status map, ensure the presence maps are populated, drive
// introspection to completion, bring up the admin server, bring up managed
// servers per the Server-Policy Evaluator, then finalize.
func BuildUpPlan(deps PlanDeps) engine.Step {
	enabled := deps.AdminExternalServiceEnabled
	if enabled == nil {
		enabled = func(*weblogicv1.Domain) bool { return false }
	}

	return engine.Chain(nil,
		UpHead{},
		PopulatePacketServerMaps{},
		DomainPresence{Client: deps.Client},
		ResolveDomainImage{Resolver: deps.Images, Verifier: deps.ImageVerifier, VerifyConfig: deps.VerifyConfig},
		ReadIntrospectVersion{},
		EnsureIntrospectorJob{Client: deps.Client},
		AwaitIntrospectorJobComplete{
			Client:            deps.Client,
			Resume:            deps.IntrospectorDone,
			MaxFailureRetries: deps.MaxFailureRetries,
		},
		ValidateDomainTopology{},
		StartStatusUpdates{Schedule: deps.ScheduleStatusUpdates},
		CreateAdminPod{Client: deps.Client},
		CreateAdminInternalService{Client: deps.Client},
		CreateAdminExternalService{Client: deps.Client, Enabled: enabled},
		WaitForAdminPodReady{Resume: deps.AdminReady},
		ComputeStartedServers{},
		CreateManagedServers{Client: deps.Client},
		DeleteUnstartedManagedServers{Client: deps.Client},
		Tail{},
	)
}

// BuildDownPlan assembles the down-plan chain of spec §4.5: mark the domain
// deleting and stop its status updater, seed the status map, delete every
// engine-created resource, then unregister the presence entry.
func BuildDownPlan(deps PlanDeps) engine.Step {
	return engine.Chain(nil,
		DownHead{StopStatusUpdater: deps.StopStatusUpdater},
		PopulatePacketServerMaps{},
		DeleteAllDomainResources{Client: deps.Client},
		Unregister{Cache: deps.Cache},
	)
}
