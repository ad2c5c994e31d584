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

package controller

import (
	"context"
	"crypto/tls"
	"flag"
	"os"
	"sync/atomic"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/tools/cache"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
	"github.com/wlsoperator/domain-engine/internal/engine"
	"github.com/wlsoperator/domain-engine/internal/image"
	enginemetrics "github.com/wlsoperator/domain-engine/internal/metrics"
	"github.com/wlsoperator/domain-engine/internal/processor"
	"github.com/wlsoperator/domain-engine/internal/tuning"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(weblogicv1.AddToScheme(scheme))
}

// Run starts the WebLogic domain engine's manager process: it watches
// Domain/Pod/Service/ConfigMap/Event directly through the manager's cache
// (rather than through a reconcile-request Controller, since the Watch
// Dispatcher of spec §4.4 needs the raw watch.EventType to apply its
// per-kind routing table) and drives the Make-Right Planner through a
// Processor (spec §10.9).
func Run(args []string) {
	fs := flag.NewFlagSet("controller", flag.ExitOnError)

	var metricsAddr, probeAddr, tuningPath string
	var enableLeaderElection, secureMetrics, enableHTTP2 bool
	var fiberPoolSize, statusPoolSize int

	fs.StringVar(&metricsAddr, "metrics-bind-address", ":8443", "The address the metrics endpoint binds to.")
	fs.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	fs.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. Enabling this will ensure there is only one active domain engine.")
	fs.BoolVar(&secureMetrics, "metrics-secure", true,
		"If set, the metrics endpoint is served securely via HTTPS. Use --metrics-secure=false to use HTTP instead.")
	fs.BoolVar(&enableHTTP2, "enable-http2", false, "If set, HTTP/2 will be enabled for the metrics server")
	fs.StringVar(&tuningPath, "tuning-config", "/etc/weblogic-operator/config/tuning.yaml",
		"Path to the mainTuning ConfigMap-mounted YAML file (spec §6).")
	fs.IntVar(&fiberPoolSize, "fiber-pool-size", 32, "Maximum number of concurrently executing make-right steps.")
	fs.IntVar(&statusPoolSize, "status-pool-size", 16, "Maximum number of concurrently executing status-read steps.")

	opts := zap.Options{Development: true}
	opts.BindFlags(fs)
	_ = fs.Parse(args)

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("domain-engine")

	var tlsOpts []func(*tls.Config)
	if !enableHTTP2 {
		tlsOpts = append(tlsOpts, func(c *tls.Config) {
			setupLog.Info("disabling http/2")
			c.NextProtos = []string{"http/1.1"}
		})
	}

	metricsServerOptions := metricsserver.Options{
		BindAddress:   metricsAddr,
		SecureServing: secureMetrics,
		TLSOpts:       tlsOpts,
	}
	if secureMetrics {
		metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsServerOptions,
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "weblogic-domain-engine-leader.wlsoperator.org",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	enginemetrics.MustRegister(metrics.Registry)

	ctx := ctrl.SetupSignalHandler()

	var liveTuning atomic.Pointer[tuning.Tuning]
	initial := tuning.Default()
	liveTuning.Store(&initial)
	if updates, err := tuning.Watch(ctx, log, tuningPath); err != nil {
		setupLog.Info("no tuning config found, using defaults", "path", tuningPath, "error", err.Error())
	} else {
		go func() {
			for t := range updates {
				t := t
				liveTuning.Store(&t)
				log.Info("tuning config reloaded", "path", tuningPath)
			}
		}()
	}

	cache := engine.NewCache()
	proc := processor.New(mgr.GetClient(), cache, fiberPoolSize, statusPoolSize, log)
	proc.Tuning = func() tuning.Tuning { return *liveTuning.Load() }
	proc.Images = image.NewResolver(log.WithName("image"))
	if pk := os.Getenv("COSIGN_PUBLIC_KEY"); pk != "" {
		proc.Verifier = image.NewVerifier(log.WithName("image-verify"), mgr.GetClient())
		proc.VerifyPublicKey = pk
	}

	dispatcher := engine.NewDispatcher(cache, proc.TriggerMakeRight, log)
	dispatcher.IsFiberActive = func(domainUID string) bool { return proc.Gate.CurrentFiber(domainUID) != nil }
	dispatcher.OnCoalescedEvent = func(domainUID string) { enginemetrics.CoalescedEvents.WithLabelValues(domainUID).Inc() }
	dispatcher.ScriptConfigMapName = constants.ToScriptConfigMapName
	dispatcher.RecreateScriptConfigMap = proc.RecreateScriptConfigMap
	dispatcher.OnIntrospectorPodStatus = func(ctx context.Context, namespace, domainUID string, status engine.IntrospectorPodStatus, message string) {
		if status == engine.IntrospectorPodFailed {
			enginemetrics.IntrospectorJobFailures.WithLabelValues(domainUID).Inc()
		}
		if status != engine.IntrospectorPodProgressing {
			proc.SignalIntrospectorDone(domainUID)
		}
	}

	if err := wireInformers(ctx, mgr, dispatcher, proc); err != nil {
		setupLog.Error(err, "unable to wire watch informers")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting domain engine manager")
	if err := mgr.Start(ctx); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

// wireInformers attaches cache.ResourceEventHandlerFuncs to every kind the
// Watch Dispatcher cares about, translating client-go's AddFunc/UpdateFunc/
// DeleteFunc into the watch.EventType vocabulary HandleDomainEvent et al.
// expect (spec §4.4). Using the manager's shared informer cache rather than
// a reconcile.Reconciler keeps every raw event visible to the dispatcher,
// including the metadata-only-MODIFIED distinction the per-kind rules need.
func wireInformers(ctx context.Context, mgr ctrl.Manager, d *engine.Dispatcher, proc *processor.Processor) error {
	informerCache := mgr.GetCache()

	domainInformer, err := informerCache.GetInformer(ctx, &weblogicv1.Domain{})
	if err != nil {
		return err
	}
	if _, err := domainInformer.AddEventHandler(domainHandlers(d)); err != nil {
		return err
	}

	podInformer, err := informerCache.GetInformer(ctx, &corev1.Pod{})
	if err != nil {
		return err
	}
	if _, err := podInformer.AddEventHandler(podHandlers(d, proc)); err != nil {
		return err
	}

	svcInformer, err := informerCache.GetInformer(ctx, &corev1.Service{})
	if err != nil {
		return err
	}
	if _, err := svcInformer.AddEventHandler(serviceHandlers(d)); err != nil {
		return err
	}

	cmInformer, err := informerCache.GetInformer(ctx, &corev1.ConfigMap{})
	if err != nil {
		return err
	}
	if _, err := cmInformer.AddEventHandler(configMapHandlers(d)); err != nil {
		return err
	}

	eventInformer, err := informerCache.GetInformer(ctx, &corev1.Event{})
	if err != nil {
		return err
	}
	if _, err := eventInformer.AddEventHandler(eventHandlers(d, mgr.GetClient())); err != nil {
		return err
	}

	jobInformer, err := informerCache.GetInformer(ctx, &batchv1.Job{})
	if err != nil {
		return err
	}
	// Jobs themselves carry no dispatcher rule (spec §4.4 only lists the
	// introspector's Pod, not its Job); the informer is still started so the
	// manager's cache has permission/watch wired for EnsureIntrospectorJob's
	// Get/Create/Delete calls to be cache-backed rather than direct-API.
	if _, err := jobInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{}); err != nil {
		return err
	}

	return nil
}
