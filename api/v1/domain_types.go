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

package v1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DomainHomeSourceType controls where the engine expects the domain home to originate from.
// +kubebuilder:validation:Enum=Image;FromModel;PersistentVolume
type DomainHomeSourceType string

const (
	DomainHomeSourceTypeImage             DomainHomeSourceType = "Image"
	DomainHomeSourceTypeFromModel         DomainHomeSourceType = "FromModel"
	DomainHomeSourceTypePersistentVolume  DomainHomeSourceType = "PersistentVolume"
)

// StartPolicy controls whether a server or cluster should be started.
// +kubebuilder:validation:Enum=NEVER;IF_NEEDED;ADMIN_ONLY;ALWAYS
type StartPolicy string

const (
	StartPolicyNever     StartPolicy = "NEVER"
	StartPolicyIfNeeded  StartPolicy = "IF_NEEDED"
	StartPolicyAdminOnly StartPolicy = "ADMIN_ONLY"
	StartPolicyAlways    StartPolicy = "ALWAYS"
)

// DomainFinalizer guards deletion until the down-plan has fully unregistered the domain.
const DomainFinalizer = "weblogic.oracle/domain-engine"

// ServerPod captures the subset of pod-template fields the engine compares to decide
// whether a server needs to be restarted. The concrete translation into a full
// corev1.PodSpec is performed by the steps package, not by this type.
type ServerPod struct {
	// Env lists additional environment variables for the server container.
	// +optional
	Env []corev1.EnvVar `json:"env,omitempty"`
	// Resources overrides the default container resource requirements.
	// +optional
	Resources corev1.ResourceRequirements `json:"resources,omitempty"`
	// Labels are additional labels merged onto the generated pod.
	// +optional
	Labels map[string]string `json:"labels,omitempty"`
	// Annotations are additional annotations merged onto the generated pod.
	// +optional
	Annotations map[string]string `json:"annotations,omitempty"`
	// NodeSelector constrains pod scheduling.
	// +optional
	NodeSelector map[string]string `json:"nodeSelector,omitempty"`
}

// AdminServer configures the single administration server for the domain.
type AdminServer struct {
	// ServerStartState is RUNNING or ADMIN, mirroring the WebLogic server lifecycle state.
	// +optional
	ServerStartState string `json:"serverStartState,omitempty"`
	// ServerPod customizes the pod generated for the admin server.
	// +optional
	ServerPod ServerPod `json:"serverPod,omitempty"`
}

// ClusterSpec describes one WebLogic cluster referenced by the domain.
type ClusterSpec struct {
	// ClusterName identifies the cluster within the WebLogic domain configuration.
	// +kubebuilder:validation:MinLength=1
	ClusterName string `json:"clusterName"`
	// Replicas is the desired number of running cluster members.
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`
	// ServerStartState is RUNNING or ADMIN for servers in this cluster.
	// +optional
	ServerStartState string `json:"serverStartState,omitempty"`
	// ServerStartPolicy overrides the domain-level default start policy for every
	// member of this cluster, unless a ManagedServer entry overrides it further.
	// +optional
	ServerStartPolicy StartPolicy `json:"serverStartPolicy,omitempty"`
	// ServerPod customizes the pod generated for servers in this cluster.
	// +optional
	ServerPod ServerPod `json:"serverPod,omitempty"`
	// RestartVersion, when changed, forces a rolling restart of this cluster's servers.
	// +optional
	RestartVersion string `json:"restartVersion,omitempty"`
	// MaxDynamicClusterSize bounds the server numbers the engine will accept for a
	// dynamic cluster ("managed-server<i>", 1<=i<=MaxDynamicClusterSize).
	// +optional
	MaxDynamicClusterSize int32 `json:"maxDynamicClusterSize,omitempty"`
}

// ManagedServer holds per-server overrides keyed by server name.
type ManagedServer struct {
	// ServerName must match a name produced by the static or dynamic cluster topology.
	// +kubebuilder:validation:MinLength=1
	ServerName string `json:"serverName"`
	// ServerStartPolicy overrides the effective start policy for this server only.
	// +optional
	ServerStartPolicy StartPolicy `json:"serverStartPolicy,omitempty"`
	// RestartVersion, when changed, forces this server to restart independent of its cluster.
	// +optional
	RestartVersion string `json:"restartVersion,omitempty"`
	// ServerPod customizes the pod generated for this server.
	// +optional
	ServerPod ServerPod `json:"serverPod,omitempty"`
}

// OnlineUpdate configures WDT online update behavior for Model-in-Image domains.
type OnlineUpdate struct {
	// Enabled requests that a configuration change be applied without a full restart.
	// +optional
	Enabled bool `json:"enabled,omitempty"`
}

// ModelConfiguration configures a FromModel domain home source.
type ModelConfiguration struct {
	// DomainType is the WDT domain type, for example "WLS" or "JRF".
	// +optional
	DomainType string `json:"domainType,omitempty"`
	// RuntimeEncryptionSecret names the Secret holding the WDT runtime encryption passphrase.
	// +optional
	RuntimeEncryptionSecret string `json:"runtimeEncryptionSecret,omitempty"`
	// OnlineUpdate configures WDT online update behavior.
	// +optional
	OnlineUpdate OnlineUpdate `json:"onlineUpdate,omitempty"`
}

// Configuration groups the domain-home-source-specific settings.
type Configuration struct {
	// Model configures a FromModel domain home source. Ignored for other source types.
	// +optional
	Model ModelConfiguration `json:"model,omitempty"`
}

// DomainSpec is the desired state of a WebLogic domain, as read by the engine.
type DomainSpec struct {
	// DomainUID uniquely identifies this domain instance within its namespace and
	// prefixes every resource the engine creates on its behalf.
	// +kubebuilder:validation:MinLength=1
	DomainUID string `json:"domainUID"`
	// DomainHomeSourceType selects how the domain home is produced.
	// +kubebuilder:default=Image
	// +optional
	DomainHomeSourceType DomainHomeSourceType `json:"domainHomeSourceType,omitempty"`
	// Image is the container image carrying (or, for FromModel, building) the domain home.
	// +kubebuilder:validation:MinLength=1
	Image string `json:"image"`
	// ImagePullSecrets lists secrets used to pull Image.
	// +optional
	ImagePullSecrets []corev1.LocalObjectReference `json:"imagePullSecrets,omitempty"`
	// WebLogicCredentialsSecret names the Secret holding the admin username/password.
	// +kubebuilder:validation:MinLength=1
	WebLogicCredentialsSecret string `json:"webLogicCredentialsSecret"`
	// IncludeServerOutInPodLog mirrors the WebLogic server log onto the pod's stdout.
	// +optional
	IncludeServerOutInPodLog bool `json:"includeServerOutInPodLog,omitempty"`
	// ServerStartPolicy is the domain-level default start policy.
	// +kubebuilder:default=IF_NEEDED
	// +optional
	ServerStartPolicy StartPolicy `json:"serverStartPolicy,omitempty"`
	// RestartVersion, when changed, forces a rolling restart of every server in the domain.
	// +optional
	RestartVersion string `json:"restartVersion,omitempty"`
	// IntrospectVersion, when changed, forces the introspector job to re-run.
	// +optional
	IntrospectVersion string `json:"introspectVersion,omitempty"`
	// AdminServer configures the administration server.
	// +optional
	AdminServer AdminServer `json:"adminServer,omitempty"`
	// Clusters lists per-cluster overrides.
	// +optional
	Clusters []ClusterSpec `json:"clusters,omitempty"`
	// ManagedServers lists per-server overrides.
	// +optional
	ManagedServers []ManagedServer `json:"managedServers,omitempty"`
	// Configuration groups domain-home-source-specific settings.
	// +optional
	Configuration Configuration `json:"configuration,omitempty"`
}

// ServerHealth mirrors the WebLogic server's self-reported health.
type ServerHealth struct {
	// OverallHealth is one of "ok", "warn", "critical", "failed", or "" when unknown.
	// +optional
	OverallHealth string `json:"overallHealth,omitempty"`
}

// ServerStatus reports the observed state of one running (or expected) server.
type ServerStatus struct {
	// ServerName identifies the server.
	ServerName string `json:"serverName"`
	// State is one of "RUNNING", "STARTING", "SHUTDOWN", "SHUTTING_DOWN", "FAILED".
	// +optional
	State string `json:"state,omitempty"`
	// Health is the server's last observed self-reported health.
	// +optional
	Health ServerHealth `json:"health,omitempty"`
	// ClusterName is set for servers that are cluster members.
	// +optional
	ClusterName string `json:"clusterName,omitempty"`
}

// ClusterStatus reports the observed state of one cluster.
type ClusterStatus struct {
	// ClusterName identifies the cluster.
	ClusterName string `json:"clusterName"`
	// MaximumReplicas is the cluster size determined by introspection.
	// +optional
	MaximumReplicas int32 `json:"maximumReplicas,omitempty"`
	// ReadyReplicas is the number of cluster members currently RUNNING.
	// +optional
	ReadyReplicas int32 `json:"readyReplicas,omitempty"`
}

// DomainStatus is the observed state of a WebLogic domain, as written by the engine.
type DomainStatus struct {
	// Servers reports per-server observed state.
	// +optional
	Servers []ServerStatus `json:"servers,omitempty"`
	// Clusters reports per-cluster observed state.
	// +optional
	Clusters []ClusterStatus `json:"clusters,omitempty"`
	// IntrospectJobFailureCount counts consecutive introspector job failures since
	// the last successful introspection or spec change.
	// +optional
	IntrospectJobFailureCount int32 `json:"introspectJobFailureCount,omitempty"`
	// Message carries the most recent human-readable status or failure detail,
	// including the "FatalIntrospectorError" token on unrecoverable introspector errors.
	// +optional
	Message string `json:"message,omitempty"`
	// Conditions report the domain's higher-level lifecycle conditions.
	// +optional
	// +patchMergeKey=type
	// +patchStrategy=merge
	// +listType=map
	// +listMapKey=type
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="DomainUID",type=string,JSONPath=".spec.domainUID"
// +kubebuilder:printcolumn:name="Message",type=string,JSONPath=".status.message"

// Domain is the Schema for the domains API.
type Domain struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Spec defines the desired state of the domain.
	Spec DomainSpec `json:"spec"`

	// Status defines the observed state of the domain.
	// +optional
	Status DomainStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// DomainList contains a list of Domain.
type DomainList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata"`
	Items           []Domain `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Domain{}, &DomainList{})
}
