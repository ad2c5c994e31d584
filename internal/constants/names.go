package constants

import "fmt"

// Resource name suffixes the engine uses when deriving Kubernetes object
// names from a domainUID (spec §6).
const (
	SuffixIntrospector       = "-introspector"
	SuffixIntrospectorConfigMap = "-weblogic-domain-introspect-cm"
	SuffixScriptConfigMap    = "-weblogic-scripts-cm"
	SuffixExternalService    = "-external"
)

// ContainerNameWebLogicServer is the container name used for both the admin
// and managed server pods.
const ContainerNameWebLogicServer = "weblogic-server"

// ToJobIntrospectorName returns the introspector Job name for a domainUID,
// e.g. "<uid>-introspector" (spec §6).
func ToJobIntrospectorName(domainUID string) string {
	return domainUID + SuffixIntrospector
}

// ToIntrospectorConfigMapName returns the ConfigMap name the introspector job
// writes topology.yaml into, e.g. "<uid>-weblogic-domain-introspect-cm".
func ToIntrospectorConfigMapName(domainUID string) string {
	return domainUID + SuffixIntrospectorConfigMap
}

// ToScriptConfigMapName returns the name of the shared scripts ConfigMap the
// Watch Dispatcher recreates when it is changed or deleted (spec §4.4).
func ToScriptConfigMapName(domainUID string) string {
	return domainUID + SuffixScriptConfigMap
}

// ToAdminServerPodName returns the admin server pod name for a domainUID.
func ToAdminServerPodName(domainUID, adminServerName string) string {
	return fmt.Sprintf("%s-%s", domainUID, adminServerName)
}

// ToManagedServerPodName returns a managed server's pod name for a domainUID.
func ToManagedServerPodName(domainUID, serverName string) string {
	return fmt.Sprintf("%s-%s", domainUID, serverName)
}

// ToExternalServiceName returns the name of the optional admin external
// service for a domainUID.
func ToExternalServiceName(domainUID, adminServerName string) string {
	return fmt.Sprintf("%s-%s%s", domainUID, adminServerName, SuffixExternalService)
}
