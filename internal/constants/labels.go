package constants

// Label keys the Watch Dispatcher filters on (spec §6) and that every
// resource the engine creates carries so ownership can be recovered without
// in-process parent pointers (spec §9 "use owner IDs rather than in-process
// parent pointers").
const (
	LabelAppName      = "app.kubernetes.io/name"
	LabelAppInstance  = "app.kubernetes.io/instance"
	LabelAppManagedBy = "app.kubernetes.io/managed-by"
	LabelAppComponent = "app.kubernetes.io/component"

	LabelDomainUID       = "weblogic.domainUID"
	LabelServerName      = "weblogic.serverName"
	LabelClusterName     = "weblogic.clusterName"
	LabelJobName         = "weblogic.jobName"
	LabelCreatedByOperator = "weblogic.createdByOperator"
	LabelResourceVersion = "weblogic.resourceVersion"
)

// Common label values used by the operator.
const (
	LabelValueAppNameDomain         = "weblogic-domain"
	LabelValueAppNameOperator       = "weblogic-operator"
	LabelValueAppManagedByOperator  = "weblogic-operator"
	LabelValueCreatedByOperatorTrue = "true"
)
