// Package status maintains the condition slice on a Domain's status: one
// place that knows which condition types the engine publishes and stamps
// ObservedGeneration consistently, so the planner, the retry controller, and
// the status updater all write conditions the same way.
package status

import (
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/constants"
)

func set(d *weblogicv1.Domain, conditionType string, status metav1.ConditionStatus, reason, message string) {
	meta.SetStatusCondition(&d.Status.Conditions, metav1.Condition{
		Type:               conditionType,
		Status:             status,
		Reason:             reason,
		Message:            message,
		ObservedGeneration: d.Generation,
		LastTransitionTime: metav1.Now(),
	})
}

// MarkAvailable records that an up-plan brought the domain to its desired
// state: Available=True, and any earlier Failed condition cleared.
func MarkAvailable(d *weblogicv1.Domain, message string) {
	set(d, constants.ConditionTypeAvailable, metav1.ConditionTrue, constants.ReasonReady, message)
	meta.RemoveStatusCondition(&d.Status.Conditions, constants.ConditionTypeFailed)
}

// MarkProgressing records that a make-right plan is underway.
func MarkProgressing(d *weblogicv1.Domain, message string) {
	set(d, constants.ConditionTypeProgressing, metav1.ConditionTrue, constants.ReasonProgressing, message)
}

// ClearProgressing removes the Progressing condition once a plan finishes.
func ClearProgressing(d *weblogicv1.Domain) {
	meta.RemoveStatusCondition(&d.Status.Conditions, constants.ConditionTypeProgressing)
}

// MarkFailed records a make-right failure: Failed=True with the given
// reason, and Available=False since the domain is no longer known to match
// its spec.
func MarkFailed(d *weblogicv1.Domain, reason, message string) {
	set(d, constants.ConditionTypeFailed, metav1.ConditionTrue, reason, message)
	set(d, constants.ConditionTypeAvailable, metav1.ConditionFalse, reason, message)
}

// IsFailed reports whether the domain currently carries Failed=True.
func IsFailed(d *weblogicv1.Domain) bool {
	return meta.IsStatusConditionTrue(d.Status.Conditions, constants.ConditionTypeFailed)
}

// IsAvailable reports whether the domain currently carries Available=True.
func IsAvailable(d *weblogicv1.Domain) bool {
	return meta.IsStatusConditionTrue(d.Status.Conditions, constants.ConditionTypeAvailable)
}

// Condition returns the condition with the given type, or nil.
func Condition(d *weblogicv1.Domain, conditionType string) *metav1.Condition {
	return meta.FindStatusCondition(d.Status.Conditions, conditionType)
}
