// Package kube holds small helpers over raw Kubernetes objects shared by the
// engine's steps; today that is the terminal-state classification of the
// introspector Job.
package kube

import (
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// JobOutcome is the classification AwaitIntrospectorJobComplete switches on
// after each wake-up: keep waiting, continue the plan, or report a failure.
type JobOutcome int

const (
	// JobRunning means the Job has not reached a terminal state; the fiber
	// suspends again.
	JobRunning JobOutcome = iota
	// JobSucceeded means the Job completed and its output (the introspection
	// ConfigMap) can be trusted.
	JobSucceeded
	// JobFailed means the Job reached a terminal failure; the failure
	// counter advances and the cycle errors out.
	JobFailed
)

// OutcomeOf classifies job. Conditions are authoritative when present; the
// pod counters are the fallback for a Job whose controller has not yet
// written them, common right after the last pod exits.
func OutcomeOf(job *batchv1.Job) JobOutcome {
	if job == nil {
		return JobRunning
	}

	for _, c := range job.Status.Conditions {
		if c.Status != corev1.ConditionTrue {
			continue
		}
		switch c.Type {
		case batchv1.JobComplete:
			return JobSucceeded
		case batchv1.JobFailed:
			return JobFailed
		}
	}

	if job.Status.Succeeded > 0 {
		return JobSucceeded
	}
	if job.Status.Failed > 0 && job.Status.Active == 0 {
		return JobFailed
	}
	return JobRunning
}
