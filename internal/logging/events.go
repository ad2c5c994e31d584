// Package logging emits the engine's per-domain lifecycle milestones: one
// structured line each time a make-right plan completes or a status read
// completes, keyed so a log pipeline can follow a single domainUID through
// its reconciliation history.
package logging

import "github.com/go-logr/logr"

// LogDomainEvent emits one milestone line for a domain lifecycle event.
// Every line carries milestone=true and the event name; fields add the
// per-event context (domainUID, namespace, plan, ...).
func LogDomainEvent(logger logr.Logger, event string, fields map[string]string) {
	l := logger.WithValues("milestone", "true", "event", event)
	for key, value := range fields {
		l = l.WithValues(key, value)
	}
	l.Info("domain lifecycle event")
}
