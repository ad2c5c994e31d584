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

package engine

import (
	"regexp"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// ReadinessSource is everything a ReadinessParser may draw on to decide a
// server's readiness status. Pod is nil when only an Event is available
// (spec §9 Open Question 2: "implementations should treat the parser as
// pluggable and add structured Pod condition inspection in parallel").
type ReadinessSource struct {
	EventMessage string
	Pod          *corev1.Pod
}

// ReadinessParser extracts a textual readiness status from a ReadinessSource.
// Both implementations below are stateless empty structs: the zero value is
// ready to use and safe to share across goroutines.
type ReadinessParser interface {
	Parse(src ReadinessSource) (status string, ok bool)
}

// DefaultReadinessParsers returns the engine's built-in parser chain, tried
// in order by ParseReadiness: substring token match first (the original
// behavior), structured Pod condition as a fallback.
func DefaultReadinessParsers() []ReadinessParser {
	return []ReadinessParser{
		SubstringReadinessParser{},
		PodConditionReadinessParser{},
	}
}

// ParseReadiness tries each parser in order and returns the first match.
func ParseReadiness(parsers []ReadinessParser, src ReadinessSource) (string, bool) {
	for _, p := range parsers {
		if status, ok := p.Parse(src); ok {
			return status, true
		}
	}
	return "", false
}

// readinessProbeMessage matches kubelet readiness-probe Event messages, e.g.
// "Readiness probe failed: HTTP probe failed with statuscode: 503".
var readinessProbeMessage = regexp.MustCompile(`(?i)readiness probe (failed|succeeded)`)

// SubstringReadinessParser implements spec §9's original behavior: a
// substring token match against the Event message.
type SubstringReadinessParser struct{}

func (SubstringReadinessParser) Parse(src ReadinessSource) (string, bool) {
	m := readinessProbeMessage.FindStringSubmatch(src.EventMessage)
	if m == nil {
		return "", false
	}
	if strings.EqualFold(m[1], "failed") {
		return "NOT_READY", true
	}
	return "RUNNING", true
}

// PodConditionReadinessParser falls back to the Pod's structured
// corev1.PodCondition (Type: Ready) when the Event message does not carry a
// recognizable token — readiness events are throttled by kubelet and a
// server can transition without one ever being emitted.
type PodConditionReadinessParser struct{}

func (PodConditionReadinessParser) Parse(src ReadinessSource) (string, bool) {
	if src.Pod == nil {
		return "", false
	}
	for _, c := range src.Pod.Status.Conditions {
		if c.Type != corev1.PodReady {
			continue
		}
		if c.Status == corev1.ConditionTrue {
			return "RUNNING", true
		}
		return "NOT_READY", true
	}
	return "", false
}
