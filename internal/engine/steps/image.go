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
	"context"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/engine"
	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
	"github.com/wlsoperator/domain-engine/internal/interfaces"
)

// ImageResolver resolves a mutable image reference to a digest reference.
// internal/image.Resolver is the production implementation.
type ImageResolver interface {
	Resolve(ctx context.Context, imageRef string) (string, error)
}

// ResolveDomainImage resolves spec.image to a digest reference and stashes it
// in the Packet, so that the introspector Job and every server pod created by
// this cycle reference the same image bytes. With internal/image.Resolver a
// tag's first resolution is cached for the life of the process, so a tag
// moved after that is not seen by this step. When a verifier is configured the
// image's signature is checked before anything references it; a verification
// failure aborts the plan.
type ResolveDomainImage struct {
	Resolver ImageResolver
	Verifier interfaces.ImageVerifier
	// VerifyConfig returns the verification settings for d, or nil when
	// signature verification is not configured for this operator.
	VerifyConfig func(d *weblogicv1.Domain) *interfaces.VerifyConfig
}

func (ResolveDomainImage) Name() string { return "ResolveDomainImage" }

func (s ResolveDomainImage) Apply(ctx context.Context, packet *engine.Packet) (engine.NextAction, error) {
	info, err := infoOf(packet)
	if err != nil {
		return engine.NextAction{}, err
	}
	d := info.Domain()
	if d == nil || d.Spec.Image == "" {
		return engine.EndChain(), nil
	}

	if s.Verifier != nil && s.VerifyConfig != nil {
		if cfg := s.VerifyConfig(d); cfg != nil {
			digest, err := s.Verifier.Verify(ctx, d.Spec.Image, *cfg)
			if err != nil {
				return engine.NextAction{}, weblogicerrors.WrapPermanentConfig(err)
			}
			packet.Put(engine.KeyResolvedImage, digest)
			return engine.EndChain(), nil
		}
	}

	if s.Resolver == nil {
		return engine.EndChain(), nil
	}
	resolved, err := s.Resolver.Resolve(ctx, d.Spec.Image)
	if err != nil {
		// Registry unavailability is retryable; the Retry/Backoff Controller
		// reschedules this cycle.
		return engine.NextAction{}, weblogicerrors.WrapTransientConnection(err)
	}
	packet.Put(engine.KeyResolvedImage, resolved)
	return engine.EndChain(), nil
}

// resolvedImage returns the digest ResolveDomainImage pinned for this cycle,
// falling back to the raw spec.image when no resolver ran.
func resolvedImage(packet *engine.Packet, d *weblogicv1.Domain) string {
	if v, ok := packet.Get(engine.KeyResolvedImage); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return d.Spec.Image
}
