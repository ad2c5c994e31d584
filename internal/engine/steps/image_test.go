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
	"errors"
	"testing"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/engine"
	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
	"github.com/wlsoperator/domain-engine/internal/interfaces"
)

type stubResolver struct {
	digest string
	err    error
	calls  int
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.digest, s.err
}

type stubVerifier struct {
	digest string
	err    error
}

func (s *stubVerifier) Verify(_ context.Context, _ string, _ interfaces.VerifyConfig) (string, error) {
	return s.digest, s.err
}

func TestResolveDomainImage_PinsDigestInPacket(t *testing.T) {
	d := newTestDomain("uid1", "wls:1")
	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	packet := engine.NewPacket(info)

	r := &stubResolver{digest: "registry.example.com/wls@sha256:abc123"}
	na, err := (ResolveDomainImage{Resolver: r}).Apply(context.Background(), packet)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if na.Kind != engine.End {
		t.Fatalf("Apply() kind = %v, want End", na.Kind)
	}
	if got := resolvedImage(packet, d); got != r.digest {
		t.Errorf("resolvedImage() = %q, want %q", got, r.digest)
	}
}

func TestResolveDomainImage_NilResolverFallsBackToTag(t *testing.T) {
	d := newTestDomain("uid1", "wls:1")
	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	packet := engine.NewPacket(info)

	if _, err := (ResolveDomainImage{}).Apply(context.Background(), packet); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := resolvedImage(packet, d); got != "wls:1" {
		t.Errorf("resolvedImage() = %q, want the raw tag", got)
	}
}

func TestResolveDomainImage_ResolutionFailureIsTransient(t *testing.T) {
	d := newTestDomain("uid1", "wls:1")
	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	packet := engine.NewPacket(info)

	r := &stubResolver{err: errors.New("registry unavailable")}
	_, err := (ResolveDomainImage{Resolver: r}).Apply(context.Background(), packet)
	if err == nil {
		t.Fatal("Apply() error = nil, want transient error")
	}
	if !weblogicerrors.IsTransient(err) {
		t.Errorf("IsTransient(%v) = false, want true", err)
	}
}

func TestResolveDomainImage_VerifierTakesPrecedence(t *testing.T) {
	d := newTestDomain("uid1", "wls:1")
	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	packet := engine.NewPacket(info)

	r := &stubResolver{digest: "resolver-digest"}
	v := &stubVerifier{digest: "registry.example.com/wls@sha256:def456"}
	step := ResolveDomainImage{
		Resolver: r,
		Verifier: v,
		VerifyConfig: func(*weblogicv1.Domain) *interfaces.VerifyConfig {
			return &interfaces.VerifyConfig{PublicKey: "key"}
		},
	}
	if _, err := step.Apply(context.Background(), packet); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := resolvedImage(packet, d); got != v.digest {
		t.Errorf("resolvedImage() = %q, want the verifier's digest %q", got, v.digest)
	}
	if r.calls != 0 {
		t.Errorf("resolver called %d times, want 0 when the verifier handles resolution", r.calls)
	}
}

func TestResolveDomainImage_VerificationFailureIsPermanent(t *testing.T) {
	d := newTestDomain("uid1", "wls:1")
	info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
	packet := engine.NewPacket(info)

	v := &stubVerifier{err: errors.New("signature mismatch")}
	step := ResolveDomainImage{
		Verifier: v,
		VerifyConfig: func(*weblogicv1.Domain) *interfaces.VerifyConfig {
			return &interfaces.VerifyConfig{PublicKey: "key"}
		},
	}
	_, err := step.Apply(context.Background(), packet)
	if err == nil {
		t.Fatal("Apply() error = nil, want permanent error")
	}
	if !weblogicerrors.IsPermanent(err) {
		t.Errorf("IsPermanent(%v) = false, want true", err)
	}
}
