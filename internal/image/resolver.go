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

// Package image resolves WebLogic domain image references to digests and,
// optionally, verifies their signatures before the engine creates a pod that
// references them (spec §10.10).
package image

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Resolver resolves a mutable image reference (tag or digest) to its
// registry digest, so that a restart triggered by a mutable tag is detected
// through digest comparison rather than string equality on the tag (spec
// §10.10). It caches resolutions per tag reference to avoid a registry round
// trip on every reconcile. Cached entries do not expire; Changed is the only
// call that bypasses the cache.
type Resolver struct {
	logger logr.Logger

	mu    sync.RWMutex
	cache map[string]string

	// Keychain resolves registry credentials. Defaults to
	// authn.DefaultKeychain (docker config / pod-level imagePullSecrets are
	// layered on by callers that need them via KeychainFromDockerConfig).
	Keychain authn.Keychain
}

// NewResolver creates a Resolver that logs through logger.
func NewResolver(logger logr.Logger) *Resolver {
	return &Resolver{
		logger:   logger,
		cache:    make(map[string]string),
		Keychain: authn.DefaultKeychain,
	}
}

// Resolve returns imageRef rewritten as a "repo@sha256:..." digest
// reference. If imageRef is already a digest reference it is normalized and
// returned without a network call.
func (r *Resolver) Resolve(ctx context.Context, imageRef string) (string, error) {
	if cached, ok := r.cachedDigest(imageRef); ok {
		return cached, nil
	}

	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return "", fmt.Errorf("parse image reference %q: %w", imageRef, err)
	}

	if d, ok := ref.(name.Digest); ok {
		resolved := d.String()
		r.store(imageRef, resolved)
		return resolved, nil
	}

	opts := []remote.Option{remote.WithContext(ctx)}
	if r.Keychain != nil {
		opts = append(opts, remote.WithAuthFromKeychain(r.Keychain))
	}

	desc, err := remote.Head(ref, opts...)
	if err != nil {
		return "", fmt.Errorf("resolve digest for %q: %w", imageRef, err)
	}

	digestRef, err := name.NewDigest(fmt.Sprintf("%s@%s", ref.Context().Name(), desc.Digest.String()))
	if err != nil {
		return "", fmt.Errorf("build digest reference for %q: %w", imageRef, err)
	}

	resolved := digestRef.String()
	r.store(imageRef, resolved)
	r.logger.V(1).Info("resolved image digest", "image", imageRef, "digest", resolved)
	return resolved, nil
}

// Changed reports whether currentDigest (as last resolved for previousRef)
// differs from a fresh resolution of previousRef, i.e. whether the tag a
// running server was started from has since moved.
func (r *Resolver) Changed(ctx context.Context, previousRef, currentDigest string) (bool, error) {
	r.mu.Lock()
	delete(r.cache, previousRef)
	r.mu.Unlock()
	resolved, err := r.Resolve(ctx, previousRef)
	if err != nil {
		return false, err
	}
	return resolved != currentDigest, nil
}

func (r *Resolver) cachedDigest(imageRef string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	digest, ok := r.cache[imageRef]
	return digest, ok
}

func (r *Resolver) store(imageRef, digest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[imageRef] = digest
}
