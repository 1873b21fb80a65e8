// Package credentials resolves workflow credentials for node executions.
//
// A Store maps a credential type name (e.g., "aliyunApi") to its fields.
// Stores are read-only from a node's point of view; only the CLI writes to
// the keychain store.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// Sentinel errors for credential stores.
var (
	// ErrNotFound indicates the store holds no credentials of the requested type.
	ErrNotFound = errors.New("credentials not found")

	// ErrBackendUnavailable indicates the backing service cannot be reached.
	ErrBackendUnavailable = errors.New("credential backend unavailable")
)

// Store resolves credentials by type.
type Store interface {
	// Name identifies the backend (e.g., "keychain", "env").
	Name() string

	// Get returns the credentials of the given type or ErrNotFound.
	Get(ctx context.Context, credentialType string) (workflow.Credentials, error)
}

// Static is an in-memory store. It is used for request-scoped credentials
// and tests.
type Static map[string]workflow.Credentials

// Name implements Store.
func (s Static) Name() string { return "static" }

// Get implements Store. The returned map is a copy.
func (s Static) Get(_ context.Context, credentialType string) (workflow.Credentials, error) {
	c, ok := s[credentialType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, credentialType)
	}
	out := make(workflow.Credentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out, nil
}

// Chain queries stores in order and returns the first hit.
//
// ErrNotFound and ErrBackendUnavailable fall through to the next store;
// any other error stops the chain.
type Chain []Store

// Name implements Store.
func (c Chain) Name() string { return "chain" }

// Get implements Store.
func (c Chain) Get(ctx context.Context, credentialType string) (workflow.Credentials, error) {
	for _, s := range c {
		creds, err := s.Get(ctx, credentialType)
		if err == nil {
			return creds, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBackendUnavailable) {
			continue
		}
		return nil, fmt.Errorf("%s store: %w", s.Name(), err)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, credentialType)
}

// Source returns the name of the first store holding credentialType.
func (c Chain) Source(ctx context.Context, credentialType string) (string, error) {
	for _, s := range c {
		if _, err := s.Get(ctx, credentialType); err == nil {
			return s.Name(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, credentialType)
}

var (
	_ Store                       = Static(nil)
	_ Store                       = Chain(nil)
	_ workflow.CredentialResolver = Chain(nil)
)

// Mask hides all but the last 4 characters of a secret.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
