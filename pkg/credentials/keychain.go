package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// keychainService is the service name used for keychain entries.
const keychainService = "nimbuscdn"

// Keychain stores credentials in the system keychain, one JSON-encoded
// entry per credential type.
//
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
type Keychain struct {
	service string
}

// NewKeychain creates a keychain store.
func NewKeychain() *Keychain {
	return &Keychain{service: keychainService}
}

// Name implements Store.
func (k *Keychain) Name() string { return "keychain" }

// Get implements Store.
func (k *Keychain) Get(_ context.Context, credentialType string) (workflow.Credentials, error) {
	raw, err := keyring.Get(k.service, credentialType)
	if err != nil {
		return nil, k.wrap(credentialType, err)
	}

	var creds workflow.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("keychain entry %s is corrupt: %w", credentialType, err)
	}
	return creds, nil
}

// Set stores credentials, replacing any previous entry.
func (k *Keychain) Set(_ context.Context, credentialType string, creds workflow.Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := keyring.Set(k.service, credentialType, string(raw)); err != nil {
		return k.wrap(credentialType, err)
	}
	return nil
}

// Delete removes the entry for credentialType.
func (k *Keychain) Delete(_ context.Context, credentialType string) error {
	if err := keyring.Delete(k.service, credentialType); err != nil {
		return k.wrap(credentialType, err)
	}
	return nil
}

func (k *Keychain) wrap(credentialType string, err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, credentialType)
	}
	if isKeychainUnavailableError(err) {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, err.Error())
	}
	return fmt.Errorf("keychain error: %w", err)
}

// isKeychainUnavailableError checks for messages indicating a locked or
// missing keychain service.
func isKeychainUnavailableError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"locked",
		"no such interface",
		"secret service",
		"dbus",
		"not available",
		"unsupported",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var _ Store = (*Keychain)(nil)
