// Package vault mediates read access to platform credential sets. The sync
// engine only ever sees a CredentialSet through Get; secret values never
// reach the sync log or API responses.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// ErrNotFound is returned when a credential ref does not resolve.
var ErrNotFound = errors.New("credential set not found")

// Vault resolves credential refs to credential sets.
type Vault struct {
	repo *storage.CredentialRepository
}

// New creates a vault backed by the credential repository.
func New(repo *storage.CredentialRepository) *Vault {
	return &Vault{repo: repo}
}

// Get resolves a credential ref. Returns ErrNotFound for unknown refs so
// callers can distinguish a dangling ref from a storage failure.
func (v *Vault) Get(ctx context.Context, ref string) (*models.CredentialSet, error) {
	creds, err := v.repo.GetByID(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving credential ref: %w", err)
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return creds, nil
}

// Redact replaces any secret values of creds appearing in msg. Every error
// path that could carry credential material must pass through here before
// the message reaches the sync log or a client.
func Redact(msg string, creds *models.CredentialSet) string {
	if creds == nil {
		return msg
	}
	for _, secret := range creds.Secrets {
		if len(secret) < 4 {
			continue
		}
		msg = strings.ReplaceAll(msg, secret, "[redacted]")
	}
	return msg
}
