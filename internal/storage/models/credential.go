package models

import (
	"time"
)

// CredentialSet holds the platform-specific secret fields for one
// integration. The fields are opaque to the sync engine; each adapter knows
// which keys it needs. Integrations reference a set by ID, never embed it.
type CredentialSet struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id"`
	Platform  string            `json:"platform"`
	Name      string            `json:"name"`
	Secrets   map[string]string `json:"secrets,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Field returns a secret field value, or "" if absent.
func (c *CredentialSet) Field(key string) string {
	return c.Secrets[key]
}

// Masked returns a copy safe to return from the API: secret values are
// replaced by asterisks, keys are kept so the UI can show what is configured.
func (c *CredentialSet) Masked() *CredentialSet {
	masked := *c
	masked.Secrets = make(map[string]string, len(c.Secrets))
	for k := range c.Secrets {
		masked.Secrets[k] = "********"
	}
	return &masked
}
