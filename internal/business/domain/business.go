package domain

import (
	"encoding/json"
	"time"
)

// Business is a tenant. Its ID is the isolation boundary for every tenant-owned row.
type Business struct {
	ID                 string
	Name               string
	Branding           json.RawMessage
	AISettings         json.RawMessage
	SubscriptionStatus string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Credential is an encrypted provider secret held by a business (API keys, tokens).
// Envelope is the serialized ciphertext; the plaintext is never persisted.
type Credential struct {
	BusinessID string
	Name       string
	Envelope   string
	UpdatedAt  time.Time
}
