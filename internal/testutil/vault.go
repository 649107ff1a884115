package testutil

import (
	"sereno-go/internal/field"
	"sereno-go/internal/vault"
)

// NewTestVault creates a new in-memory evidence vault for testing.
func NewTestVault() field.EvidenceVault {
	return vault.NewMemoryVault()
}
