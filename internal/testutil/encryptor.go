package testutil

import (
	"sereno-go/internal/encryption"
	"sereno-go/internal/field"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() field.Encryptor {
	return encryption.NewTestEncryptor()
}
