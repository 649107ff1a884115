package field

import "io"

// Encryptor protects the persisted session blob at rest.
type Encryptor interface {
	// Setup generates and stores the key material, protecting the private
	// half with the passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w. Only the
	// public half of the key is needed.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key with the passphrase and returns a
	// context that can decrypt.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether key material exists.
	IsConfigured() bool
}

// DecryptionContext is an unlocked key that can decrypt session blobs.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
