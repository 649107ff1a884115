package field

import "io"

// EvidenceVault archives submitted media content by checksum for
// retention. Archiving is idempotent: storing the same checksum twice is
// safe.
type EvidenceVault interface {
	// PutContent stores content identified by its checksum. size is the
	// number of bytes that will be read from r.
	PutContent(checksum string, r io.Reader, size int64) error

	// GetContent retrieves content by checksum and writes it to w.
	GetContent(checksum string, w io.Writer) error

	// ValidateSetup verifies the vault is accessible and configured.
	ValidateSetup() error
}
