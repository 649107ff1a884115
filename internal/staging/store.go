package staging

import (
	"io"

	"sereno-go/internal/field"
)

// stagedEntry is one queued evidence file as persisted by a store.
type stagedEntry struct {
	Item    field.MediaItem `json:"item"`
	AddedAt string          `json:"added_at"`
}

// stagingStore abstracts the storage mechanics for a media staging queue.
// Implementations handle content storage and queue management.
// Concurrency is managed by the caller (Queue.mu), so stores do not need
// to be safe for concurrent use.
type stagingStore interface {
	// StoreContent reads from r, computes SHA-256, and stores content.
	// Deduplicates if checksum already exists. Returns checksum and size.
	StoreContent(r io.Reader) (checksum string, size int64, err error)

	// RemoveContent removes stored content by checksum (best-effort).
	RemoveContent(checksum string)

	// OpenContent returns a reader for stored content by checksum.
	OpenContent(checksum string) (io.ReadCloser, error)

	// Append adds an entry to the end of the queue.
	Append(e stagedEntry) error

	// Entries returns the queued entries in insertion order.
	Entries() ([]stagedEntry, error)

	// RemoveFirst removes the first entry with the given checksum.
	// Returns the number of remaining entries referencing the same
	// checksum (so the caller can decide whether to call RemoveContent).
	RemoveFirst(checksum string) (checksumRefsRemaining int, err error)

	// Clear removes all entries and all stored content.
	Clear() error

	// Len returns the number of entries in the queue.
	Len() (int, error)
}
