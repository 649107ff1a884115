package field

import "io"

// StagedMedia is an evidence file waiting in the local queue for the next
// submission.
type StagedMedia struct {
	Item    MediaItem
	AddedAt string
}

// MediaStagingArea queues validated evidence files before submission.
// Content is stored by checksum so duplicate files are kept once.
type MediaStagingArea interface {
	// Stage stores the content (computing its checksum, deduplicated)
	// and appends the item to the queue. Callers validate the item
	// first. The returned item has Checksum filled in.
	Stage(item MediaItem, r io.Reader) (MediaItem, error)

	// List returns the queued items in insertion order.
	List() ([]StagedMedia, error)

	// OpenContent returns a reader for staged content by checksum.
	OpenContent(checksum string) (io.ReadCloser, error)

	// Remove drops one queued item and its content when no other item
	// references the same checksum.
	Remove(checksum string) error

	// Clear empties the queue and removes all content.
	Clear() error

	// Count returns the number of queued items.
	Count() (int, error)
}
