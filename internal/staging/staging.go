package staging

import (
	"fmt"
	"io"
	"sync"
	"time"

	"sereno-go/internal/field"
)

// Queue implements field.MediaStagingArea using a pluggable stagingStore
// for the storage mechanics. All shared queue logic lives here.
type Queue struct {
	store stagingStore
	clock field.Clock
	mu    sync.Mutex
}

var _ field.MediaStagingArea = (*Queue)(nil)

// Stage stores the item content and appends it to the queue. Content is
// keyed by SHA-256 checksum, so staging the same bytes twice keeps one
// copy with two queue entries.
func (q *Queue) Stage(item field.MediaItem, r io.Reader) (field.MediaItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	checksum, size, err := q.store.StoreContent(r)
	if err != nil {
		return field.MediaItem{}, fmt.Errorf("storing content: %w", err)
	}

	item.Checksum = checksum
	item.SizeBytes = size

	e := stagedEntry{
		Item:    item,
		AddedAt: q.clock.Now().Format(time.RFC3339),
	}
	if err := q.store.Append(e); err != nil {
		if remaining, _ := q.refsLocked(checksum); remaining == 0 {
			q.store.RemoveContent(checksum)
		}
		return field.MediaItem{}, fmt.Errorf("adding to queue: %w", err)
	}

	return item, nil
}

// List returns the queued items in insertion order.
func (q *Queue) List() ([]field.StagedMedia, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Entries()
	if err != nil {
		return nil, err
	}

	out := make([]field.StagedMedia, 0, len(entries))
	for _, e := range entries {
		out = append(out, field.StagedMedia{Item: e.Item, AddedAt: e.AddedAt})
	}
	return out, nil
}

// OpenContent returns a reader for staged content by checksum.
func (q *Queue) OpenContent(checksum string) (io.ReadCloser, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.OpenContent(checksum)
}

// Remove drops the first queued item with the given checksum. The content
// is removed only when no other queued item references it.
func (q *Queue) Remove(checksum string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	remaining, err := q.store.RemoveFirst(checksum)
	if err != nil {
		return err
	}
	if remaining == 0 {
		q.store.RemoveContent(checksum)
	}
	return nil
}

// Clear empties the queue and removes all content.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Clear()
}

// Count returns the number of queued items.
func (q *Queue) Count() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Len()
}

func (q *Queue) refsLocked(checksum string) (int, error) {
	entries, err := q.store.Entries()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Item.Checksum == checksum {
			n++
		}
	}
	return n, nil
}
