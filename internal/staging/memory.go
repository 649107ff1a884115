package staging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"sereno-go/internal/field"
)

// memoryStore keeps staged content and the queue in memory. Useful for
// tests and for ephemeral sessions where restarts may drop the queue.
type memoryStore struct {
	contents map[string][]byte
	queue    []stagedEntry
}

// NewMemoryQueue creates an in-memory staging queue.
func NewMemoryQueue(clock field.Clock) *Queue {
	return &Queue{
		store: &memoryStore{contents: make(map[string][]byte)},
		clock: clock,
	}
}

func (s *memoryStore) StoreContent(r io.Reader) (string, int64, error) {
	h := sha256.New()
	var buf bytes.Buffer
	size, err := io.Copy(io.MultiWriter(h, &buf), r)
	if err != nil {
		return "", 0, fmt.Errorf("reading content: %w", err)
	}
	checksum := hex.EncodeToString(h.Sum(nil))
	if _, exists := s.contents[checksum]; !exists {
		s.contents[checksum] = buf.Bytes()
	}
	return checksum, size, nil
}

func (s *memoryStore) RemoveContent(checksum string) {
	delete(s.contents, checksum)
}

func (s *memoryStore) OpenContent(checksum string) (io.ReadCloser, error) {
	content, ok := s.contents[checksum]
	if !ok {
		return nil, fmt.Errorf("content not found: %s", checksum)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *memoryStore) Append(e stagedEntry) error {
	s.queue = append(s.queue, e)
	return nil
}

func (s *memoryStore) Entries() ([]stagedEntry, error) {
	out := make([]stagedEntry, len(s.queue))
	copy(out, s.queue)
	return out, nil
}

func (s *memoryStore) RemoveFirst(checksum string) (int, error) {
	idx := -1
	refs := 0
	for i, e := range s.queue {
		if e.Item.Checksum == checksum {
			refs++
			if idx < 0 {
				idx = i
			}
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("no staged item with checksum %s", checksum)
	}
	s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
	return refs - 1, nil
}

func (s *memoryStore) Clear() error {
	s.queue = nil
	s.contents = make(map[string][]byte)
	return nil
}

func (s *memoryStore) Len() (int, error) {
	return len(s.queue), nil
}
