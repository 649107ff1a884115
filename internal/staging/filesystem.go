package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sereno-go/internal/field"
)

// fsStore keeps staged content and the queue on disk so the queue
// survives restarts.
//
// Directory structure:
//
//	<staging_dir>/
//	  queue.json    (ordered list of staged items)
//	  files/
//	    <checksum>  (staged content, deduplicated)
type fsStore struct {
	stagingDir string
	filesDir   string
	queuePath  string
	queue      []stagedEntry
}

// NewFilesystemQueue creates a filesystem-backed staging queue rooted at
// stagingDir, rehydrating any queue left by a previous run.
func NewFilesystemQueue(stagingDir string, clock field.Clock) (*Queue, error) {
	filesDir := filepath.Join(stagingDir, "files")
	if err := os.MkdirAll(filesDir, 0700); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	s := &fsStore{
		stagingDir: stagingDir,
		filesDir:   filesDir,
		queuePath:  filepath.Join(stagingDir, "queue.json"),
	}
	if err := s.loadQueue(); err != nil {
		return nil, err
	}

	return &Queue{store: s, clock: clock}, nil
}

func (s *fsStore) loadQueue() error {
	data, err := os.ReadFile(s.queuePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading queue file: %w", err)
	}
	if err := json.Unmarshal(data, &s.queue); err != nil {
		return fmt.Errorf("parsing queue file: %w", err)
	}
	return nil
}

func (s *fsStore) saveQueue() error {
	data, err := json.Marshal(s.queue)
	if err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}
	tmp := s.queuePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing queue file: %w", err)
	}
	if err := os.Rename(tmp, s.queuePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing queue file: %w", err)
	}
	return nil
}

func (s *fsStore) StoreContent(r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(s.stagingDir, "incoming-*")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("writing content: %w", err)
	}

	checksum := hex.EncodeToString(h.Sum(nil))
	dest := filepath.Join(s.filesDir, checksum)
	if _, err := os.Stat(dest); err == nil {
		return checksum, size, nil
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", 0, fmt.Errorf("storing content: %w", err)
	}
	return checksum, size, nil
}

func (s *fsStore) RemoveContent(checksum string) {
	os.Remove(filepath.Join(s.filesDir, checksum))
}

func (s *fsStore) OpenContent(checksum string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.filesDir, checksum))
	if err != nil {
		return nil, fmt.Errorf("content not found: %s", checksum)
	}
	return f, nil
}

func (s *fsStore) Append(e stagedEntry) error {
	s.queue = append(s.queue, e)
	if err := s.saveQueue(); err != nil {
		s.queue = s.queue[:len(s.queue)-1]
		return err
	}
	return nil
}

func (s *fsStore) Entries() ([]stagedEntry, error) {
	out := make([]stagedEntry, len(s.queue))
	copy(out, s.queue)
	return out, nil
}

func (s *fsStore) RemoveFirst(checksum string) (int, error) {
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

	removed := s.queue[idx]
	s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
	if err := s.saveQueue(); err != nil {
		s.queue = append(s.queue[:idx], append([]stagedEntry{removed}, s.queue[idx:]...)...)
		return 0, err
	}
	return refs - 1, nil
}

func (s *fsStore) Clear() error {
	s.queue = nil
	if err := s.saveQueue(); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.filesDir)
	if err != nil {
		return fmt.Errorf("listing staged content: %w", err)
	}
	for _, e := range entries {
		os.Remove(filepath.Join(s.filesDir, e.Name()))
	}
	return nil
}

func (s *fsStore) Len() (int, error) {
	return len(s.queue), nil
}
