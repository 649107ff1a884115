package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sereno-go/internal/config"
	"sereno-go/internal/field"
)

// fixedClock is a local stand-in; testutil would import this package back.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testClock() field.Clock {
	return fixedClock{t: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
}

func newQueues(t *testing.T) map[string]*Queue {
	t.Helper()
	fsq, err := NewFilesystemQueue(t.TempDir(), testClock())
	if err != nil {
		t.Fatalf("NewFilesystemQueue() error = %v", err)
	}
	return map[string]*Queue{
		"memory":     NewMemoryQueue(testClock()),
		"filesystem": fsq,
	}
}

func photoItem(name string) field.MediaItem {
	return field.MediaItem{
		Name:     name,
		MimeType: "image/jpeg",
	}
}

func TestQueue_Stage(t *testing.T) {
	for name, q := range newQueues(t) {
		t.Run(name, func(t *testing.T) {
			content := "jpeg bytes"
			wantSum := sha256.Sum256([]byte(content))

			item, err := q.Stage(photoItem("foto1.jpg"), strings.NewReader(content))
			if err != nil {
				t.Fatalf("Stage() error = %v", err)
			}
			if item.Checksum != hex.EncodeToString(wantSum[:]) {
				t.Errorf("checksum = %q", item.Checksum)
			}
			if item.SizeBytes != int64(len(content)) {
				t.Errorf("size = %d, want %d", item.SizeBytes, len(content))
			}

			count, err := q.Count()
			if err != nil || count != 1 {
				t.Errorf("Count() = %d, %v; want 1", count, err)
			}

			r, err := q.OpenContent(item.Checksum)
			if err != nil {
				t.Fatalf("OpenContent() error = %v", err)
			}
			defer r.Close()
			got, _ := io.ReadAll(r)
			if string(got) != content {
				t.Errorf("content = %q, want %q", got, content)
			}
		})
	}
}

func TestQueue_ListOrder(t *testing.T) {
	for name, q := range newQueues(t) {
		t.Run(name, func(t *testing.T) {
			for _, n := range []string{"a.jpg", "b.jpg", "c.mp4"} {
				if _, err := q.Stage(photoItem(n), strings.NewReader(n)); err != nil {
					t.Fatalf("Stage(%s) error = %v", n, err)
				}
			}

			items, err := q.List()
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(items) != 3 {
				t.Fatalf("len = %d, want 3", len(items))
			}
			for i, want := range []string{"a.jpg", "b.jpg", "c.mp4"} {
				if items[i].Item.Name != want {
					t.Errorf("items[%d] = %q, want %q", i, items[i].Item.Name, want)
				}
				if items[i].AddedAt == "" {
					t.Errorf("items[%d] has no AddedAt", i)
				}
			}
		})
	}
}

func TestQueue_DeduplicatesContent(t *testing.T) {
	for name, q := range newQueues(t) {
		t.Run(name, func(t *testing.T) {
			first, err := q.Stage(photoItem("uno.jpg"), strings.NewReader("same bytes"))
			if err != nil {
				t.Fatal(err)
			}
			second, err := q.Stage(photoItem("dos.jpg"), strings.NewReader("same bytes"))
			if err != nil {
				t.Fatal(err)
			}

			if first.Checksum != second.Checksum {
				t.Errorf("checksums differ: %q vs %q", first.Checksum, second.Checksum)
			}
			if count, _ := q.Count(); count != 2 {
				t.Errorf("Count() = %d, want 2", count)
			}

			// Removing one entry must keep the shared content readable.
			if err := q.Remove(first.Checksum); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			r, err := q.OpenContent(second.Checksum)
			if err != nil {
				t.Fatalf("OpenContent() after partial remove error = %v", err)
			}
			r.Close()

			// Removing the last reference drops the content.
			if err := q.Remove(second.Checksum); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, err := q.OpenContent(second.Checksum); err == nil {
				t.Error("OpenContent() should fail after last reference removed")
			}
		})
	}
}

func TestQueue_RemoveUnknown(t *testing.T) {
	for name, q := range newQueues(t) {
		t.Run(name, func(t *testing.T) {
			if err := q.Remove("deadbeef"); err == nil {
				t.Error("Remove() of unknown checksum should error")
			}
		})
	}
}

func TestQueue_Clear(t *testing.T) {
	for name, q := range newQueues(t) {
		t.Run(name, func(t *testing.T) {
			item, err := q.Stage(photoItem("foto.jpg"), strings.NewReader("bytes"))
			if err != nil {
				t.Fatal(err)
			}

			if err := q.Clear(); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			if count, _ := q.Count(); count != 0 {
				t.Errorf("Count() after Clear = %d, want 0", count)
			}
			if _, err := q.OpenContent(item.Checksum); err == nil {
				t.Error("OpenContent() should fail after Clear")
			}
		})
	}
}

func TestFilesystemQueue_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	clock := testClock()

	q1, err := NewFilesystemQueue(dir, clock)
	if err != nil {
		t.Fatal(err)
	}
	item, err := q1.Stage(photoItem("foto.jpg"), strings.NewReader("persisted"))
	if err != nil {
		t.Fatal(err)
	}

	q2, err := NewFilesystemQueue(dir, clock)
	if err != nil {
		t.Fatalf("reopening queue error = %v", err)
	}

	items, err := q2.List()
	if err != nil || len(items) != 1 {
		t.Fatalf("List() after reopen = %d items, err %v", len(items), err)
	}
	if items[0].Item.Name != "foto.jpg" || items[0].Item.Checksum != item.Checksum {
		t.Errorf("rehydrated item = %+v", items[0].Item)
	}

	r, err := q2.OpenContent(item.Checksum)
	if err != nil {
		t.Fatalf("OpenContent() after reopen error = %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "persisted" {
		t.Errorf("content = %q", got)
	}
}

func TestFilesystemQueue_StoresOneCopy(t *testing.T) {
	dir := t.TempDir()
	q, err := NewFilesystemQueue(dir, testClock())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := q.Stage(photoItem("a.jpg"), strings.NewReader("dup")); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Stage(photoItem("b.jpg"), strings.NewReader("dup")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("content files = %d, want 1", len(entries))
	}
}

func TestNewStagingFromConfig(t *testing.T) {
	clock := testClock()

	t.Run("memory", func(t *testing.T) {
		got, err := NewStagingFromConfig(config.StagingConfig{Type: "memory"}, clock)
		if err != nil || got == nil {
			t.Errorf("NewStagingFromConfig() = %v, %v", got, err)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		cfg := config.StagingConfig{Type: "filesystem", StagingDir: t.TempDir()}
		got, err := NewStagingFromConfig(cfg, clock)
		if err != nil || got == nil {
			t.Errorf("NewStagingFromConfig() = %v, %v", got, err)
		}
	})

	t.Run("filesystem without staging_dir", func(t *testing.T) {
		if _, err := NewStagingFromConfig(config.StagingConfig{Type: "filesystem"}, clock); err == nil {
			t.Error("expected error for missing staging_dir")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewStagingFromConfig(config.StagingConfig{Type: "carrier-pigeon"}, clock); err == nil {
			t.Error("expected error for unknown type")
		}
	})
}
