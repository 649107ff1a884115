package testutil

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"sereno-go/internal/field"
)

// MockMedia represents a media file in the mock filesystem.
type MockMedia struct {
	Content     []byte
	MimeType    string
	IsVideo     bool
	DurationSec float64
}

// MockFilesystemManager is an in-memory filesystem for testing.
type MockFilesystemManager struct {
	files map[string]*MockMedia
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockMedia),
	}
}

// AddImage adds an image file to the mock filesystem.
func (m *MockFilesystemManager) AddImage(path string, content []byte) {
	abs, _ := filepath.Abs(path)
	m.files[abs] = &MockMedia{Content: content, MimeType: "image/jpeg"}
}

// AddVideo adds a video file with the given duration to the mock filesystem.
func (m *MockFilesystemManager) AddVideo(path string, content []byte, durationSec float64) {
	abs, _ := filepath.Abs(path)
	m.files[abs] = &MockMedia{
		Content:     content,
		MimeType:    "video/mp4",
		IsVideo:     true,
		DurationSec: durationSec,
	}
}

func (m *MockFilesystemManager) ProbeMedia(rawPath string) (*field.MediaFile, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	f, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}

	return &field.MediaFile{
		Name:        filepath.Base(absPath),
		AbsPath:     absPath,
		SizeBytes:   int64(len(f.Content)),
		MimeType:    f.MimeType,
		IsVideo:     f.IsVideo,
		DurationSec: f.DurationSec,
	}, nil
}

func (m *MockFilesystemManager) Open(absPath string) (io.ReadCloser, error) {
	f, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

// Compile-time check
var _ field.FilesystemManager = (*MockFilesystemManager)(nil)
