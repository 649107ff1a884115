package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sereno-go/internal/field"
)

// OSFilesystemManager is the real filesystem implementation of
// FilesystemManager. It performs actual filesystem operations using the
// os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// ProbeMedia resolves a raw path and returns the metadata used for media
// validation. The MIME type is derived from the filename extension; video
// duration is probed best-effort and left zero when unknown.
func (m *OSFilesystemManager) ProbeMedia(rawPath string) (*field.MediaFile, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", absPath)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	name := filepath.Base(absPath)
	mimeType, isVideo, ok := field.MediaTypeFor(name, "")
	if !ok {
		// Leave the MIME type empty; validation produces the
		// user-facing rejection message.
		mimeType = ""
	}

	mf := &field.MediaFile{
		Name:      name,
		AbsPath:   absPath,
		SizeBytes: info.Size(),
		MimeType:  mimeType,
		IsVideo:   isVideo,
	}

	if isVideo {
		if dur, err := probeMP4Duration(absPath); err == nil {
			mf.DurationSec = dur
		}
	}

	return mf, nil
}

// Open opens a previously probed file for reading.
func (m *OSFilesystemManager) Open(absPath string) (io.ReadCloser, error) {
	return os.Open(absPath)
}

// Compile-time check that OSFilesystemManager implements the FilesystemManager interface
var _ field.FilesystemManager = (*OSFilesystemManager)(nil)
