package field

import "io"

// MediaFile is the probed metadata of an on-disk evidence file.
type MediaFile struct {
	Name        string
	AbsPath     string
	SizeBytes   int64
	MimeType    string
	IsVideo     bool
	DurationSec float64 // zero when the duration could not be probed
}

// FilesystemManager abstracts media file access so staging is testable
// without touching the real filesystem.
type FilesystemManager interface {
	// ProbeMedia resolves a raw path and returns its metadata: size,
	// MIME type (by extension), and best-effort video duration.
	ProbeMedia(rawPath string) (*MediaFile, error)

	// Open opens a previously probed file for reading.
	Open(absPath string) (io.ReadCloser, error)
}
