package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// probeMP4Duration reads the movie header of an ISO base media file
// (mp4, m4v, mov) and returns its duration in seconds. Non-ISO
// containers and truncated files return an error; callers treat that as
// an unknown duration.
func probeMP4Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	moovOff, moovSize, err := findBox(f, 0, info.Size(), "moov")
	if err != nil {
		return 0, err
	}
	mvhdOff, mvhdSize, err := findBox(f, moovOff, moovSize, "mvhd")
	if err != nil {
		return 0, err
	}

	header := make([]byte, 32)
	if mvhdSize < int64(len(header)) {
		return 0, fmt.Errorf("mvhd box too small")
	}
	if _, err := f.ReadAt(header, mvhdOff); err != nil {
		return 0, err
	}

	var timescale uint32
	var duration uint64
	switch version := header[0]; version {
	case 0:
		// version/flags + creation(4) + modification(4)
		timescale = binary.BigEndian.Uint32(header[12:16])
		duration = uint64(binary.BigEndian.Uint32(header[16:20]))
	case 1:
		// version/flags + creation(8) + modification(8)
		timescale = binary.BigEndian.Uint32(header[20:24])
		duration = binary.BigEndian.Uint64(header[24:32])
	default:
		return 0, fmt.Errorf("unknown mvhd version %d", version)
	}

	if timescale == 0 {
		return 0, fmt.Errorf("mvhd has zero timescale")
	}
	return float64(duration) / float64(timescale), nil
}

// findBox scans the boxes in [start, start+limit) and returns the offset
// and size of the payload of the first box with the given type.
func findBox(r io.ReaderAt, start, limit int64, boxType string) (int64, int64, error) {
	var hdr [16]byte
	off := start
	end := start + limit
	for off+8 <= end {
		if _, err := r.ReadAt(hdr[:8], off); err != nil {
			return 0, 0, err
		}
		size := int64(binary.BigEndian.Uint32(hdr[0:4]))
		typ := string(hdr[4:8])
		headerLen := int64(8)

		if size == 1 {
			if _, err := r.ReadAt(hdr[8:16], off+8); err != nil {
				return 0, 0, err
			}
			size = int64(binary.BigEndian.Uint64(hdr[8:16]))
			headerLen = 16
		} else if size == 0 {
			// Box extends to end of file
			size = end - off
		}
		if size < headerLen {
			return 0, 0, fmt.Errorf("invalid box size %d", size)
		}

		if typ == boxType {
			return off + headerLen, size - headerLen, nil
		}
		off += size
	}
	return 0, 0, fmt.Errorf("box %q not found", boxType)
}
