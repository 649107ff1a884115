package testutil

import (
	"sereno-go/internal/field"
	"sereno-go/internal/staging"
)

// NewTestStaging creates a new in-memory media staging queue for testing.
func NewTestStaging() field.MediaStagingArea {
	return staging.NewMemoryQueue(FixedClock())
}
