package staging

import (
	"fmt"

	"sereno-go/internal/config"
	"sereno-go/internal/field"
)

// NewStagingFromConfig creates a MediaStagingArea implementation based on
// the config type.
func NewStagingFromConfig(cfg config.StagingConfig, clock field.Clock) (field.MediaStagingArea, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryQueue(clock), nil
	case "filesystem", "":
		if cfg.StagingDir == "" {
			return nil, fmt.Errorf("filesystem staging queue requires staging_dir to be set")
		}
		return NewFilesystemQueue(cfg.StagingDir, clock)
	default:
		return nil, fmt.Errorf("unknown staging type: %s", cfg.Type)
	}
}
