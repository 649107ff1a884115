package location

import (
	"fmt"

	"sereno-go/internal/config"
	"sereno-go/internal/field"
)

// NewProviderFromConfig creates a LocationProvider based on the location config type.
func NewProviderFromConfig(cfg config.LocationConfig, clock field.Clock, logger field.Logger) (field.LocationProvider, error) {
	switch cfg.Type {
	case "exec", "":
		return NewExecProvider(cfg.Command, cfg.Args, clock, logger), nil
	case "static":
		return NewStaticProvider(cfg.Latitude, cfg.Longitude, cfg.AccuracyM, clock), nil
	case "none":
		return NoneProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown location provider type: %s", cfg.Type)
	}
}
