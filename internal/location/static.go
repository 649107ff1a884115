package location

import (
	"context"

	"sereno-go/internal/field"
)

// StaticProvider always returns the configured fix. Useful on devices
// without a location command and in development.
type StaticProvider struct {
	lat      float64
	lng      float64
	accuracy float64
	clock    field.Clock
}

var _ field.LocationProvider = (*StaticProvider)(nil)

// NewStaticProvider creates a StaticProvider for the fixed coordinates.
func NewStaticProvider(lat, lng, accuracy float64, clock field.Clock) *StaticProvider {
	return &StaticProvider{lat: lat, lng: lng, accuracy: accuracy, clock: clock}
}

func (p *StaticProvider) Supported() bool { return true }

func (p *StaticProvider) Permission(ctx context.Context) (field.PermissionState, error) {
	return field.PermissionGranted, nil
}

func (p *StaticProvider) CurrentFix(ctx context.Context, opts field.FixOptions) (*field.Fix, error) {
	return &field.Fix{
		Latitude:  p.lat,
		Longitude: p.lng,
		AccuracyM: p.accuracy,
		At:        p.clock.Now(),
	}, nil
}

// NoneProvider reports location as unsupported.
type NoneProvider struct{}

var _ field.LocationProvider = (*NoneProvider)(nil)

func (NoneProvider) Supported() bool { return false }

func (NoneProvider) Permission(ctx context.Context) (field.PermissionState, error) {
	return field.PermissionUnknown, field.ErrUnsupported
}

func (NoneProvider) CurrentFix(ctx context.Context, opts field.FixOptions) (*field.Fix, error) {
	return nil, field.ErrUnsupported
}
