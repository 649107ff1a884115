package field

import "context"

// JurisdictionLocator answers which jurisdiction contains a point. The
// polygon dataset loads lazily exactly once per successful attempt.
type JurisdictionLocator interface {
	// EnsureLoaded loads the dataset if needed. Concurrent calls share a
	// single in-flight load; a failed attempt does not poison retries.
	EnsureLoaded(ctx context.Context) error

	// FindContaining returns the first jurisdiction, in dataset order,
	// whose polygon contains the point. ok=false means no jurisdiction
	// covers the point — which is not an error.
	FindContaining(lat, lng float64) (*Jurisdiction, bool)
}
