package field

import (
	"fmt"
	"time"
)

// GeocodeCacheTTL is how long a cached reverse-geocode result is served
// before it is treated as absent.
const GeocodeCacheTTL = 24 * time.Hour

// GeoCacheKey buckets coordinates to 4 decimal places (~11m), so nearby
// lookups share one cache entry.
func GeoCacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

// CoordinateFallback is the address used when reverse geocoding fails.
func CoordinateFallback(lat, lng float64) string {
	return fmt.Sprintf("Lat: %.6f, Lng: %.6f", lat, lng)
}

// GeoCache maps rounded coordinates to previously resolved addresses.
// Writes are best-effort: implementations swallow persistence failures and
// never block the caller on them.
type GeoCache interface {
	// Get returns the cached address for the coordinate bucket, or
	// ok=false when missing or older than GeocodeCacheTTL.
	Get(lat, lng float64) (address string, ok bool)

	// Put overwrites the bucket with the current timestamp.
	Put(lat, lng float64, address string)
}
