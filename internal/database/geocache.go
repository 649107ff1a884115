package database

import (
	"sereno-go/internal/field"
)

// GeoCache adapts the LocalStore geocode table to the GeoCache interface
// the geocoder consumes. Failures degrade to cache misses; a broken cache
// must never break address resolution.
type GeoCache struct {
	store  field.LocalStore
	clock  field.Clock
	logger field.Logger
}

var _ field.GeoCache = (*GeoCache)(nil)

// NewGeoCache creates a GeoCache over the given store.
func NewGeoCache(store field.LocalStore, clock field.Clock, logger field.Logger) *GeoCache {
	if logger == nil {
		logger = field.NewNopLogger()
	}
	return &GeoCache{store: store, clock: clock, logger: logger}
}

func (c *GeoCache) Get(lat, lng float64) (string, bool) {
	addr, ok, err := c.store.GetGeocode(field.GeoCacheKey(lat, lng), c.clock.Now())
	if err != nil {
		c.logger.Warn("geocode cache read failed", "error", err)
		return "", false
	}
	return addr, ok
}

func (c *GeoCache) Put(lat, lng float64, address string) {
	if err := c.store.PutGeocode(field.GeoCacheKey(lat, lng), address, c.clock.Now()); err != nil {
		c.logger.Warn("geocode cache write failed", "error", err)
	}
}
