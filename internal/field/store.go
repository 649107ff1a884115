package field

import "time"

// LocalStore is the device-persisted metadata store: the geocoding cache,
// the submission log, and the incident-list response cache.
type LocalStore interface {
	// Geocode cache. Entries expire lazily on read after
	// GeocodeCacheTTL; there is no proactive eviction, so distinct
	// buckets accumulate until overwritten.
	GetGeocode(key string, now time.Time) (address string, ok bool, err error)
	PutGeocode(key, address string, now time.Time) error

	// Submission log.
	CreateSubmission(sub *Submission) error
	ListSubmissions(limit int) ([]*Submission, error)

	// List-response cache, keyed by query. Entries expire after ttl;
	// InvalidateListCache drops every key with the given prefix.
	GetListCache(key string, now time.Time, ttl time.Duration) (payload []byte, ok bool, err error)
	PutListCache(key string, payload []byte, now time.Time) error
	InvalidateListCache(prefix string) error

	Close() error
}
