package jurisdiction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"sereno-go/internal/field"
)

// point is a GeoJSON position. The dataset stores (lng, lat) order.
type point struct {
	lng float64
	lat float64
}

// zone is one jurisdiction with its parsed boundary. polygons holds one or
// more polygons, each a list of rings where ring 0 is the outer boundary
// and the rest are holes.
type zone struct {
	info     field.Jurisdiction
	polygons [][][]point
	minLat   float64
	maxLat   float64
	minLng   float64
	maxLng   float64
}

// Index loads the jurisdiction dataset lazily and answers point-in-polygon
// queries. The dataset loads at most once; concurrent callers share one
// in-flight attempt, and a failed attempt can be retried.
type Index struct {
	source string
	http   *http.Client
	logger field.Logger

	mu       sync.RWMutex
	loaded   bool
	lastErr  error
	inflight chan struct{}
	zones    []*zone
}

var _ field.JurisdictionLocator = (*Index)(nil)

// NewIndex creates an Index reading from source: an http(s) URL or a local
// file path.
func NewIndex(source string, logger field.Logger) *Index {
	if logger == nil {
		logger = field.NewNopLogger()
	}
	return &Index{
		source: source,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// EnsureLoaded loads the dataset if it has not been loaded yet.
func (x *Index) EnsureLoaded(ctx context.Context) error {
	for {
		x.mu.Lock()
		if x.loaded {
			x.mu.Unlock()
			return nil
		}
		if x.inflight == nil {
			break
		}
		ch := x.inflight
		x.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}

		x.mu.Lock()
		loaded, err := x.loaded, x.lastErr
		x.mu.Unlock()
		if loaded {
			return nil
		}
		return err
	}

	ch := make(chan struct{})
	x.inflight = ch
	x.mu.Unlock()

	zones, err := x.load(ctx)

	x.mu.Lock()
	if err == nil {
		x.zones = zones
		x.loaded = true
	}
	x.lastErr = err
	x.inflight = nil
	close(ch)
	x.mu.Unlock()
	return err
}

// FindContaining returns the first jurisdiction, in dataset order, whose
// boundary contains the point.
func (x *Index) FindContaining(lat, lng float64) (*field.Jurisdiction, bool) {
	x.mu.RLock()
	zones := x.zones
	x.mu.RUnlock()

	for _, z := range zones {
		if lat < z.minLat || lat > z.maxLat || lng < z.minLng || lng > z.maxLng {
			continue
		}
		for _, rings := range z.polygons {
			if pointInRings(lat, lng, rings) {
				info := z.info
				return &info, true
			}
		}
	}
	return nil, false
}

// Zones returns the loaded jurisdictions in dataset order.
func (x *Index) Zones() []field.Jurisdiction {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]field.Jurisdiction, 0, len(x.zones))
	for _, z := range x.zones {
		out = append(out, z.info)
	}
	return out
}

type datasetEntry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Geometry    *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

type dataset struct {
	Status json.RawMessage `json:"status"`
	Data   []datasetEntry  `json:"data"`
}

func (x *Index) load(ctx context.Context) ([]*zone, error) {
	raw, err := x.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var ds dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decoding jurisdiction dataset: %w", err)
	}
	if !truthy(ds.Status) || ds.Data == nil {
		return nil, fmt.Errorf("invalid jurisdiction dataset format")
	}

	var zones []*zone
	for _, entry := range ds.Data {
		z, err := buildZone(entry)
		if err != nil {
			// Malformed entries are skipped; the rest of the dataset
			// stays usable.
			x.logger.Warn("skipping malformed jurisdiction", "name", entry.Name, "error", err)
			continue
		}
		zones = append(zones, z)
	}

	x.logger.Debug("jurisdiction dataset loaded", "zones", len(zones), "source", x.source)
	return zones, nil
}

func (x *Index) fetch(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(x.source, "http://") || strings.HasPrefix(x.source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.source, nil)
		if err != nil {
			return nil, fmt.Errorf("building dataset request: %w", err)
		}
		resp, err := x.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching jurisdiction dataset: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching jurisdiction dataset: status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	raw, err := os.ReadFile(x.source)
	if err != nil {
		return nil, fmt.Errorf("reading jurisdiction dataset: %w", err)
	}
	return raw, nil
}

func buildZone(entry datasetEntry) (*zone, error) {
	if entry.Geometry == nil || len(entry.Geometry.Coordinates) == 0 {
		return nil, fmt.Errorf("missing geometry")
	}

	var polygons [][][]point
	switch entry.Geometry.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(entry.Geometry.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("parsing polygon: %w", err)
		}
		rings, err := buildRings(coords)
		if err != nil {
			return nil, err
		}
		polygons = append(polygons, rings)
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(entry.Geometry.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("parsing multipolygon: %w", err)
		}
		for _, poly := range coords {
			rings, err := buildRings(poly)
			if err != nil {
				return nil, err
			}
			polygons = append(polygons, rings)
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", entry.Geometry.Type)
	}
	if len(polygons) == 0 {
		return nil, fmt.Errorf("empty geometry")
	}

	z := &zone{
		info: field.Jurisdiction{
			ID:          entry.ID,
			Name:        entry.Name,
			Description: entry.Description,
			Color:       entry.Color,
		},
		polygons: polygons,
		minLat:   91, maxLat: -91,
		minLng: 181, maxLng: -181,
	}
	for _, rings := range polygons {
		for _, p := range rings[0] {
			if p.lat < z.minLat {
				z.minLat = p.lat
			}
			if p.lat > z.maxLat {
				z.maxLat = p.lat
			}
			if p.lng < z.minLng {
				z.minLng = p.lng
			}
			if p.lng > z.maxLng {
				z.maxLng = p.lng
			}
		}
	}
	return z, nil
}

func buildRings(coords [][][]float64) ([][]point, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("polygon without rings")
	}
	rings := make([][]point, 0, len(coords))
	for _, raw := range coords {
		if len(raw) < 4 {
			return nil, fmt.Errorf("ring with %d positions", len(raw))
		}
		ring := make([]point, 0, len(raw))
		for _, pos := range raw {
			if len(pos) < 2 {
				return nil, fmt.Errorf("position with %d values", len(pos))
			}
			ring = append(ring, point{lng: pos[0], lat: pos[1]})
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

// pointInRings runs even-odd ray casting over every ring of one polygon.
// Crossing a hole boundary toggles the point back outside, so holes need no
// special handling.
func pointInRings(lat, lng float64, rings [][]point) bool {
	inside := false
	for _, ring := range rings {
		for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
			pi, pj := ring[i], ring[j]
			if (pi.lat > lat) != (pj.lat > lat) &&
				lng < (pj.lng-pi.lng)*(lat-pi.lat)/(pj.lat-pi.lat)+pi.lng {
				inside = !inside
			}
		}
	}
	return inside
}

func truthy(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch string(trimmed) {
	case "false", "null", "0", `""`:
		return false
	}
	return true
}
