package jurisdiction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sereno-go/internal/field"
)

func jsonEncode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// square returns a Polygon entry covering [lat0,lat1]x[lng0,lng1].
func square(id int64, name string, lat0, lat1, lng0, lng1 float64) map[string]any {
	ring := [][]float64{
		{lng0, lat0}, {lng1, lat0}, {lng1, lat1}, {lng0, lat1}, {lng0, lat0},
	}
	return map[string]any{
		"id": id, "name": name, "description": name, "color": "#00ff00",
		"geometry": map[string]any{
			"type":        "Polygon",
			"coordinates": [][][]float64{ring},
		},
	}
}

func writeDataset(t *testing.T, entries ...map[string]any) string {
	t.Helper()
	return writeDatasetStatus(t, true, entries...)
}

func writeDatasetStatus(t *testing.T, status any, entries ...map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "juridiccion.geojson")
	payload := map[string]any{"status": status, "data": entries}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jsonEncode(f, payload); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIndex_FindContaining(t *testing.T) {
	path := writeDataset(t,
		square(1, "Norte", 0, 10, 0, 10),
		square(2, "Sur", -10, 0, 0, 10),
	)
	x := NewIndex(path, field.NewNopLogger())
	if err := x.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}

	tests := []struct {
		name     string
		lat, lng float64
		wantID   int64
		wantOK   bool
	}{
		{"inside first zone", 5, 5, 1, true},
		{"inside second zone", -5, 5, 2, true},
		{"outside all zones", 5, 50, 0, false},
		{"outside bbox entirely", 80, 170, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, ok := x.FindContaining(tt.lat, tt.lng)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && j.ID != tt.wantID {
				t.Errorf("ID = %d, want %d", j.ID, tt.wantID)
			}
		})
	}
}

func TestIndex_OverlapFirstMatchWins(t *testing.T) {
	// Both zones cover (5,5); dataset order decides.
	path := writeDataset(t,
		square(7, "Primera", 0, 10, 0, 10),
		square(8, "Segunda", 0, 10, 0, 10),
	)
	x := NewIndex(path, field.NewNopLogger())
	if err := x.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}

	j, ok := x.FindContaining(5, 5)
	if !ok || j.ID != 7 {
		t.Errorf("FindContaining() = %+v, %v; want first zone (ID 7)", j, ok)
	}
}

func TestIndex_PolygonWithHole(t *testing.T) {
	outer := [][]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := [][]float64{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}}
	entry := map[string]any{
		"id": 1, "name": "Anillo",
		"geometry": map[string]any{
			"type":        "Polygon",
			"coordinates": [][][]float64{outer, hole},
		},
	}
	x := NewIndex(writeDataset(t, entry), field.NewNopLogger())
	if err := x.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}

	if _, ok := x.FindContaining(2, 2); !ok {
		t.Error("point between outer ring and hole should match")
	}
	if _, ok := x.FindContaining(5, 5); ok {
		t.Error("point inside hole should not match")
	}
}

func TestIndex_MultiPolygon(t *testing.T) {
	polyA := [][][]float64{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	polyB := [][][]float64{{{10, 10}, {12, 10}, {12, 12}, {10, 12}, {10, 10}}}
	entry := map[string]any{
		"id": 3, "name": "Dos Islas",
		"geometry": map[string]any{
			"type":        "MultiPolygon",
			"coordinates": [][][][]float64{polyA, polyB},
		},
	}
	x := NewIndex(writeDataset(t, entry), field.NewNopLogger())
	if err := x.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}

	for _, pt := range [][2]float64{{1, 1}, {11, 11}} {
		if _, ok := x.FindContaining(pt[0], pt[1]); !ok {
			t.Errorf("point (%v, %v) should match one of the islands", pt[0], pt[1])
		}
	}
	if _, ok := x.FindContaining(5, 5); ok {
		t.Error("point between the islands should not match")
	}
}

func TestIndex_MalformedEntriesAreSkipped(t *testing.T) {
	broken := map[string]any{"id": 9, "name": "Rota"} // no geometry
	badRing := map[string]any{
		"id": 10, "name": "Corta",
		"geometry": map[string]any{
			"type":        "Polygon",
			"coordinates": [][][]float64{{{0, 0}, {1, 1}}}, // too few positions
		},
	}
	good := square(11, "Sana", 0, 10, 0, 10)

	x := NewIndex(writeDataset(t, broken, badRing, good), field.NewNopLogger())
	if err := x.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}

	if zones := x.Zones(); len(zones) != 1 || zones[0].ID != 11 {
		t.Errorf("Zones() = %+v, want only the well-formed zone", zones)
	}
}

func TestIndex_InvalidEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		status any
	}{
		{"status false", false},
		{"status zero", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewIndex(writeDatasetStatus(t, tt.status, square(1, "Z", 0, 1, 0, 1)), field.NewNopLogger())
			if err := x.EnsureLoaded(context.Background()); err == nil {
				t.Error("EnsureLoaded() should reject a falsy status envelope")
			}
		})
	}
}

func TestIndex_SingleFlightLoad(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		jsonEncode(w, map[string]any{
			"status": true,
			"data":   []map[string]any{square(1, "Z", 0, 10, 0, 10)},
		})
	}))
	defer srv.Close()

	x := NewIndex(srv.URL, field.NewNopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := x.EnsureLoaded(context.Background()); err != nil {
				t.Errorf("EnsureLoaded() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("dataset fetched %d times, want 1", n)
	}

	// Loaded index never refetches.
	if err := x.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded() after load error = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("dataset fetched %d times after reload, want 1", n)
	}
}

func TestIndex_FailedLoadCanRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		jsonEncode(w, map[string]any{
			"status": true,
			"data":   []map[string]any{square(1, "Z", 0, 10, 0, 10)},
		})
	}))
	defer srv.Close()

	x := NewIndex(srv.URL, field.NewNopLogger())

	if err := x.EnsureLoaded(context.Background()); err == nil {
		t.Fatal("first EnsureLoaded() should fail")
	}
	if err := x.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("retry EnsureLoaded() error = %v", err)
	}
	if _, ok := x.FindContaining(5, 5); !ok {
		t.Error("index should answer queries after successful retry")
	}
}
