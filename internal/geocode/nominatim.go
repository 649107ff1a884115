package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sereno-go/internal/field"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "IncidenciasApp/1.0 (Leaflet Compatible)"
	defaultTimeout   = 10 * time.Second
)

// Client resolves coordinates to a readable Spanish address through the
// Nominatim reverse endpoint. Resolution never fails: any problem degrades
// to the "Lat: x, Lng: y" coordinate string.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cache     field.GeoCache
	logger    field.Logger
}

var _ field.Geocoder = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout overrides the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a Client. cache may be nil to disable caching.
func NewClient(cache field.GeoCache, logger field.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = field.NewNopLogger()
	}
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: defaultTimeout},
		cache:     cache,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     *struct {
		HouseNumber  string `json:"house_number"`
		Road         string `json:"road"`
		Highway      string `json:"highway"`
		Suburb       string `json:"suburb"`
		CityDistrict string `json:"city_district"`
		City         string `json:"city"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

// Resolve returns a readable address for the coordinates. Cached addresses
// short-circuit the network call entirely.
func (c *Client) Resolve(ctx context.Context, lat, lng float64) string {
	if c.cache != nil {
		if addr, ok := c.cache.Get(lat, lng); ok {
			c.logger.Debug("address served from cache", "lat", lat, "lng", lng)
			return addr
		}
	}

	addr, err := c.reverse(ctx, lat, lng)
	if err != nil {
		c.logger.Warn("reverse geocode failed", "lat", lat, "lng", lng, "error", err)
		return field.CoordinateFallback(lat, lng)
	}

	if c.cache != nil {
		c.cache.Put(lat, lng, addr)
	}
	return addr
}

func (c *Client) reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", fmt.Sprintf("%v", lat))
	q.Set("lon", fmt.Sprintf("%v", lng))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	q.Set("accept-language", "es")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building reverse request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode status %d", resp.StatusCode)
	}

	var r reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("decoding reverse response: %w", err)
	}

	addr := assembleAddress(&r)
	if addr == "" {
		return "", fmt.Errorf("empty address in reverse response")
	}
	return addr, nil
}

// assembleAddress builds the readable address from the structured parts:
// house number, road, highway when distinct from the road, suburb, city
// district, city, state, country. Fewer than two parts falls back to the
// full display name.
func assembleAddress(r *reverseResponse) string {
	if r.Address == nil {
		return r.DisplayName
	}

	var parts []string
	push := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	push(r.Address.HouseNumber)
	push(r.Address.Road)
	if r.Address.Highway != r.Address.Road {
		push(r.Address.Highway)
	}
	push(r.Address.Suburb)
	push(r.Address.CityDistrict)
	push(r.Address.City)
	push(r.Address.State)
	push(r.Address.Country)

	if len(parts) < 2 {
		return r.DisplayName
	}
	return strings.Join(parts, ", ")
}
