// Package places forwards nearby-business lookups to an upstream places
// search API and maps its features to a compact shape.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Mr-Dark-debug/pulse/internal/config"
)

// MaxRadius bounds the search radius in meters.
const MaxRadius = 50000

var (
	// ErrMissingAPIKey means no upstream credential is configured.
	ErrMissingAPIKey = errors.New("places API key is not configured")
	// ErrInvalidQuery means the coordinates or radius are unusable.
	ErrInvalidQuery = errors.New("invalid places query")
)

// UpstreamError carries a non-2xx upstream response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("places upstream returned %d", e.Status)
}

// Place is one search result.
type Place struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Query is a circle search around a point. A zero Radius uses the client's
// default.
type Query struct {
	Lat    float64
	Lng    float64
	Radius int
}

// Validate checks coordinate and radius bounds.
func (q Query) Validate() error {
	switch {
	case !finite(q.Lat) || !finite(q.Lng):
		return fmt.Errorf("%w: coordinates must be finite numbers", ErrInvalidQuery)
	case q.Lat < -90 || q.Lat > 90:
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidQuery, q.Lat)
	case q.Lng < -180 || q.Lng > 180:
		return fmt.Errorf("%w: lng %v out of range", ErrInvalidQuery, q.Lng)
	case q.Radius < 0 || q.Radius > MaxRadius:
		return fmt.Errorf("%w: radius must be between 1 and %d", ErrInvalidQuery, MaxRadius)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Client calls the upstream places search.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	category      string
	defaultRadius int
	limit         int
}

// NewClient builds a Client from configuration. A nil httpClient gets one
// with the configured timeout.
func NewClient(cfg config.PlacesConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	radius := cfg.DefaultRadius
	if radius <= 0 {
		radius = 5000
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       cfg.BaseURL,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		category:      cfg.Category,
		defaultRadius: radius,
		limit:         limit,
	}
}

// DefaultRadius returns the radius used when a query omits one.
func (c *Client) DefaultRadius() int { return c.defaultRadius }

// URL builds the upstream request URL for q.
func (c *Client) URL(q Query) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if q.Radius == 0 {
		q.Radius = c.defaultRadius
	}
	if err := q.Validate(); err != nil {
		return "", err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing places base URL: %w", err)
	}
	lat := strconv.FormatFloat(q.Lat, 'f', -1, 64)
	lng := strconv.FormatFloat(q.Lng, 'f', -1, 64)

	v := u.Query()
	v.Set("categories", c.category)
	v.Set("filter", fmt.Sprintf("circle:%s,%s,%d", lng, lat, q.Radius))
	v.Set("bias", fmt.Sprintf("proximity:%s,%s", lng, lat))
	v.Set("limit", strconv.Itoa(c.limit))
	v.Set("apiKey", c.apiKey)
	u.RawQuery = v.Encode()
	return u.String(), nil
}

type featureCollection struct {
	Features []struct {
		Properties struct {
			PlaceID      string  `json:"place_id"`
			Name         string  `json:"name"`
			AddressLine1 string  `json:"address_line1"`
			Formatted    string  `json:"formatted"`
			Lat          float64 `json:"lat"`
			Lon          float64 `json:"lon"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Search runs q upstream. Non-2xx responses return *UpstreamError.
func (c *Client) Search(ctx context.Context, q Query) ([]Place, error) {
	target, err := c.URL(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building places request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling places upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading places response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("decoding places response: %w", err)
	}

	out := make([]Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		p := f.Properties
		place := Place{
			ID:      p.PlaceID,
			Name:    p.Name,
			Lat:     p.Lat,
			Lng:     p.Lon,
			Address: p.Formatted,
		}
		if place.Name == "" {
			place.Name = p.AddressLine1
		}
		if place.Lat == 0 && place.Lng == 0 && len(f.Geometry.Coordinates) == 2 {
			place.Lng, place.Lat = f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		}
		out = append(out, place)
	}
	return out, nil
}
