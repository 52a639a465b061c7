package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultBaseURL         = "https://nominatim.openstreetmap.org"
	defaultUserAgent       = "EventRegistrationApp/1.0"
	defaultLimit           = 5
	maxLimit               = 10
	minQueryLength         = 3
	errorBodyLimit   int64 = 1024
)

// ErrQueryTooShort is returned for queries below the suggestion threshold.
var ErrQueryTooShort = errors.New("geocode query too short")

// Place is a geocoding suggestion.
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// Cache stores serialized search results.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GeocodeKey(query string, limit int) string
}

// Client queries a Nominatim-compatible search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	cache      Cache
	cacheTTL   time.Duration
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(userAgent); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

// WithCache enables result caching for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		if cache != nil && ttl > 0 {
			c.cache = cache
			c.cacheTTL = ttl
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search returns up to limit places matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return nil, ErrQueryTooShort
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if places, ok := c.fromCache(ctx, query, limit); ok {
		return places, nil
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, fmt.Errorf("geocode request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}

	places := make([]Place, 0, len(results))
	for _, result := range results {
		lat, errLat := strconv.ParseFloat(result.Lat, 64)
		lng, errLng := strconv.ParseFloat(result.Lon, 64)
		if errLat != nil || errLng != nil {
			continue
		}
		places = append(places, Place{DisplayName: result.DisplayName, Lat: lat, Lng: lng})
	}

	c.toCache(ctx, query, limit, places)
	return places, nil
}

func (c *Client) fromCache(ctx context.Context, query string, limit int) ([]Place, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, c.cache.GeocodeKey(query, limit))
	if err != nil || raw == "" {
		return nil, false
	}
	var places []Place
	if err := json.Unmarshal([]byte(raw), &places); err != nil {
		return nil, false
	}
	return places, true
}

func (c *Client) toCache(ctx context.Context, query string, limit int, places []Place) {
	if c.cache == nil {
		return
	}
	payload, err := json.Marshal(places)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, c.cache.GeocodeKey(query, limit), string(payload), c.cacheTTL)
}
