package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"fretecalc/internal/metrics"
	"fretecalc/internal/model"
)

// Geocoder resolves a free-text query to coordinates. found=false with a
// nil error means the provider had no result; errors are transport-level.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (c model.Coordinates, found bool, err error)
}

// Client is a Nominatim geocoding client. The public API allows at most
// one request per second per client, so every call waits on the limiter
// before touching the network.
type Client struct {
	baseURL      string
	userAgent    string
	countryCodes string
	limiter      *rate.Limiter
	http         *http.Client
}

func NewClient(baseURL, userAgent, countryCodes string, minInterval time.Duration) *Client {
	if minInterval <= 0 {
		minInterval = 1100 * time.Millisecond
	}
	return &Client{
		baseURL:      baseURL,
		userAgent:    userAgent,
		countryCodes: countryCodes,
		limiter:      rate.NewLimiter(rate.Every(minInterval), 1),
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup queries /search with the single best match.
func (c *Client) Lookup(ctx context.Context, query string) (model.Coordinates, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Coordinates{}, false, err
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "1")
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.Coordinates{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return model.Coordinates{}, false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return model.Coordinates{}, false, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return model.Coordinates{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		metrics.GeocodeRequests.WithLabelValues("miss").Inc()
		return model.Coordinates{}, false, nil
	}

	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return model.Coordinates{}, false, fmt.Errorf("invalid coordinates in response")
	}
	metrics.GeocodeRequests.WithLabelValues("hit").Inc()
	return model.Coordinates{Lat: lat, Lon: lon}, true, nil
}

var _ Geocoder = (*Client)(nil)
