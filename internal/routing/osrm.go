// Package routing wraps the external OSRM trip-optimization API.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fretecalc/internal/metrics"
	"fretecalc/internal/model"
)

// Router computes an ordered-visit route through the given waypoints.
// The first waypoint is the depot.
type Router interface {
	Trip(ctx context.Context, waypoints []model.Coordinates) (TripResult, error)
}

// TripResult is the raw answer from the routing collaborator.
type TripResult struct {
	DistanceKm float64
	Geometry   json.RawMessage
}

// ErrNoRoute is returned when the service answered but found no trip.
var ErrNoRoute = errors.New("no route found")

// Client talks to an OSRM /trip endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 15 * time.Second}}
}

type tripResponse struct {
	Trips []struct {
		Distance float64         `json:"distance"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"trips"`
}

// Trip requests a fixed-order trip starting at the first waypoint. OSRM
// expects lon,lat pairs.
func (c *Client) Trip(ctx context.Context, waypoints []model.Coordinates) (TripResult, error) {
	if len(waypoints) < 2 {
		return TripResult{}, ErrNoRoute
	}
	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = fmt.Sprintf("%f,%f", p.Lon, p.Lat)
	}
	reqURL := fmt.Sprintf("%s/trip/v1/driving/%s?source=first&roundtrip=false&overview=full&geometries=geojson",
		c.baseURL, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return TripResult{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RoutingRequests.WithLabelValues("error").Inc()
		return TripResult{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RoutingRequests.WithLabelValues("error").Inc()
		return TripResult{}, fmt.Errorf("router status %d", resp.StatusCode)
	}
	var decoded tripResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		metrics.RoutingRequests.WithLabelValues("error").Inc()
		return TripResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Trips) == 0 {
		metrics.RoutingRequests.WithLabelValues("empty").Inc()
		return TripResult{}, ErrNoRoute
	}
	metrics.RoutingRequests.WithLabelValues("ok").Inc()
	return TripResult{
		DistanceKm: decoded.Trips[0].Distance / 1000,
		Geometry:   decoded.Trips[0].Geometry,
	}, nil
}

var _ Router = (*Client)(nil)
