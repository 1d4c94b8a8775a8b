package geo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fretecalc/internal/metrics"
	"fretecalc/internal/model"
)

// minQueryLen guards against junk queries reaching the provider.
const minQueryLen = 5

// ProgressFunc receives a monotonically increasing completion percentage.
type ProgressFunc func(pct int)

// Resolver resolves order locations through a shared append-only cache
// backed by an external geocoder. Entries are never invalidated here; TTL
// expiry belongs to the durable store's cache layer.
type Resolver struct {
	geocoder Geocoder

	mu    sync.Mutex
	cache map[string]model.Coordinates
}

func NewResolver(g Geocoder) *Resolver {
	return &Resolver{geocoder: g, cache: map[string]model.Coordinates{}}
}

// Seed preloads cache entries, typically from the team's durable store.
func (r *Resolver) Seed(entries map[string]model.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range entries {
		r.cache[k] = v
	}
}

// Snapshot returns a copy of the cache for persistence.
func (r *Resolver) Snapshot() map[string]model.Coordinates {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.Coordinates, len(r.cache))
	for k, v := range r.cache {
		out[k] = v
	}
	return out
}

func (r *Resolver) cached(key string) (model.Coordinates, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cache[key]
	return c, ok
}

func (r *Resolver) put(key string, c model.Coordinates) {
	if key == "" {
		return
	}
	r.mu.Lock()
	r.cache[key] = c
	r.mu.Unlock()
}

// Resolve looks up a single free-text query, cache first.
func (r *Resolver) Resolve(ctx context.Context, query string) (model.Coordinates, bool, error) {
	query = strings.TrimSpace(query)
	if len(query) < minQueryLen {
		return model.Coordinates{}, false, nil
	}
	if c, ok := r.cached(query); ok {
		metrics.GeocodeCacheHits.Inc()
		return c, true, nil
	}
	c, found, err := r.geocoder.Lookup(ctx, query)
	if err != nil || !found {
		return model.Coordinates{}, false, err
	}
	r.put(query, c)
	return c, true, nil
}

// pairKey is the (client, city) cache key. Empty when either part is
// missing.
func pairKey(o *model.Order) string {
	if o.Client == "" || o.City == "" {
		return ""
	}
	return o.Client + " | " + o.City
}

// genericClient reports placeholder client names that must not seed the
// pair-key cache ("Diversos" is the ingestion default for blank cells).
func genericClient(name string) bool {
	if len(name) <= 2 {
		return true
	}
	l := strings.ToLower(name)
	return strings.Contains(l, "diversos") || strings.Contains(l, "various")
}

// ResolveBatch fills in coordinates for every unlocated order, walking a
// cascading key chain per order: the cached (client, city) pair, the exact
// street address, neighborhood+city+region, then city+region. Broad-tier
// hits are re-cached under the narrower keys so later exact lookups reuse
// them. Per-order misses are not errors; the order simply stays unlocated.
// Transport errors degrade the same way. The only hard aborts are context
// cancellation.
func (r *Resolver) ResolveBatch(ctx context.Context, orders []*model.Order, progress ProgressFunc) error {
	total := len(orders)
	for i, o := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil {
			progress(i * 100 / max(total, 1))
		}
		if o.Located() {
			continue
		}

		var c model.Coordinates
		found := false

		pk := pairKey(o)
		if pk != "" {
			c, found = r.cached(pk)
		}
		if !found && o.Address != "" {
			c, found, _ = r.Resolve(ctx, o.Address)
		}
		if !found && o.Neighborhood != "" && o.City != "" {
			c, found, _ = r.Resolve(ctx, fmt.Sprintf("%s, %s - %s, Brasil", o.Neighborhood, o.City, o.Region))
		}
		if !found && o.City != "" {
			c, found, _ = r.Resolve(ctx, fmt.Sprintf("%s - %s, Brasil", o.City, o.Region))
		}
		if !found {
			continue
		}

		o.Coordinates = &model.Coordinates{Lat: c.Lat, Lon: c.Lon}
		r.put(o.Address, c)
		if pk != "" && !genericClient(o.Client) {
			r.put(pk, c)
		}
	}
	if progress != nil {
		progress(100)
	}
	return nil
}
