package store

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fretecalc/internal/model"
)

// RedisCache wraps a Store with a read-through cache for the team-scoped
// read paths that the planner hits on every session start (fleet, params,
// geo cache). Writes go straight to the inner store and drop the cached key.
type RedisCache struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(inner Store, url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil { return nil, err }
	return &RedisCache{Store: inner, rdb: redis.NewClient(opt), ttl: time.Hour}, nil
}

func (c *RedisCache) GetFleet(ctx context.Context, teamID string) ([]model.VehicleClass, error) {
	key := "fleet:" + teamID
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var fleet []model.VehicleClass
		if json.Unmarshal(raw, &fleet) == nil { return fleet, nil }
	}
	fleet, err := c.Store.GetFleet(ctx, teamID)
	if err != nil { return nil, err }
	c.set(ctx, key, fleet)
	return fleet, nil
}

func (c *RedisCache) SaveFleet(ctx context.Context, teamID string, fleet []model.VehicleClass) error {
	if err := c.Store.SaveFleet(ctx, teamID, fleet); err != nil { return err }
	c.rdb.Del(ctx, "fleet:"+teamID)
	return nil
}

func (c *RedisCache) GetParams(ctx context.Context, teamID string) (model.Params, error) {
	key := "params:" + teamID
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var params model.Params
		if json.Unmarshal(raw, &params) == nil { return params, nil }
	}
	params, err := c.Store.GetParams(ctx, teamID)
	if err != nil { return model.Params{}, err }
	c.set(ctx, key, params)
	return params, nil
}

func (c *RedisCache) SaveParams(ctx context.Context, teamID string, params model.Params) error {
	if err := c.Store.SaveParams(ctx, teamID, params); err != nil { return err }
	c.rdb.Del(ctx, "params:"+teamID)
	return nil
}

func (c *RedisCache) GetGeoCache(ctx context.Context, teamID string) (map[string]model.Coordinates, error) {
	key := "geo:" + teamID
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		entries := map[string]model.Coordinates{}
		if json.Unmarshal(raw, &entries) == nil { return entries, nil }
	}
	entries, err := c.Store.GetGeoCache(ctx, teamID)
	if err != nil { return nil, err }
	c.set(ctx, key, entries)
	return entries, nil
}

func (c *RedisCache) MergeGeoCache(ctx context.Context, teamID string, entries map[string]model.Coordinates) error {
	if err := c.Store.MergeGeoCache(ctx, teamID, entries); err != nil { return err }
	c.rdb.Del(ctx, "geo:"+teamID)
	return nil
}

func (c *RedisCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil { return }
	_ = c.rdb.Set(ctx, key, data, c.ttl).Err()
}
