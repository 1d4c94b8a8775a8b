package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fretecalc/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir applies every .sql file in dir in lexical order. Files are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS etc).
func (p *Postgres) MigrateDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil { return err }
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil { return err }
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil { return err }
	}
	return nil
}

func (p *Postgres) GetFleet(ctx context.Context, teamID string) ([]model.VehicleClass, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT fleet FROM team_fleet WHERE team_id=$1`, teamID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) { return nil, ErrNotFound }
	if err != nil { return nil, err }
	var fleet []model.VehicleClass
	if err := json.Unmarshal(raw, &fleet); err != nil { return nil, err }
	return fleet, nil
}

func (p *Postgres) SaveFleet(ctx context.Context, teamID string, fleet []model.VehicleClass) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO team_fleet (team_id, fleet, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (team_id) DO UPDATE SET fleet=EXCLUDED.fleet, updated_at=now()`, teamID, toJSON(fleet))
	return err
}

func (p *Postgres) GetParams(ctx context.Context, teamID string) (model.Params, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT params FROM team_params WHERE team_id=$1`, teamID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) { return model.Params{}, ErrNotFound }
	if err != nil { return model.Params{}, err }
	var params model.Params
	if err := json.Unmarshal(raw, &params); err != nil { return model.Params{}, err }
	return params, nil
}

func (p *Postgres) SaveParams(ctx context.Context, teamID string, params model.Params) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO team_params (team_id, params, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (team_id) DO UPDATE SET params=EXCLUDED.params, updated_at=now()`, teamID, toJSON(params))
	return err
}

func (p *Postgres) ListOrigins(ctx context.Context, teamID string) ([]model.SavedOrigin, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, name, lat, lon FROM saved_origins WHERE team_id=$1 ORDER BY name`, teamID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.SavedOrigin{}
	for rows.Next() {
		var o model.SavedOrigin
		if err := rows.Scan(&o.ID, &o.Name, &o.Coordinates.Lat, &o.Coordinates.Lon); err != nil { return nil, err }
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) AddOrigin(ctx context.Context, teamID, name string, c model.Coordinates) (model.SavedOrigin, error) {
	o := model.SavedOrigin{ID: uuid.New().String(), Name: name, Coordinates: c}
	_, err := p.db.ExecContext(ctx, `INSERT INTO saved_origins (id, team_id, name, lat, lon) VALUES ($1,$2,$3,$4,$5)`,
		o.ID, teamID, name, c.Lat, c.Lon)
	if err != nil { return model.SavedOrigin{}, err }
	return o, nil
}

func (p *Postgres) DeleteOrigin(ctx context.Context, teamID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM saved_origins WHERE team_id=$1 AND id=$2`, teamID, id)
	if err != nil { return err }
	if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
	return nil
}

func (p *Postgres) AppendPreference(ctx context.Context, teamID, key string, rec model.PreferenceRecord) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO preference_log (id, team_id, pref_key, vehicle_type, reason, recorded_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.New(), teamID, key, rec.VehicleType, rec.Reason, rec.At)
	return err
}

func (p *Postgres) ListPreferences(ctx context.Context, teamID string) (map[string][]model.PreferenceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT pref_key, vehicle_type, reason, recorded_at FROM preference_log WHERE team_id=$1 ORDER BY recorded_at`, teamID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := map[string][]model.PreferenceRecord{}
	for rows.Next() {
		var key string
		var rec model.PreferenceRecord
		if err := rows.Scan(&key, &rec.VehicleType, &rec.Reason, &rec.At); err != nil { return nil, err }
		out[key] = append(out[key], rec)
	}
	return out, rows.Err()
}

func (p *Postgres) MergeGeoCache(ctx context.Context, teamID string, entries map[string]model.Coordinates) error {
	if len(entries) == 0 { return nil }
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return err }
	defer func() { _ = tx.Rollback() }()
	for q, c := range entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO geo_cache (team_id, query, lat, lon, updated_at) VALUES ($1,$2,$3,$4,now())
            ON CONFLICT (team_id, query) DO UPDATE SET lat=EXCLUDED.lat, lon=EXCLUDED.lon, updated_at=now()`, teamID, q, c.Lat, c.Lon); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) GetGeoCache(ctx context.Context, teamID string) (map[string]model.Coordinates, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT query, lat, lon FROM geo_cache WHERE team_id=$1`, teamID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := map[string]model.Coordinates{}
	for rows.Next() {
		var q string
		var c model.Coordinates
		if err := rows.Scan(&q, &c.Lat, &c.Lon); err != nil { return nil, err }
		out[q] = c
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, teamID, url string, events []string, secret string) (Subscription, error) {
	s := Subscription{ID: uuid.New().String(), TeamID: teamID, URL: url, Events: events, Secret: secret}
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_subscriptions (id, team_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
		s.ID, teamID, url, toJSON(events), secret)
	if err != nil { return Subscription{}, err }
	return s, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, teamID string) ([]Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM webhook_subscriptions WHERE team_id=$1`, teamID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []Subscription{}
	for rows.Next() {
		var s Subscription
		var rawEvents []byte
		if err := rows.Scan(&s.ID, &s.URL, &rawEvents, &s.Secret); err != nil { return nil, err }
		_ = json.Unmarshal(rawEvents, &s.Events)
		s.TeamID = teamID
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, teamID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE team_id=$1 AND id=$2`, teamID, id)
	if err != nil { return err }
	if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
	return nil
}

func (p *Postgres) SubscriptionsForEvent(ctx context.Context, teamID, eventType string) ([]Subscription, error) {
	subs, err := p.ListSubscriptions(ctx, teamID)
	if err != nil { return nil, err }
	out := []Subscription{}
	for _, s := range subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, teamID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, team_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`, id, teamID, subscriptionID, eventType, url, secret, payload)
	if err != nil { return "", err }
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 { limit = 20 }
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, team_id, subscription_id::text, event_type, url, secret, payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TeamID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nextAttemptAt, lastError, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, lastError, responseCode, latencyMs)
	return err
}

func toJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
