package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"fretecalc/internal/auth"
	"fretecalc/internal/config"
	"fretecalc/internal/geo"
	"fretecalc/internal/metrics"
	"fretecalc/internal/model"
	"fretecalc/internal/plan"
	"fretecalc/internal/routing"
	"fretecalc/internal/session"
	"fretecalc/internal/store"
	"fretecalc/internal/webhooks"
)

type Server struct {
	Store     store.Store
	Pub       *webhooks.Publisher
	Auth      *auth.Verifier
	Broker    EventBroker
	Sessions  *session.Manager
	Geocoder  geo.Geocoder
	Estimator *plan.Estimator
	Builder   plan.Builder
	Config    config.Config
}

// NewServer wires the service from config and environment. If
// DATABASE_URL is unset, uses the in-memory store; if REDIS_URL is set,
// adds the Redis broker and the read-through store cache.
func NewServer(cfg config.Config) (*Server, error) {
	metrics.RegisterDefault()
	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.MigrateDir(context.Background(), "db/migrations")
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if url := os.Getenv("REDIS_URL"); url != "" {
		if rb, err := NewRedisBroker(url); err == nil {
			broker = rb
		}
		if rc, err := store.NewRedisCache(s, url); err == nil {
			s = rc
		}
	}
	gc := geo.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.CountryCodes, cfg.Geocoder.MinInterval())
	return &Server{
		Store:     s,
		Pub:       webhooks.NewPublisher(s),
		Auth:      auth.NewVerifierFromEnv(),
		Broker:    broker,
		Sessions:  session.NewManager(),
		Geocoder:  gc,
		Estimator: &plan.Estimator{Router: routing.NewClient(cfg.Router.BaseURL)},
		Builder:   plan.GreedyBuilder{},
		Config:    cfg,
	}, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}

// fleetFor returns the team's saved fleet or the configured default.
func (s *Server) fleetFor(ctx context.Context, team string) []model.VehicleClass {
	fleet, err := s.Store.GetFleet(ctx, team)
	if err != nil || len(fleet) == 0 {
		return s.Config.Fleet
	}
	return fleet
}

// paramsFor returns the team's saved tunables or the configured default.
func (s *Server) paramsFor(ctx context.Context, team string) model.Params {
	p, err := s.Store.GetParams(ctx, team)
	if err != nil {
		return s.Config.Params
	}
	return p.WithDefaults()
}

type Principal struct {
	Team string
	Role string // admin, planner, viewer
}

// getPrincipal extracts team and role from JWT or headers.
// - If Authorization: Bearer is present, uses configured verifier (dev/hmac/jwks).
// - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Team: pr.Team, Role: pr.Role}
		}
	}
	team := r.Header.Get("X-Team-Id")
	role := r.Header.Get("X-Role")
	if team == "" {
		team = "t_demo"
	}
	if role == "" {
		role = "admin"
	}
	return Principal{Team: team, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanPlan reports whether the principal may create and mutate plans.
func (p Principal) CanPlan() bool { return p.Role == "admin" || p.Role == "planner" }
