// Package session scopes all mutable planning state to one explicit
// object per run: the order list, the vehicle pool, the shared geo cache,
// the preference memory, and the current result.
package session

import (
	"sync"

	"github.com/google/uuid"

	"fretecalc/internal/geo"
	"fretecalc/internal/model"
	"fretecalc/internal/plan"
)

// Session is a single-user planning workspace. One logical writer at a
// time: callers hold Lock around any read-modify-write of the contained
// state, which is the whole concurrency story by design.
type Session struct {
	ID     string
	Team   string
	Origin model.Origin
	Params model.Params

	Orders   []*model.Order
	Pool     *plan.FleetPool
	Resolver *geo.Resolver
	Prefs    *plan.PreferenceMemory
	Result   *plan.Result

	mu sync.Mutex
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// OrderByID returns the ingested order with the given id, or nil.
func (s *Session) OrderByID(id string) *model.Order {
	for _, o := range s.Orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Manager owns the live sessions. Sessions are in-memory only; durable
// team data (fleet, origins, preferences, geo cache) lives in the store.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

// Create registers a new session for the team.
func (m *Manager) Create(team string, origin model.Origin, params model.Params, pool *plan.FleetPool, resolver *geo.Resolver, prefs *plan.PreferenceMemory) *Session {
	s := &Session{
		ID:       uuid.New().String(),
		Team:     team,
		Origin:   origin,
		Params:   params.WithDefaults(),
		Pool:     pool,
		Resolver: resolver,
		Prefs:    prefs,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session when it exists and belongs to the team.
func (m *Manager) Get(team, id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Team != team {
		return nil, false
	}
	return s, true
}

// Delete drops a session.
func (m *Manager) Delete(team, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.Team == team {
		delete(m.sessions, id)
	}
}
