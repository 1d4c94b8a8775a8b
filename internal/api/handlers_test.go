package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fretecalc/internal/config"
	"fretecalc/internal/model"
	"fretecalc/internal/plan"
	"fretecalc/internal/routing"
	"fretecalc/internal/session"
	"fretecalc/internal/store"
	"fretecalc/internal/webhooks"
)

type stubGeocoder struct{ m map[string]model.Coordinates }

func (g stubGeocoder) Lookup(ctx context.Context, query string) (model.Coordinates, bool, error) {
	c, ok := g.m[query]
	return c, ok, nil
}

type stubRouter struct{ km float64 }

func (r stubRouter) Trip(ctx context.Context, waypoints []model.Coordinates) (routing.TripResult, error) {
	return routing.TripResult{DistanceKm: r.km}, nil
}

func newTestServer(geocoded map[string]model.Coordinates) *Server {
	st := store.NewMemory()
	return &Server{
		Store:     st,
		Pub:       webhooks.NewPublisher(st),
		Broker:    NewBroker(),
		Sessions:  session.NewManager(),
		Geocoder:  stubGeocoder{m: geocoded},
		Estimator: &plan.Estimator{Router: stubRouter{km: 100}},
		Builder:   plan.GreedyBuilder{},
		Config:    config.Default(),
	}
}

func testMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", s.SessionsHandler)
	mux.HandleFunc("/v1/sessions/", s.SessionByIDHandler)
	mux.HandleFunc("/v1/fleet", s.FleetHandler)
	mux.HandleFunc("/v1/origins", s.OriginsHandler)
	mux.HandleFunc("/v1/origins/", s.OriginByIDHandler)
	mux.HandleFunc("/v1/params", s.ParamsHandler)
	mux.HandleFunc("/v1/preferences", s.PreferencesHandler)
	mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return out
}

func createSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/v1/sessions", map[string]any{
		"origin": map[string]any{"name": "CD", "coordinates": map[string]float64{"lat": -23.5505, "lon": -46.6333}},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	return decode[map[string]any](t, rec)["id"].(string)
}

func TestCreateSessionWithCoordinates(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	if id == "" {
		t.Fatal("empty session id")
	}
	rec := do(t, mux, http.MethodGet, "/v1/sessions/"+id, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d", rec.Code)
	}
}

func TestCreateSessionFromMapLink(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodPost, "/v1/sessions", map[string]any{
		"origin": map[string]any{"text": "https://maps.example.com/@-23.5505,-46.6333,15z"},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSessionUnresolved(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodPost, "/v1/sessions", map[string]any{
		"origin": map[string]any{"text": "nowhere in particular"},
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want 422", rec.Code)
	}
}

func TestCreateSessionViewerForbidden(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodPost, "/v1/sessions", map[string]any{
		"origin": map[string]any{"coordinates": map[string]float64{"lat": 1, "lon": 1}},
	}, map[string]string{"X-Role": "viewer"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rec.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodGet, "/v1/sessions/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

func TestSessionTeamIsolation(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	rec := do(t, mux, http.MethodGet, "/v1/sessions/"+id, nil, map[string]string{"X-Team-Id": "t_other"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("session visible to another team: %d", rec.Code)
	}
}

func TestIngestOrdersRejectsBadWeight(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{
			{"client": "ACME", "city": "Campinas", "weight": "0,8",
				"coordinates": map[string]float64{"lat": -22.9, "lon": -47.06}},
			{"client": "Beta", "city": "Campinas", "weight": "not a number"},
		},
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	out := decode[map[string]any](t, rec)
	if out["accepted"].(float64) != 1 {
		t.Fatalf("accepted = %v", out["accepted"])
	}
	if len(out["rejected"].([]any)) != 1 {
		t.Fatalf("rejected = %v", out["rejected"])
	}
}

func TestPlanFlow(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	orders := []map[string]any{}
	for i := 0; i < 3; i++ {
		orders = append(orders, map[string]any{
			"client": fmt.Sprintf("Client %d", i), "city": "Campinas", "weight": 400.0,
			"coordinates": map[string]float64{"lat": -22.90 + float64(i)*0.01, "lon": -47.06},
		})
	}
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{"orders": orders}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d", rec.Code)
	}
	rec = do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/plan", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("plan: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[plan.Result](t, rec)
	if len(res.Trips) != 1 || len(res.Backlog) != 0 {
		t.Fatalf("trips=%d backlog=%d", len(res.Trips), len(res.Backlog))
	}
	trip := res.Trips[0]
	if trip.TotalWeightKg != 1200 {
		t.Fatalf("total weight %v", trip.TotalWeightKg)
	}
	if trip.Route == nil || trip.Route.DistanceKm != 100 {
		t.Fatalf("route not estimated: %+v", trip.Route)
	}
	// snapshot returns the same plan
	rec = do(t, mux, http.MethodGet, "/v1/sessions/"+id, nil, nil)
	snap := decode[plan.Result](t, rec)
	if len(snap.Trips) != 1 {
		t.Fatalf("snapshot trips=%d", len(snap.Trips))
	}
}

func TestPlanUnlocatedOrdersGoToBacklog(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{{"client": "ACME", "city": "Campinas", "weight": 500.0}},
	}, nil)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/plan", nil, nil)
	res := decode[plan.Result](t, rec)
	if len(res.Backlog) != 1 || res.Backlog[0].Reason != model.ReasonUnlocated {
		t.Fatalf("backlog: %+v", res.Backlog)
	}
}

func TestGeocodeEndpoint(t *testing.T) {
	mux := testMux(newTestServer(map[string]model.Coordinates{
		"Centro, Campinas - SP": {Lat: -22.9056, Lon: -47.0608},
	}))
	id := createSession(t, mux)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{
			{"client": "ACME", "city": "Campinas", "region": "SP", "neighborhood": "Centro", "weight": 500.0},
		},
	}, nil)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/geocode", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("geocode: %d %s", rec.Code, rec.Body.String())
	}
	out := decode[map[string]any](t, rec)
	if out["located"].(float64) != 1 {
		t.Fatalf("located = %v", out["located"])
	}
}

func TestRemoveStopMovesToBacklog(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{
			{"id": "o1", "client": "ACME", "city": "Campinas", "weight": 400.0,
				"coordinates": map[string]float64{"lat": -22.90, "lon": -47.06}},
			{"id": "o2", "client": "Beta", "city": "Campinas", "weight": 400.0,
				"coordinates": map[string]float64{"lat": -22.91, "lon": -47.06}},
		},
	}, nil)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/plan", nil, nil)
	res := decode[plan.Result](t, rec)
	tripID := res.Trips[0].ID

	rec = do(t, mux, http.MethodDelete, "/v1/sessions/"+id+"/trips/"+tripID+"/stops/o1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: %d %s", rec.Code, rec.Body.String())
	}
	res = decode[plan.Result](t, rec)
	if len(res.Backlog) != 1 || res.Backlog[0].Reason != model.ReasonRemoved {
		t.Fatalf("backlog: %+v", res.Backlog)
	}
	if len(res.Trips[0].Stops) != 1 || res.Trips[0].Stops[0].ID != "o2" {
		t.Fatalf("stops: %+v", res.Trips[0].Stops)
	}
}

func TestMutationBeforePlanConflicts(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	rec := do(t, mux, http.MethodDelete, "/v1/sessions/"+id+"/trips/x/stops/y", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rec.Code)
	}
}

func TestAssignFromBacklogBadTrip(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{{"id": "o1", "client": "ACME", "city": "Campinas", "weight": 500.0}},
	}, nil)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/plan", nil, nil)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/backlog/assign",
		map[string]any{"orderId": "o1", "tripNumber": 99}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rec.Code)
	}
}

func TestVehicleOverridePersistsPreference(t *testing.T) {
	srv := newTestServer(nil)
	mux := testMux(srv)
	id := createSession(t, mux)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{
			{"id": "o1", "client": "ACME", "city": "Campinas", "weight": 400.0,
				"coordinates": map[string]float64{"lat": -22.90, "lon": -47.06}},
		},
	}, nil)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/plan", nil, nil)
	res := decode[plan.Result](t, rec)
	tripID := res.Trips[0].ID

	rec = do(t, mux, http.MethodPut, "/v1/sessions/"+id+"/trips/"+tripID+"/vehicle",
		map[string]any{"vehicleType": "Truck", "learnReason": "client dock needs a crane"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("override: %d %s", rec.Code, rec.Body.String())
	}
	res = decode[plan.Result](t, rec)
	if res.Trips[0].Vehicle.Type != "Truck" {
		t.Fatalf("vehicle: %+v", res.Trips[0].Vehicle)
	}
	recs, err := srv.Store.ListPreferences(context.Background(), "t_demo")
	if err != nil || len(recs) == 0 {
		t.Fatalf("preference not persisted: %v %v", recs, err)
	}
	rec = do(t, mux, http.MethodGet, "/v1/preferences", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preferences: %d", rec.Code)
	}
}

func TestSameVehicleOverrideLearnsNothing(t *testing.T) {
	srv := newTestServer(nil)
	mux := testMux(srv)
	id := createSession(t, mux)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{
			{"id": "o1", "client": "ACME", "city": "Campinas", "weight": 500.0,
				"coordinates": map[string]float64{"lat": -22.90, "lon": -47.06}},
		},
	}, nil)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/plan", nil, nil)
	res := decode[plan.Result](t, rec)
	trip := res.Trips[0]

	// overriding to the type the trip already has is a no-op and must not
	// leave durable preference records behind
	rec = do(t, mux, http.MethodPut, "/v1/sessions/"+id+"/trips/"+trip.ID+"/vehicle",
		map[string]any{"vehicleType": trip.Vehicle.Type, "learnReason": "dock restriction"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("override: %d %s", rec.Code, rec.Body.String())
	}
	recs, err := srv.Store.ListPreferences(context.Background(), "t_demo")
	if err != nil {
		t.Fatalf("list preferences: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("same-type override persisted preferences: %+v", recs)
	}
}

func TestIngestCarriesStatus(t *testing.T) {
	srv := newTestServer(nil)
	mux := testMux(srv)
	id := createSession(t, mux)
	rec := do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{
			{"id": "o1", "client": "ACME", "city": "Campinas", "weight": 400.0, "status": "Agendado"},
		},
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d %s", rec.Code, rec.Body.String())
	}
	sess, ok := srv.Sessions.Get("t_demo", id)
	if !ok {
		t.Fatal("session missing")
	}
	if got := sess.Orders[0].Status; got != "Agendado" {
		t.Fatalf("status %q", got)
	}
}

func TestFleetGetPut(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodGet, "/v1/fleet", nil, nil)
	out := decode[map[string][]model.VehicleClass](t, rec)
	if len(out["fleet"]) != 7 {
		t.Fatalf("default fleet size %d", len(out["fleet"]))
	}
	newFleet := map[string]any{"fleet": []model.VehicleClass{{Type: "Sprinter", CapacityKg: 1200, Available: 2, MaxStops: 10, KmPerLiter: 8, Axles: 2, FixedCost: 90}}}
	rec = do(t, mux, http.MethodPut, "/v1/fleet", newFleet, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodGet, "/v1/fleet", nil, nil)
	out = decode[map[string][]model.VehicleClass](t, rec)
	if len(out["fleet"]) != 1 || out["fleet"][0].Type != "Sprinter" {
		t.Fatalf("fleet after put: %+v", out["fleet"])
	}
	// planners may not change the fleet
	rec = do(t, mux, http.MethodPut, "/v1/fleet", newFleet, map[string]string{"X-Role": "planner"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rec.Code)
	}
	rec = do(t, mux, http.MethodPut, "/v1/fleet", map[string]any{"fleet": []model.VehicleClass{}}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty fleet: %d", rec.Code)
	}
}

func TestParamsRoundTrip(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodPut, "/v1/params", model.Params{RadiusKm: 220, DieselPrice: 7.1}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d", rec.Code)
	}
	rec = do(t, mux, http.MethodGet, "/v1/params", nil, nil)
	p := decode[model.Params](t, rec)
	if p.RadiusKm != 220 || p.DieselPrice != 7.1 {
		t.Fatalf("params: %+v", p)
	}
}

func TestOriginsCRUD(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodPost, "/v1/origins", map[string]any{
		"name": "CD Campinas", "coordinates": map[string]float64{"lat": -22.9, "lon": -47.06},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post: %d %s", rec.Code, rec.Body.String())
	}
	o := decode[model.SavedOrigin](t, rec)
	rec = do(t, mux, http.MethodGet, "/v1/origins", nil, nil)
	items := decode[map[string][]model.SavedOrigin](t, rec)["items"]
	if len(items) != 1 {
		t.Fatalf("items: %+v", items)
	}
	// a session can now name the saved depot
	rec = do(t, mux, http.MethodPost, "/v1/sessions", map[string]any{
		"origin": map[string]any{"name": "cd campinas"},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("session by saved name: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodDelete, "/v1/origins/"+o.ID, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = do(t, mux, http.MethodDelete, "/v1/origins/"+o.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
}

func TestSubscriptionsCRUD(t *testing.T) {
	mux := testMux(newTestServer(nil))
	rec := do(t, mux, http.MethodPost, "/v1/subscriptions", map[string]any{
		"url": "http://example.test/hook", "events": []string{"plan.completed"}, "secret": "s",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post: %d %s", rec.Code, rec.Body.String())
	}
	sub := decode[store.Subscription](t, rec)
	rec = do(t, mux, http.MethodGet, "/v1/subscriptions", nil, nil)
	items := decode[map[string][]store.Subscription](t, rec)["items"]
	if len(items) != 1 {
		t.Fatalf("items: %+v", items)
	}
	// planners may not manage subscriptions
	rec = do(t, mux, http.MethodPost, "/v1/subscriptions", map[string]any{
		"url": "http://example.test", "events": []string{"trip.updated"},
	}, map[string]string{"X-Role": "planner"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rec.Code)
	}
	rec = do(t, mux, http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
}

func TestPlanEmitsWebhook(t *testing.T) {
	srv := newTestServer(nil)
	mux := testMux(srv)
	do(t, mux, http.MethodPost, "/v1/subscriptions", map[string]any{
		"url": "http://example.test/hook", "events": []string{"plan.completed"},
	}, nil)
	id := createSession(t, mux)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/orders", map[string]any{
		"orders": []map[string]any{
			{"client": "ACME", "city": "Campinas", "weight": 400.0,
				"coordinates": map[string]float64{"lat": -22.90, "lon": -47.06}},
		},
	}, nil)
	do(t, mux, http.MethodPost, "/v1/sessions/"+id+"/plan", nil, nil)
	due, err := srv.Store.FetchDueWebhookDeliveries(context.Background(), 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("deliveries: %v %v", due, err)
	}
	if due[0].EventType != webhooks.EventPlanCompleted {
		t.Fatalf("event type %q", due[0].EventType)
	}
}

func TestHealthAndReady(t *testing.T) {
	mux := testMux(newTestServer(nil))
	if rec := do(t, mux, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/readyz", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	mux := testMux(newTestServer(nil))
	id := createSession(t, mux)
	if rec := do(t, mux, http.MethodDelete, "/v1/sessions/"+id, nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/v1/sessions/"+id, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("after delete: %d", rec.Code)
	}
}
