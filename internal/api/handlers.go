package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fretecalc/internal/buildinfo"
	"fretecalc/internal/geo"
	"fretecalc/internal/metrics"
	"fretecalc/internal/model"
	"fretecalc/internal/plan"
	"fretecalc/internal/session"
	"fretecalc/internal/store"
)

type originIn struct {
	Name        string             `json:"name,omitempty"`
	Coordinates *model.Coordinates `json:"coordinates,omitempty"`
	Text        string             `json:"text,omitempty"`
}

// SessionsHandler handles POST /v1/sessions
func (s *Server) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
	var req struct {
		Origin originIn      `json:"origin"`
		Params *model.Params `json:"params,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	ctx := r.Context()

	resolver := geo.NewResolver(s.Geocoder)
	if cache, err := s.Store.GetGeoCache(ctx, pr.Team); err == nil {
		resolver.Seed(cache)
	}

	origin, err := s.resolveOrigin(r, resolver, pr.Team, req.Origin)
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Origin unresolved", err.Error(), r.URL.Path)
		return
	}

	params := s.paramsFor(ctx, pr.Team)
	if req.Params != nil {
		params = req.Params.WithDefaults()
	}
	pool := plan.NewFleetPool(s.fleetFor(ctx, pr.Team))
	prefs := plan.NewPreferenceMemory()
	if records, err := s.Store.ListPreferences(ctx, pr.Team); err == nil {
		prefs.Seed(records)
	}

	sess := s.Sessions.Create(pr.Team, origin, params, pool, resolver, prefs)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     sess.ID,
		"origin": sess.Origin,
		"params": sess.Params,
	})
}

// resolveOrigin turns the origin input into coordinates: explicit
// coordinates win, then a saved depot by name, then pasted text (map
// link or free-form address run through the geocoder).
func (s *Server) resolveOrigin(r *http.Request, resolver *geo.Resolver, team string, in originIn) (model.Origin, error) {
	if in.Coordinates != nil {
		return model.Origin{Name: in.Name, Coordinates: *in.Coordinates}, nil
	}
	if in.Name != "" {
		saved, err := s.Store.ListOrigins(r.Context(), team)
		if err == nil {
			for _, o := range saved {
				if strings.EqualFold(o.Name, in.Name) {
					return model.Origin{Name: o.Name, Coordinates: o.Coordinates}, nil
				}
			}
		}
		if in.Text == "" {
			return model.Origin{}, fmt.Errorf("no saved origin named %q", in.Name)
		}
	}
	if in.Text != "" {
		if c, ok := ExtractCoordinates(in.Text); ok {
			return model.Origin{Name: in.Name, Coordinates: c}, nil
		}
		c, found, err := resolver.Resolve(r.Context(), in.Text)
		if err != nil {
			return model.Origin{}, err
		}
		if found {
			return model.Origin{Name: in.Name, Coordinates: c}, nil
		}
		return model.Origin{}, fmt.Errorf("could not geocode %q", in.Text)
	}
	return model.Origin{}, errors.New("origin required: coordinates, saved name, or text")
}

// SessionByIDHandler routes /v1/sessions/{id} and every session-scoped
// sub-path (orders, geocode, plan, trips, backlog, events, ws).
func (s *Server) SessionByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	pr := s.getPrincipal(r)
	sess, ok := s.Sessions.Get(pr.Team, id)
	if !ok {
		writeProblem(w, http.StatusNotFound, "Session not found", "", r.URL.Path)
		return
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.snapshot(w, sess)
		case http.MethodDelete:
			s.Sessions.Delete(pr.Team, id)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	switch {
	case parts[1] == "orders" && len(parts) == 2:
		s.ingestOrders(w, r, sess)
	case parts[1] == "geocode" && len(parts) == 2:
		s.geocodeSession(w, r, pr, sess)
	case parts[1] == "plan" && len(parts) == 2:
		s.planSession(w, r, pr, sess)
	case parts[1] == "events" && len(parts) == 3 && parts[2] == "stream":
		s.streamEvents(w, r, sess)
	case parts[1] == "ws" && len(parts) == 2:
		s.SessionWS(w, r, sess)
	case parts[1] == "trips" && len(parts) >= 3:
		s.tripMutation(w, r, pr, sess, parts[2:])
	case parts[1] == "backlog" && len(parts) == 3 && parts[2] == "assign":
		s.assignFromBacklog(w, r, pr, sess)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) snapshot(w http.ResponseWriter, sess *session.Session) {
	sess.Lock()
	res := sess.Result
	if res == nil {
		res = &plan.Result{Trips: []*model.Trip{}, Backlog: []model.BacklogEntry{}}
	}
	writeJSON(w, http.StatusOK, res)
	sess.Unlock()
}

type orderIn struct {
	ID           string             `json:"id,omitempty"`
	Client       string             `json:"client"`
	City         string             `json:"city"`
	Region       string             `json:"region,omitempty"`
	Neighborhood string             `json:"neighborhood,omitempty"`
	Address      string             `json:"address,omitempty"`
	Weight       any                `json:"weight"`
	Status       string             `json:"status,omitempty"`
	Scheduled    bool               `json:"scheduled,omitempty"`
	Coordinates  *model.Coordinates `json:"coordinates,omitempty"`
}

func (s *Server) ingestOrders(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Orders []orderIn `json:"orders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	accepted := 0
	rejected := []map[string]any{}
	sess.Lock()
	defer sess.Unlock()
	for i, in := range req.Orders {
		weight, err := coerceWeight(in.Weight)
		if err != nil {
			rejected = append(rejected, map[string]any{"index": i, "reason": "unparseable weight"})
			continue
		}
		o := &model.Order{
			ID:           in.ID,
			Client:       strings.TrimSpace(in.Client),
			City:         strings.TrimSpace(in.City),
			Region:       strings.TrimSpace(in.Region),
			Neighborhood: strings.TrimSpace(in.Neighborhood),
			Address:      strings.TrimSpace(in.Address),
			WeightKg:     NormalizeWeightKg(weight),
			Status:       strings.TrimSpace(in.Status),
			Scheduled:    in.Scheduled,
			Coordinates:  in.Coordinates,
		}
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		o.Address = BuildAddress(o)
		sess.Orders = append(sess.Orders, o)
		accepted++
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": accepted, "rejected": rejected, "total": len(sess.Orders)})
}

func coerceWeight(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return ParseWeight(x)
	case nil:
		return 0, errBadWeight
	default:
		return 0, errBadWeight
	}
}

func (s *Server) geocodeSession(w http.ResponseWriter, r *http.Request, pr Principal, sess *session.Session) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess.Lock()
	defer sess.Unlock()
	err := sess.Resolver.ResolveBatch(r.Context(), sess.Orders, func(pct int) {
		s.Broker.Publish(sess.ID, SSEEvent{Type: "geocode.progress", Data: map[string]any{"sessionId": sess.ID, "pct": pct}})
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Geocoding interrupted", err.Error(), r.URL.Path)
		return
	}
	// persist what this run learned
	_ = s.Store.MergeGeoCache(r.Context(), pr.Team, sess.Resolver.Snapshot())
	located := 0
	for _, o := range sess.Orders {
		if o.Located() {
			located++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"located": located, "total": len(sess.Orders)})
}

func (s *Server) planSession(w http.ResponseWriter, r *http.Request, pr Principal, sess *session.Session) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !pr.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
	sess.Lock()
	defer sess.Unlock()
	start := time.Now()
	// fresh pool each run so a re-plan sees the full fleet again
	pool := plan.NewFleetPool(s.fleetFor(r.Context(), pr.Team))
	res, err := s.Builder.Build(r.Context(), sess.Origin, sess.Orders, pool, sess.Prefs, sess.Params, func(pct int) {
		s.Broker.Publish(sess.ID, SSEEvent{Type: "plan.progress", Data: map[string]any{"sessionId": sess.ID, "pct": pct * 40 / 100}})
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Plan failed", err.Error(), r.URL.Path)
		return
	}
	for i, trip := range res.Trips {
		trip.Route = s.Estimator.EstimateRoute(r.Context(), trip, sess.Params)
		pct := 40 + (i+1)*60/len(res.Trips)
		s.Broker.Publish(sess.ID, SSEEvent{Type: "plan.progress", Data: map[string]any{"sessionId": sess.ID, "pct": pct}})
	}
	sess.Pool = pool
	sess.Result = res
	metrics.PlanDuration.Observe(time.Since(start).Seconds())
	s.Broker.Publish(sess.ID, SSEEvent{Type: "plan.completed", Data: map[string]any{"sessionId": sess.ID, "trips": len(res.Trips), "backlog": len(res.Backlog)}})
	s.Pub.Emit(r.Context(), pr.Team, "plan.completed", map[string]any{"sessionId": sess.ID, "trips": len(res.Trips), "backlog": len(res.Backlog)})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(sess.ID)
	defer s.Broker.Unsubscribe(sess.ID, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"sessionId\":\"%s\",\"ts\":\"%s\"}\n\n", sess.ID, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"sessionId\":\"%s\",\"ts\":\"%s\"}\n\n", sess.ID, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func (s *Server) engine(sess *session.Session) *plan.Engine {
	return &plan.Engine{Pool: sess.Pool, Prefs: sess.Prefs, Estimator: s.Estimator, Params: sess.Params}
}

// tripMutation handles the sub-paths under /v1/sessions/{id}/trips/{tid}.
func (s *Server) tripMutation(w http.ResponseWriter, r *http.Request, pr Principal, sess *session.Session, parts []string) {
	if !pr.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
	tripID := parts[0]
	sess.Lock()
	defer sess.Unlock()
	if sess.Result == nil {
		writeProblem(w, http.StatusConflict, "No plan", "run the planner first", r.URL.Path)
		return
	}
	eng := s.engine(sess)
	var err error
	switch {
	case len(parts) == 3 && parts[1] == "stops" && r.Method == http.MethodDelete:
		err = eng.RemoveStop(r.Context(), sess.Result, tripID, parts[2])
	case len(parts) == 2 && parts[1] == "stops" && r.Method == http.MethodPut:
		var req struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", derr.Error(), r.URL.Path)
			return
		}
		err = eng.ReorderStops(r.Context(), sess.Result, tripID, req.From, req.To)
	case len(parts) == 2 && parts[1] == "improve" && r.Method == http.MethodPost:
		err = eng.ImproveStopOrder(r.Context(), sess.Result, tripID)
	case len(parts) == 2 && parts[1] == "vehicle" && r.Method == http.MethodPut:
		var req struct {
			VehicleType string `json:"vehicleType"`
			LearnReason string `json:"learnReason,omitempty"`
		}
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", derr.Error(), r.URL.Path)
			return
		}
		priorType := ""
		if _, trip := tripByID(sess.Result, tripID); trip != nil {
			priorType = trip.Vehicle.Type
		}
		err = eng.OverrideVehicle(r.Context(), sess.Result, tripID, req.VehicleType, req.LearnReason)
		// learning is tied to an actual swap; a same-type override is a no-op
		if err == nil && req.LearnReason != "" && req.VehicleType != priorType {
			if _, trip := tripByID(sess.Result, tripID); trip != nil {
				for _, st := range trip.Stops {
					key := plan.PreferenceKey(sess.Origin.Coordinates, st.Client, st.City)
					_ = s.Store.AppendPreference(r.Context(), pr.Team, key,
						model.PreferenceRecord{VehicleType: req.VehicleType, Reason: req.LearnReason, At: time.Now().UTC()})
				}
			}
		}
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.Broker.Publish(sess.ID, SSEEvent{Type: "trip.updated", Data: map[string]any{"sessionId": sess.ID, "tripId": tripID}})
	s.Pub.Emit(r.Context(), pr.Team, "trip.updated", map[string]any{"sessionId": sess.ID, "tripId": tripID})
	writeJSON(w, http.StatusOK, sess.Result)
}

func tripByID(res *plan.Result, id string) (int, *model.Trip) {
	for i, t := range res.Trips {
		if t.ID == id {
			return i, t
		}
	}
	return -1, nil
}

func (s *Server) assignFromBacklog(w http.ResponseWriter, r *http.Request, pr Principal, sess *session.Session) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !pr.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
	var req struct {
		OrderID    string `json:"orderId"`
		TripNumber int    `json:"tripNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.Result == nil {
		writeProblem(w, http.StatusConflict, "No plan", "run the planner first", r.URL.Path)
		return
	}
	if err := s.engine(sess).AssignFromBacklog(r.Context(), sess.Result, req.OrderID, req.TripNumber); err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.Broker.Publish(sess.ID, SSEEvent{Type: "trip.updated", Data: map[string]any{"sessionId": sess.ID, "tripNumber": req.TripNumber}})
	s.Pub.Emit(r.Context(), pr.Team, "trip.updated", map[string]any{"sessionId": sess.ID, "tripNumber": req.TripNumber})
	writeJSON(w, http.StatusOK, sess.Result)
}

func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, plan.ErrInvalidTarget):
		writeProblem(w, http.StatusBadRequest, "Invalid target", err.Error(), r.URL.Path)
	case errors.Is(err, plan.ErrOrderNotFound):
		writeProblem(w, http.StatusNotFound, "Order not found", err.Error(), r.URL.Path)
	default:
		writeProblem(w, http.StatusInternalServerError, "Mutation failed", err.Error(), r.URL.Path)
	}
}

// FleetHandler handles GET/PUT /v1/fleet
func (s *Server) FleetHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"fleet": s.fleetFor(r.Context(), pr.Team)})
	case http.MethodPut:
		if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
		var req struct {
			Fleet []model.VehicleClass `json:"fleet"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if len(req.Fleet) == 0 {
			writeProblem(w, http.StatusBadRequest, "Empty fleet", "at least one vehicle class required", r.URL.Path)
			return
		}
		for _, v := range req.Fleet {
			if v.Type == "" || v.CapacityKg <= 0 {
				writeProblem(w, http.StatusBadRequest, "Invalid vehicle class", "type and positive capacity required", r.URL.Path)
				return
			}
		}
		if err := s.Store.SaveFleet(r.Context(), pr.Team, req.Fleet); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OriginsHandler handles GET/POST /v1/origins
func (s *Server) OriginsHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	switch r.Method {
	case http.MethodGet:
		items, err := s.Store.ListOrigins(r.Context(), pr.Team)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List origins failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !pr.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
		var req struct {
			Name        string             `json:"name"`
			Coordinates *model.Coordinates `json:"coordinates,omitempty"`
			Text        string             `json:"text,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.Name == "" {
			writeProblem(w, http.StatusBadRequest, "Missing name", "", r.URL.Path)
			return
		}
		c := model.Coordinates{}
		switch {
		case req.Coordinates != nil:
			c = *req.Coordinates
		case req.Text != "":
			got, ok := ExtractCoordinates(req.Text)
			if !ok {
				resolver := geo.NewResolver(s.Geocoder)
				rc, found, err := resolver.Resolve(r.Context(), req.Text)
				if err != nil || !found {
					writeProblem(w, http.StatusUnprocessableEntity, "Origin unresolved", "could not geocode text", r.URL.Path)
					return
				}
				got = rc
			}
			c = got
		default:
			writeProblem(w, http.StatusBadRequest, "Missing location", "coordinates or text required", r.URL.Path)
			return
		}
		o, err := s.Store.AddOrigin(r.Context(), pr.Team, req.Name, c)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, o)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OriginByIDHandler handles DELETE /v1/origins/{id}
func (s *Server) OriginByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/origins/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
	if err := s.Store.DeleteOrigin(r.Context(), pr.Team, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Origin not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ParamsHandler handles GET/PUT /v1/params
func (s *Server) ParamsHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.paramsFor(r.Context(), pr.Team))
	case http.MethodPut:
		if !pr.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
		var p model.Params
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		p = p.WithDefaults()
		if err := s.Store.SaveParams(r.Context(), pr.Team, p); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PreferencesHandler handles GET /v1/preferences
func (s *Server) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	records, err := s.Store.ListPreferences(r.Context(), pr.Team)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List preferences failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": records})
}

// SubscriptionsHandler handles GET/POST /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	switch r.Method {
	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context(), pr.Team)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
		var req struct {
			URL    string   `json:"url"`
			Events []string `json:"events"`
			Secret string   `json:"secret,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Missing url or events", "", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), pr.Team, req.URL, req.Events, req.Secret)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	if err := s.Store.DeleteSubscription(r.Context(), pr.Team, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Subscription not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler handles /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

// ReadyHandler handles /readyz
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
