// Package api provides the HTTP API for the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talgya/lifesim/internal/action"
	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/health"
	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/persistence"
	"github.com/talgya/lifesim/internal/schedule"
	"github.com/talgya/lifesim/internal/sim"
)

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *sim.Simulation
	Eng      *sim.Engine
	DB       *persistence.DB
	Hub      *Hub
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Mu serializes handler access to Sim against the engine loop.
	Mu *sync.Mutex
}

func (s *Server) lock() func() {
	if s.Mu == nil {
		return func() {}
	}
	s.Mu.Lock()
	return s.Mu.Unlock
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Advancing sim time from outside is expensive; keep it bounded.
	advanceLimiter := NewRateLimiter(600, time.Hour)
	snapshotLimiter := NewRateLimiter(60, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/entities", s.handleEntities)
	mux.HandleFunc("/api/v1/entity/", s.handleEntityRoutes)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/economy", s.handleEconomy)
	mux.HandleFunc("/api/v1/ledgers", s.handleLedgers)
	mux.HandleFunc("/api/v1/stored", s.handleStored)
	mux.HandleFunc("/api/v1/actions", s.handleActions)

	// Live event stream (websocket).
	if s.Hub != nil {
		mux.HandleFunc("/api/v1/stream", s.Hub.handleStream)
	}

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/advance", RateLimitMiddleware(advanceLimiter, s.adminOnly(s.handleAdvance)))
	mux.HandleFunc("/api/v1/schedule/request", s.adminOnly(s.handleScheduleRequest))
	mux.HandleFunc("/api/v1/action", s.adminOnly(s.handleAction))
	mux.HandleFunc("/api/v1/action/cancel", s.adminOnly(s.handleActionCancel))
	mux.HandleFunc("/api/v1/condition", s.adminOnly(s.handleCondition))
	mux.HandleFunc("/api/v1/convert", s.adminOnly(s.handleConvert))
	mux.HandleFunc("/api/v1/holiday", s.adminOnly(s.handleHoliday))
	mux.HandleFunc("/api/v1/snapshot", RateLimitMiddleware(snapshotLimiter, s.adminOnly(s.handleSnapshot)))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "stream", s.Hub != nil)

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no LIFESIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	clk := s.Sim.Clock
	writeJSON(w, map[string]any{
		"day":             clk.Day(),
		"day_type":        clk.DayType().String(),
		"time":            clock.FormatTime(clk.MinutesOfDay()),
		"minutes_of_day":  clk.MinutesOfDay(),
		"season":          clk.Season(),
		"speed":           s.Eng.Speed,
		"running":         s.Eng.Running,
		"steps":           s.Eng.Steps,
		"entities":        len(s.Sim.EntityIDs()),
		"pending_actions": len(s.Sim.Dispatcher.Pending()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	s.Sim.UpdateStats()
	writeJSON(w, s.Sim.Stats)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	out := make([]sim.EntityStatus, 0, len(s.Sim.EntityIDs()))
	for _, id := range s.Sim.EntityIDs() {
		st, err := s.Sim.GetEntityStatus(id)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	writeJSON(w, out)
}

// handleEntityRoutes dispatches /api/v1/entity/{id} and
// /api/v1/entity/{id}/schedule.
func (s *Server) handleEntityRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/entity/")
	parts := strings.SplitN(rest, "/", 2)
	id := schedule.EntityID(parts[0])
	if len(parts) == 2 && parts[1] == "schedule" {
		s.handleEntitySchedule(w, r, id)
		return
	}
	if len(parts) == 1 {
		s.handleEntityDetail(w, r, id)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleEntityDetail(w http.ResponseWriter, r *http.Request, id schedule.EntityID) {
	defer s.lock()()
	st, err := s.Sim.GetEntityStatus(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	e, _ := s.Sim.Entity(id)
	today := e.Schedule.ForDay(s.Sim.Clock.DayType(), s.Sim.Clock.Day())
	writeJSON(w, map[string]any{
		"status":     st,
		"conditions": e.Health.Conditions,
		"today":      today,
	})
}

func (s *Server) handleEntitySchedule(w http.ResponseWriter, r *http.Request, id schedule.EntityID) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 && n <= 28 {
			days = n
		}
	}
	defer s.lock()()
	items, err := s.Sim.GetFutureSchedule(id, days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, items)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	defer s.lock()()
	events := s.Sim.Events

	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []sim.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleEconomy(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	eco := s.Sim.Ledgers.Economy

	kinds := []ledger.Kind{ledger.KindCurrency, ledger.KindItem, ledger.KindTime}
	rates := make(map[string]float64, len(kinds)*(len(kinds)-1))
	for _, from := range kinds {
		for _, to := range kinds {
			if from == to {
				continue
			}
			rates[from.String()+"_to_"+to.String()] = eco.Rate(from, to)
		}
	}

	writeJSON(w, map[string]any{
		"inflation": eco.Inflation,
		"stability": eco.Stability,
		"tax_rate":  eco.TaxRate,
		"recession": eco.Recession,
		"rates":     rates,
	})
}

func (s *Server) handleLedgers(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	writeJSON(w, s.Sim.Ledgers.All())
}

func (s *Server) handleStored(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	writeJSON(w, s.Sim.Ledgers.Stored())
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	catalog := s.Sim.Dispatcher.Catalog()
	out := make([]action.Definition, 0)
	for _, id := range catalog.IDs() {
		if def, ok := catalog.Get(id); ok {
			out = append(out, def)
		}
	}
	writeJSON(w, map[string]any{
		"catalog": out,
		"pending": s.Sim.Dispatcher.Pending(),
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.Speed = req.Speed
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Minutes <= 0 || req.Minutes > 7*24*60 {
		http.Error(w, "minutes must be 1 to 10080", http.StatusBadRequest)
		return
	}

	defer s.lock()()
	s.Sim.Tick(req.Minutes)
	writeJSON(w, map[string]any{
		"day":  s.Sim.Clock.Day(),
		"time": clock.FormatTime(s.Sim.Clock.MinutesOfDay()),
	})
}

func (s *Server) handleScheduleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		EntityID        string  `json:"entity_id"`
		RequesterID     string  `json:"requester_id"`
		Day             int     `json:"day"`
		Start           int     `json:"start"`
		End             int     `json:"end"`
		Activity        string  `json:"activity"`
		Location        string  `json:"location,omitempty"`
		Importance      float64 `json:"importance"`
		MaxShiftMinutes int     `json:"max_shift_minutes,omitempty"`
		SkipProbability float64 `json:"skip_probability,omitempty"`
		Priority        float64 `json:"priority,omitempty"`
		Reason          string  `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	slot, err := schedule.NewTimeSlot(req.Start, req.End)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	candidate := schedule.NewItem(slot, req.Activity, req.Location, req.Importance, schedule.Flexibility{
		MaxShiftMinutes: req.MaxShiftMinutes,
		SkipProbability: req.SkipProbability,
	})
	mod := schedule.NewModificationRequest(
		schedule.EntityID(req.EntityID), schedule.EntityID(req.RequesterID),
		req.Day, candidate, req.Priority, req.Reason,
	)

	defer s.lock()()
	result, err := s.Sim.RequestScheduleModification(mod)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		EntityID string        `json:"entity_id"`
		ActionID string        `json:"action_id"`
		Params   action.Params `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	defer s.lock()()
	result, err := s.Sim.ProcessAction(schedule.EntityID(req.EntityID), req.ActionID, req.Params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleActionCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	defer s.lock()()
	if !s.Sim.Dispatcher.Cancel(req.ID) {
		http.Error(w, "unknown or finished action", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"id": req.ID, "status": "cancelling"})
}

var statNames = map[string]health.Stat{
	"energy": health.StatEnergy,
	"health": health.StatHealth,
}

func (s *Server) handleCondition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		EntityID        string             `json:"entity_id"`
		Type            string             `json:"type"`
		Severity        float64            `json:"severity"`
		DurationMinutes int                `json:"duration_minutes"`
		EffectsPerMin   map[string]float64 `json:"effects_per_minute,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Type == "" || req.Severity < 0 || req.Severity > 1 || req.DurationMinutes <= 0 {
		http.Error(w, "condition needs a type, severity 0-1, and a positive duration", http.StatusBadRequest)
		return
	}

	effects := make(map[health.Stat]float64, len(req.EffectsPerMin))
	for name, perMin := range req.EffectsPerMin {
		stat, ok := statNames[name]
		if !ok {
			http.Error(w, fmt.Sprintf("unknown stat %q", name), http.StatusBadRequest)
			return
		}
		effects[stat] = perMin
	}

	defer s.lock()()
	err := s.Sim.AddCondition(schedule.EntityID(req.EntityID), health.Condition{
		Type:             req.Type,
		Severity:         req.Severity,
		RemainingMinutes: req.DurationMinutes,
		EffectsPerMinute: effects,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"entity_id": req.EntityID, "condition": req.Type})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		From   string  `json:"from"`
		To     string  `json:"to"`
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	defer s.lock()()
	received, err := s.Sim.Ledgers.Convert(req.From, req.To, req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, map[string]any{"from": req.From, "to": req.To, "received": received})
}

func (s *Server) handleHoliday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	defer s.lock()()
	s.Sim.Clock.SetHoliday(req.On)
	slog.Info("holiday override", "on", req.On, "day", s.Sim.Clock.Day())
	writeJSON(w, map[string]any{"day": s.Sim.Clock.Day(), "day_type": s.Sim.Clock.DayType().String()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	defer s.lock()()
	if err := s.DB.SaveWorld(s.Sim.Snapshot()); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"day":     s.Sim.Clock.Day(),
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
