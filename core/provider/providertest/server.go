// Package providertest runs an in-process fake of the channel-manager API for tests.
package providertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"channel-manager/core/provider"
)

// Server is a fake provider backed by in-memory fixtures.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// Fixtures.
	Properties map[string]provider.Property
	Calendar   map[string][]provider.CalendarEntry // by property id
	Bookings   map[string][]provider.Booking       // by property id

	// Token endpoint behaviour.
	ExpiresIn       int
	RotateRefresh   bool
	RejectRefresh   bool
	PropertiesCount int
	issued          int

	// Failures maps "METHOD /path-prefix" to a forced status code.
	Failures map[string]int

	// Credits reported in headers; zero disables the headers.
	CostPerCall int
	Credits     int

	// Recorded traffic.
	Pushed      [][]provider.CalendarChange
	Calls       []string
	LastToken   string
	RefreshSeen []string
}

// New starts a fake provider. Close it with t.Cleanup(srv.Close).
func New() *Server {
	s := &Server{
		Properties: map[string]provider.Property{},
		Calendar:   map[string][]provider.CalendarEntry{},
		Bookings:   map[string][]provider.Booking{},
		Failures:   map[string]int{},
		ExpiresIn:  3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", s.token)
	mux.HandleFunc("GET /properties/{id}", s.property)
	mux.HandleFunc("GET /properties/{id}/rooms", s.rooms)
	mux.HandleFunc("GET /inventory/calendar", s.calendar)
	mux.HandleFunc("POST /inventory/calendar", s.push)
	mux.HandleFunc("GET /bookings", s.bookings)

	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// Config returns a provider.Config pointing at the fake.
func (s *Server) Config() provider.Config {
	return provider.Config{
		Name:           "channel",
		BaseURL:        s.URL,
		TokenURL:       s.URL + "/oauth/token",
		TimeoutSeconds: 5,
	}
}

// Fail forces status for requests matching "METHOD /prefix".
func (s *Server) Fail(methodAndPrefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures[methodAndPrefix] = status
}

// Issued returns how many access tokens the token endpoint handed out.
func (s *Server) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// CallCount returns how many requests matched "METHOD /prefix".
func (s *Server) CallCount(methodAndPrefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if strings.HasPrefix(c, methodAndPrefix) {
			n++
		}
	}
	return n
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.Calls = append(s.Calls, call)
		if auth := r.Header.Get("Authorization"); auth != "" {
			s.LastToken = strings.TrimPrefix(auth, "Bearer ")
		}
		status := 0
		for prefix, code := range s.Failures {
			if strings.HasPrefix(call, prefix) {
				status = code
			}
		}
		if s.CostPerCall > 0 && r.URL.Path != "/oauth/token" {
			s.Credits -= s.CostPerCall
			w.Header().Set(provider.HeaderRequestCost, fmt.Sprint(s.CostPerCall))
			w.Header().Set(provider.HeaderCreditsRemaining, fmt.Sprint(s.Credits))
		}
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, `{"success":false,"error":"forced failure"}`, status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.RefreshSeen = append(s.RefreshSeen, r.PostForm.Get("refresh_token"))
	if s.RejectRefresh || r.PostForm.Get("grant_type") != "refresh_token" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
		return
	}

	s.issued++
	resp := map[string]any{
		"access_token": fmt.Sprintf("access-%d", s.issued),
		"token_type":   "Bearer",
		"expires_in":   s.ExpiresIn,
		"scope":        "read:bookings read:inventory write:inventory",
	}
	if s.PropertiesCount > 0 {
		resp["properties_count"] = s.PropertiesCount
	}
	if s.RotateRefresh {
		resp["refresh_token"] = fmt.Sprintf("refresh-%d", s.issued)
	}
	writeJSON(w, resp)
}

func (s *Server) property(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.Properties[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"success":false,"error":"property not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"success": true, "data": p})
}

func (s *Server) rooms(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.Properties[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"success":false,"error":"property not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"success": true, "data": p.Rooms})
}

func (s *Server) calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("startDate"), q.Get("endDate")

	s.mu.Lock()
	var out []provider.CalendarEntry
	for _, e := range s.Calendar[q.Get("propertyId")] {
		if e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true, "data": out})
}

func (s *Server) bookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("arrivalFrom"), q.Get("arrivalTo")

	s.mu.Lock()
	var out []provider.Booking
	for _, b := range s.Bookings[q.Get("propertyId")] {
		if b.Arrival >= from && b.Arrival <= to {
			out = append(out, b)
		}
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true, "data": out})
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	var changes []provider.CalendarChange
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		http.Error(w, `{"success":false,"error":"bad body"}`, http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.Pushed = append(s.Pushed, changes)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true, "data": map[string]int{"modified": len(changes)}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
