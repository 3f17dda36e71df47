// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-process fake Shraga backend for tests.
//
// The server keeps flows, history and UI configuration in memory, records
// every request, and lets tests script flow-run responses:
//
//	srv := apitest.New(t)
//	srv.SetFlows(model.Flow{ID: "search"})
//	srv.SetRun(apitest.Reply("hello", true))
//	client := api.NewClient(srv.URL, nil)
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/model"
)

// RunHandler answers a decoded flow-run request.
type RunHandler func(w http.ResponseWriter, r *http.Request, req api.RunRequest)

// Server is a fake backend.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	flows    []model.Flow
	history  []model.SessionRecord
	configs  model.UIConfig
	user     model.User
	stats    api.Statistics
	run      RunHandler
	failures map[string]failure
	required string

	runs     []api.RunRequest
	feedback []api.FeedbackRequest
	deleted  []string
	auth     []string
	calls    map[string]int
}

type failure struct {
	status int
	body   string
}

// New starts a server that is closed when the test ends. Flow runs echo
// the question until SetRun is called.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		failures: make(map[string]failure),
		calls:    make(map[string]int),
		run:      Echo(),
		user:     model.User{DisplayName: "tester"},
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/api", func(r chi.Router) {
		r.Get("/history/", s.handleListHistory)
		r.Post("/history/feedback", s.handleFeedback)
		r.Delete("/history/{chatID}", s.handleDeleteHistory)
		r.Get("/flows/", s.handleListFlows)
		r.Post("/flows/run/", s.handleRun)
		r.Get("/ui/configs", s.handleConfigs)
		r.Get("/whoami", s.handleWhoAmI)
		r.Get("/analytics/chat-history", s.handleListHistory)
		r.Post("/analytics/", s.handleStatistics)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// =============================================================================
// SETUP
// =============================================================================

// SetFlows replaces the flow catalog.
func (s *Server) SetFlows(flows ...model.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = flows
}

// SetHistory replaces the persisted sessions.
func (s *Server) SetHistory(records ...model.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = records
}

// AddHistory appends a persisted session.
func (s *Server) AddHistory(record model.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, record)
}

// SetConfigs replaces the UI configuration.
func (s *Server) SetConfigs(cfg model.UIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = cfg
}

// SetUser replaces the whoami answer.
func (s *Server) SetUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// SetStatistics replaces the analytics summary.
func (s *Server) SetStatistics(stats api.Statistics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// SetRun replaces the flow-run handler.
func (s *Server) SetRun(h RunHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = h
}

// Fail makes every request to path answer status with body. A zero
// status clears the failure.
func (s *Server) Fail(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = failure{status: status, body: body}
}

// RequireAuth rejects requests whose Authorization differs from cred.
func (s *Server) RequireAuth(cred string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.required = cred
}

// =============================================================================
// INSPECTION
// =============================================================================

// Runs returns the flow-run requests received.
func (s *Server) Runs() []api.RunRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.RunRequest(nil), s.runs...)
}

// Feedback returns the feedback submissions received.
func (s *Server) Feedback() []api.FeedbackRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.FeedbackRequest(nil), s.feedback...)
}

// Deleted returns the chat ids deleted.
func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Authorizations returns the Authorization header of every request.
func (s *Server) Authorizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...)
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		required := s.required
		f, failing := s.failures[r.URL.Path]
		s.mu.Unlock()

		if required != "" && r.Header.Get("Authorization") != required {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		if failing {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	records := append([]model.SessionRecord{}, s.history...)
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chatID")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	kept := s.history[:0]
	for _, rec := range s.history {
		if rec.SessionID() != id {
			kept = append(kept, rec)
		}
	}
	s.history = kept
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req api.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	s.feedback = append(s.feedback, req)
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	flows := append([]model.Flow{}, s.flows...)
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, flows)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req api.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	s.runs = append(s.runs, req)
	h := s.run
	s.mu.Unlock()
	h(w, r, req)
}

func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.configs
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.user
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, u)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, stats)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
