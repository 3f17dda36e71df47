// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jeranaias/shraga-tui/internal/api"
)

// Echo answers every question with its own text.
func Echo() RunHandler {
	return func(w http.ResponseWriter, r *http.Request, req api.RunRequest) {
		WriteJSON(w, http.StatusOK, api.RunResponse{ResponseText: req.Question})
	}
}

// Reply answers with a fixed text.
func Reply(text string, allowReply bool) RunHandler {
	return Respond(api.RunResponse{ResponseText: text, AllowReply: allowReply})
}

// Respond answers with resp.
func Respond(resp api.RunResponse) RunHandler {
	return func(w http.ResponseWriter, r *http.Request, req api.RunRequest) {
		WriteJSON(w, http.StatusOK, resp)
	}
}

// Error answers status with a JSON error body. An empty detail omits it.
func Error(status int, detail string, trace json.RawMessage) RunHandler {
	return func(w http.ResponseWriter, r *http.Request, req api.RunRequest) {
		body := map[string]any{}
		if detail != "" {
			body["detail"] = detail
		}
		if trace != nil {
			body["trace"] = trace
		}
		WriteJSON(w, status, body)
	}
}

// Raw answers status with a non-JSON body.
func Raw(status int, body string) RunHandler {
	return func(w http.ResponseWriter, r *http.Request, req api.RunRequest) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// Hijack drops the connection without answering.
func Hijack() RunHandler {
	return func(w http.ResponseWriter, r *http.Request, req api.RunRequest) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	}
}

// Gate blocks flow runs until Release is called, the client goes away or
// the test ends. Started receives the question of each run once it is
// blocked.
type Gate struct {
	Started chan string
	release chan RunHandler
	done    chan struct{}
}

// NewGate creates a gate that unblocks every pending run when t ends.
// Create it after the Server so it is released before the server closes.
func NewGate(t testing.TB) *Gate {
	g := &Gate{
		Started: make(chan string, 16),
		release: make(chan RunHandler, 16),
		done:    make(chan struct{}),
	}
	t.Cleanup(func() { close(g.done) })
	return g
}

// Handler returns the blocking run handler.
func (g *Gate) Handler() RunHandler {
	return func(w http.ResponseWriter, r *http.Request, req api.RunRequest) {
		g.Started <- req.Question
		select {
		case h := <-g.release:
			h(w, r, req)
		case <-r.Context().Done():
		case <-g.done:
		}
	}
}

// Release answers one blocked run with h.
func (g *Gate) Release(h RunHandler) {
	g.release <- h
}
