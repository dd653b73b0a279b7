package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hrag/internal/agent"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Degraded  bool   `json:"degraded,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.newSession == nil {
		jsonError(w, "chat is not configured", http.StatusServiceUnavailable)
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	id, session := s.session(req.SessionID)
	if session == nil {
		jsonError(w, "unknown session_id", http.StatusNotFound)
		return
	}
	ctx := r.Context()
	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}
	reply, err := session.Ask(ctx, req.Message)
	if err != nil {
		s.log.Warn("Chat turn failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusOK, chatResponse{SessionID: id, Reply: agent.DegradedReply(err), Degraded: true})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{SessionID: id, Reply: reply})
}

func (s *Server) handleEndChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		jsonError(w, "unknown session_id", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session returns the conversation for id, starting one when id is empty.
// Expired sessions are dropped and reported as unknown.
func (s *Server) session(id string) (string, Asker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictExpired(now)
	if id == "" {
		for len(s.sessions) >= s.maxSessions {
			s.evictOldest()
		}
		id = uuid.NewString()
		cs := &chatSession{asker: s.newSession(), lastUsed: now}
		s.sessions[id] = cs
		return id, cs.asker
	}
	cs, ok := s.sessions[id]
	if !ok {
		return id, nil
	}
	cs.lastUsed = now
	return id, cs.asker
}

func (s *Server) evictExpired(now time.Time) {
	for id, cs := range s.sessions {
		if now.Sub(cs.lastUsed) > s.sessionTTL {
			delete(s.sessions, id)
			s.log.Debug("Chat session expired", "session_id", id)
		}
	}
}

func (s *Server) evictOldest() {
	var oldest string
	var at time.Time
	for id, cs := range s.sessions {
		if oldest == "" || cs.lastUsed.Before(at) {
			oldest, at = id, cs.lastUsed
		}
	}
	delete(s.sessions, oldest)
	s.log.Debug("Chat session evicted", "session_id", oldest)
}
