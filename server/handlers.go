package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulsechat/pulsechat"
	"github.com/pulsechat/pulsechat/auth"
	"github.com/pulsechat/pulsechat/event"
	"github.com/pulsechat/pulsechat/store"
)

// maxMessageChars bounds incoming user messages.
const maxMessageChars = 4096

const healthCheckTimeout = 5 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for name, hc := range s.checks {
		if err := hc.HealthCheck(ctx); err != nil {
			s.requestLogger(r).Warn("health check failed", "dependency", name, "error", err)
			resp[name] = "unavailable"
			resp["status"] = "degraded"
		} else {
			resp[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New Conversation"
	}

	conv, err := s.store.CreateConversation(r.Context(), userID, title)
	if err != nil {
		s.requestLogger(r).Error("creating conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	convs, err := s.store.Conversations(r.Context(), userID)
	if err != nil {
		s.requestLogger(r).Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	conversationID := mux.Vars(r)["id"]

	msgs, err := s.store.Messages(r.Context(), conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.requestLogger(r).Error("listing messages", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []store.StoredMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type chatMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// handleChatMessage validates and saves the user turn, runs the agent, and
// relays its event stream to the client as SSE.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	switch {
	case req.ConversationID == "":
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	case message == "":
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	case len(message) > maxMessageChars:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("message exceeds %d characters", maxMessageChars))
		return
	}

	if _, err := s.store.Conversation(r.Context(), req.ConversationID, userID); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.requestLogger(r).Error("checking conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	log := s.requestLogger(r).With("conversation_id", req.ConversationID)

	// The user turn is saved before the loop starts so it survives even
	// if the stream is cut short.
	if _, err := s.store.SaveMessage(r.Context(), req.ConversationID, userID, pulsechat.RoleUser, message); err != nil {
		log.Error("saving user message", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.agent.Process(r.Context(), message, req.ConversationID, userID, s.agentOpts...)

	count := 0
	for e := range events {
		if err := writeSSE(w, flusher, e); err != nil {
			log.Warn("client disconnected", "error", err, "events_sent", count)
			// Drain so the loop observes cancellation and finishes.
			for range events {
			}
			return
		}
		count++
	}
	log.Info("stream completed", "events_sent", count)
}

// writeSSE writes one event in SSE wire format: event: KIND\ndata: {json}\n\n
func writeSSE(w http.ResponseWriter, flusher http.Flusher, e event.Event) error {
	data, err := json.Marshal(e.Data())
	if err != nil {
		return fmt.Errorf("serializing event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	flusher.Flush()
	return nil
}
