package session

import (
	"context"
	"encoding/json"
	"net/http"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// publishEvent only logs delivery failures.
func (s *Server) publishEvent(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), eventType, payload); err != nil {
		s.logger.Warn("publish event failed", "type", eventType, "error", err)
	}
}

func (s *Server) publishState(ctx context.Context) {
	s.publishEvent(ctx, EventPlaylistUpdated, s.State())
}
