package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/realtime"
)

// writeDetail writes {"detail": msg}, the error shape plate clients read.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) publishEvent(ctx context.Context, eventType string, payload any) {
	if s.rdb == nil {
		return
	}

	body := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Warn("marshal event", "type", eventType, "error", err)
		return
	}

	if err := s.rdb.Publish(ctx, realtime.Channel, string(data)).Err(); err != nil {
		s.logger.Warn("publish event", "type", eventType, "error", err)
	}
}
