package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel shared by every session server.
const Channel = "broadcast"

// Event is the envelope written to websocket clients.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

type Server struct {
	hub           *Hub
	rdb           *redis.Client
	logger        *slog.Logger
	allowedOrigin string
	welcome       func() any
	upgrader      websocket.Upgrader
}

// NewServer wires a hub to an optional Redis client. With rdb nil, published events go
// straight to the local hub.
func NewServer(hub *Hub, rdb *redis.Client, logger *slog.Logger, allowedOrigin string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{hub: hub, rdb: rdb, logger: logger, allowedOrigin: allowedOrigin}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// SetWelcome sets the payload of the "welcome" event every new connection receives first.
// fn is called on the hub loop, so it must not publish.
func (s *Server) SetWelcome(fn func() any) {
	s.welcome = fn
}

func (s *Server) welcomeMessage() []byte {
	if s.welcome == nil {
		return nil
	}
	b, err := json.Marshal(Event{Type: "welcome", Payload: s.welcome(), At: time.Now().UTC()})
	if err != nil {
		s.logger.Warn("encode welcome failed", "error", err)
		return nil
	}
	return b
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.allowedOrigin != "" && origin == s.allowedOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// Publish encodes an event and delivers it to every connected client.
func (s *Server) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	if s.rdb == nil {
		s.hub.Broadcast(ctx, data)
		return nil
	}
	if err := s.rdb.Publish(ctx, Channel, string(data)).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// RunRedisSubscriber relays messages from the Redis channel into the hub until ctx is done.
// It returns immediately when no Redis client is configured.
func (s *Server) RunRedisSubscriber(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	sub := s.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.hub.Broadcast(ctx, []byte(msg.Payload))
		}
	}
}

// HandleWS upgrades the request and registers the connection with the hub.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := newClient(s.hub, conn, s.welcomeMessage)
	if !s.hub.add(client) {
		_ = conn.Close()
		return
	}
	s.logger.Debug("ws client connected", "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}
