package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gnarhub-backend/internal/notify"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string         `json:"type"`
	EventID   string         `json:"event_id,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections and pushes notification events to connected users
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsConn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsConn),
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	}

	h.connections[userID] = &wsConn{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a WebSocket connection for a user. A connection that has since
// been replaced by a newer one is left alone.
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.connections[userID]; exists && (conn == nil || c.conn == conn) {
		c.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	c, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.write(data); err != nil {
		h.Unregister(userID, c.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsConnected checks if a user has an open feed
func (h *WSHub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// CloseAll closes every connection, used on shutdown
func (h *WSHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, c := range h.connections {
		c.conn.Close()
		delete(h.connections, userID)
	}
}

func (h *WSHub) Name() string { return "websocket" }

// Deliver pushes evt to every connected recipient. Recipients without a feed are skipped.
func (h *WSHub) Deliver(_ context.Context, evt notify.Event) error {
	message := WSMessage{
		Type:      string(evt.Kind),
		EventID:   evt.ID,
		Timestamp: evt.OccurredAt.UnixMilli(),
		SessionID: evt.SessionID,
		RequestID: evt.RequestID,
		Data:      evt.Payload,
	}

	var firstErr error
	for _, userID := range evt.Recipients {
		if !h.IsConnected(userID) {
			continue
		}
		if err := h.SendToUser(userID, message); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("event_id", evt.ID).Msg("Failed to push event")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
