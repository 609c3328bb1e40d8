package service

import "fmt"

// WSConfig holds the WebSocket URL base for responses.
type WSConfig struct {
	BaseURL string
}

// SignalURL returns the signaling WebSocket URL for a room and user
// (e.g. wss://host/ws/signal/roomID/userID).
func (c *WSConfig) SignalURL(roomID, userID string) string {
	if c == nil || c.BaseURL == "" {
		return fmt.Sprintf("/ws/signal/%s/%s", roomID, userID)
	}
	base := c.BaseURL
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return fmt.Sprintf("%s/ws/signal/%s/%s", base, roomID, userID)
}
