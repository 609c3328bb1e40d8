package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/psds-microservice/webrtc-session-service/internal/errs"
	"github.com/psds-microservice/webrtc-session-service/internal/model"
	"github.com/psds-microservice/webrtc-session-service/internal/service"
)

// SignalWSHandler handles WebSocket connections for /ws/signal/:room_id/:user_id.
type SignalWSHandler struct {
	hub         *service.SignalHub
	sessions    service.SessionRegistry
	connections service.ConnectionTracker
	log         *zap.Logger
}

// NewSignalWSHandler creates the signaling WebSocket handler.
func NewSignalWSHandler(hub *service.SignalHub, sessions service.SessionRegistry, connections service.ConnectionTracker, log *zap.Logger) *SignalWSHandler {
	return &SignalWSHandler{hub: hub, sessions: sessions, connections: connections, log: log}
}

// ServeWS upgrades the request to WebSocket and runs the relay loop.
// Path: /ws/signal/:room_id/:user_id
// Frames are forwarded verbatim to the other peers of the room; the payload
// is opaque here. Durable connection state is still reported via PATCH.
func (h *SignalWSHandler) ServeWS(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := c.Param("user_id")
	if roomID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "room_id and user_id required"})
		return
	}

	view, err := h.sessions.Get(roomID, "")
	if err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
			return
		}
		h.log.Error("get session failed", zap.String("room_id", roomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to get session"})
		return
	}
	if view.Status == model.SessionStatusEnded {
		c.JSON(http.StatusGone, gin.H{"success": false, "error": "session already ended"})
		return
	}

	conn, err := h.hub.Upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	peer, cleanup := h.hub.Register(roomID, userID, conn)
	defer cleanup()

	// Joining the relay counts as liveness; a peer that never POSTed its
	// connection yet is fine, the record appears on the next join call.
	if err := h.connections.Touch(view.ID, userID); err != nil && !errors.Is(err, errs.ErrConnectionNotFound) {
		h.log.Warn("connection touch failed", zap.String("session_id", view.ID), zap.Error(err))
	}

	go h.writePump(peer)
	h.readPump(peer)

	// The socket dropping is the disconnect signal for this participant.
	state := model.ConnStateDisconnected
	if _, err := h.connections.Update(view.ID, userID, service.ConnectionUpdate{ConnectionState: &state}); err != nil && !errors.Is(err, errs.ErrConnectionNotFound) {
		h.log.Warn("disconnect state update failed", zap.String("session_id", view.ID), zap.Error(err))
	}
}

func (h *SignalWSHandler) readPump(p *service.SignalPeer) {
	defer func() {
		_ = p.Conn.Close()
	}()
	for {
		_, data, err := p.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("read error", zap.Error(err))
			}
			break
		}
		h.hub.Relay(p.RoomID, p.UserID, data)
	}
}

func (h *SignalWSHandler) writePump(p *service.SignalPeer) {
	defer func() {
		_ = p.Conn.Close()
	}()
	for data := range p.Send {
		if err := p.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
}
