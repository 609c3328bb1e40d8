package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/psds-microservice/webrtc-session-service/internal/errs"
	"github.com/psds-microservice/webrtc-session-service/internal/model"
	"github.com/psds-microservice/webrtc-session-service/internal/service"
)

// SessionHandler handles the REST API for call sessions and connections.
type SessionHandler struct {
	sessions    service.SessionRegistry
	connections service.ConnectionTracker
	hub         *service.SignalHub
	log         *zap.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions service.SessionRegistry, connections service.ConnectionTracker, hub *service.SignalHub, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, connections: connections, hub: hub, log: log}
}

// JoinSession godoc
// POST /sessions
// Creates the session for the room or joins the existing one, then registers
// the caller's connection. Two store operations, not one transaction.
func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req model.JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.sessions.CreateOrJoin(req.RoomID, req.UserID, req.UserName, req.UserType)
	if err != nil {
		h.log.Error("create or join failed", zap.String("room_id", req.RoomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to join session"})
		return
	}
	conn, err := h.connections.Upsert(sess.ID, req.UserID, req.UserName, req.UserType)
	if err != nil {
		h.log.Error("connection upsert failed", zap.String("session_id", sess.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to register connection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"session":    sess,
		"connection": conn,
	}})
}

// GetSession godoc
// GET /sessions?roomId= | ?sessionId=
func (h *SessionHandler) GetSession(c *gin.Context) {
	roomID := c.Query("roomId")
	sessionID := c.Query("sessionId")
	if roomID == "" && sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "roomId or sessionId required"})
		return
	}
	view, err := h.sessions.Get(roomID, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
			return
		}
		h.log.Error("get session failed", zap.String("room_id", roomID), zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to get session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// UpdateConnection godoc
// PATCH /sessions
// Partial update of the caller's connection record; always bumps liveness.
func (h *SessionHandler) UpdateConnection(c *gin.Context) {
	var req model.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "sessionId and userId required", "message": err.Error()})
		return
	}
	conn, err := h.connections.Update(req.SessionID, req.UserID, service.ConnectionUpdate{
		ConnectionState: req.ConnectionState,
		IceState:        req.IceState,
		SignalData:      req.SignalData,
	})
	if err != nil {
		if errors.Is(err, errs.ErrConnectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "connection not found"})
			return
		}
		h.log.Error("connection update failed",
			zap.String("session_id", req.SessionID), zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to update connection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": conn})
}

// EndSession godoc
// DELETE /sessions?sessionId=&userId=
// With userId: ends that connection; the session ends when the last one
// does. Without userId: full teardown of the session and every connection.
func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID := c.Query("sessionId")
	userID := c.Query("userId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "sessionId required"})
		return
	}

	if userID != "" {
		if err := h.connections.End(sessionID, userID); err != nil {
			if errors.Is(err, errs.ErrConnectionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "connection not found"})
				return
			}
			h.log.Error("end connection failed",
				zap.String("session_id", sessionID), zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to end connection"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session ended successfully"})
		return
	}

	// Bulk teardown: resolve the room first so signaling peers get kicked too.
	view, err := h.sessions.Get("", sessionID)
	if err != nil && !errors.Is(err, errs.ErrSessionNotFound) {
		h.log.Error("get session failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to end session"})
		return
	}
	if err := h.connections.EndAll(sessionID); err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
			return
		}
		h.log.Error("end session failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to end session"})
		return
	}
	if h.hub != nil && view != nil {
		h.hub.CloseRoom(view.RoomID)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session ended successfully"})
}
