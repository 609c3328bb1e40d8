package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/webrtc-session-service/internal/model"
	"github.com/psds-microservice/webrtc-session-service/internal/room"
	"github.com/psds-microservice/webrtc-session-service/internal/service"
)

// RoomHandler allocates call room identifiers.
type RoomHandler struct {
	ws *service.WSConfig
}

// NewRoomHandler creates a room handler.
func NewRoomHandler(wsBaseURL string) *RoomHandler {
	return &RoomHandler{ws: &service.WSConfig{BaseURL: wsBaseURL}}
}

// CreateRoom godoc
// POST /rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req model.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request", "message": err.Error()})
		return
	}
	roomID := room.GenerateRoomID()
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": model.RoomResponse{
		RoomID:      roomID,
		DoctorID:    req.DoctorID,
		PatientID:   req.PatientID,
		DoctorName:  req.DoctorName,
		PatientName: req.PatientName,
		Status:      model.SessionStatusActive,
		SignalURL:   h.ws.SignalURL(roomID, req.DoctorID),
		CreatedAt:   time.Now().UTC(),
	}})
}

// GetRoom godoc
// GET /rooms?roomId=
// Stub: rooms carry no durable state of their own; the session endpoint is
// the source of truth once a call starts.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "roomId required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"roomId":       roomID,
		"status":       model.SessionStatusActive,
		"participants": []model.Participant{},
		"createdAt":    time.Now().UTC(),
	}})
}
