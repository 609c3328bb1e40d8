package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/psds-microservice/webrtc-session-service/internal/model"
	"github.com/psds-microservice/webrtc-session-service/internal/service"
)

// RecoveryHandler handles reconnection eligibility checks.
type RecoveryHandler struct {
	resolver service.RecoveryResolver
	log      *zap.Logger
}

// NewRecoveryHandler creates a recovery handler.
func NewRecoveryHandler(resolver service.RecoveryResolver, log *zap.Logger) *RecoveryHandler {
	return &RecoveryHandler{resolver: resolver, log: log}
}

// CheckRecovery godoc
// POST /recovery
// A denial is a 200 with canRecover=false; clients poll this in their
// reconnect loop, so it must never look like a server error.
func (h *RecoveryHandler) CheckRecovery(c *gin.Context) {
	var req model.RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "roomId and userId required", "message": err.Error()})
		return
	}
	result, err := h.resolver.Resolve(req.RoomID, req.UserID)
	if err != nil {
		h.log.Error("recovery check failed",
			zap.String("room_id", req.RoomID), zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to check recovery"})
		return
	}
	if !result.CanRecover {
		c.JSON(http.StatusOK, gin.H{"success": false, "canRecover": false, "reason": result.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "canRecover": true, "data": gin.H{
		"session":          result.Session,
		"userConnection":   result.UserConnection,
		"otherConnections": result.OtherConnections,
	}})
}
