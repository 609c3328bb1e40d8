package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psds-microservice/webrtc-session-service/internal/handler"
	"github.com/psds-microservice/webrtc-session-service/pkg/constants"
)

// New builds the HTTP router.
func New(
	rooms *handler.RoomHandler,
	sessions *handler.SessionHandler,
	recovery *handler.RecoveryHandler,
	signalWS *handler.SignalWSHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)
	r.GET(constants.PathMetrics, gin.WrapH(promhttp.Handler()))

	// Room allocation
	r.POST("/rooms", rooms.CreateRoom)
	r.GET("/rooms", rooms.GetRoom)

	// Session / connection lifecycle
	sess := r.Group("/sessions")
	{
		sess.POST("", sessions.JoinSession)
		sess.GET("", sessions.GetSession)
		sess.PATCH("", sessions.UpdateConnection)
		sess.DELETE("", sessions.EndSession)
	}

	// Recovery check
	r.POST("/recovery", recovery.CheckRecovery)

	// WebSocket: /ws/signal/:room_id/:user_id
	r.GET("/ws/signal/:room_id/:user_id", signalWS.ServeWS)

	return r
}
