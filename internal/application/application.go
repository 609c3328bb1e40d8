package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/psds-microservice/webrtc-session-service/internal/config"
	"github.com/psds-microservice/webrtc-session-service/internal/database"
	"github.com/psds-microservice/webrtc-session-service/internal/handler"
	"github.com/psds-microservice/webrtc-session-service/internal/router"
	"github.com/psds-microservice/webrtc-session-service/internal/service"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg *config.Config
	srv *http.Server
	db  *gorm.DB
	hub *service.SignalHub
	log *zap.Logger
}

// NewAPI creates the API application: validates config, runs migrations,
// opens DB, builds router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}

	hub := service.NewSignalHub(cfg.WSReadBufferSize, cfg.WSWriteBufferSize, cfg.WSMaxMessageSize, logger)
	sessionSvc := service.NewSessionService(db, cfg, logger)
	connectionSvc := service.NewConnectionService(db, sessionSvc, logger)
	recoverySvc := service.NewRecoveryService(db, cfg, logger)

	rooms := handler.NewRoomHandler(cfg.WSBaseURL)
	sessions := handler.NewSessionHandler(sessionSvc, connectionSvc, hub, logger)
	recovery := handler.NewRecoveryHandler(recoverySvc, logger)
	signalWS := handler.NewSignalWSHandler(hub, sessionSvc, connectionSvc, logger)
	health := handler.NewHealthHandler()

	r := router.New(rooms, sessions, recovery, signalWS, health)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, hub: hub, log: logger}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled; then shuts
// down gracefully.
func (a *API) Run(ctx context.Context) error {
	addr := a.srv.Addr
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", addr)
	log.Printf("  Health:        %s/health", base)
	log.Printf("  Ready:         %s/ready", base)
	log.Printf("  Metrics:       %s/metrics", base)
	log.Printf("  Rooms:         %s/rooms", base)
	log.Printf("  Sessions:      %s/sessions", base)
	log.Printf("  Recovery:      %s/recovery", base)
	log.Printf("  WebSocket:     ws://%s:%s/ws/signal/:room_id/:user_id", host, a.cfg.HTTPPort)

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	_ = a.log.Sync()
	return nil
}
