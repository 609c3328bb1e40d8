package service

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/psds-microservice/webrtc-session-service/internal/config"
	"github.com/psds-microservice/webrtc-session-service/internal/errs"
	"github.com/psds-microservice/webrtc-session-service/internal/metrics"
	"github.com/psds-microservice/webrtc-session-service/internal/model"
)

// RecoveryService decides whether a disconnected participant can rejoin a
// call and assembles the state the rejoining client needs.
type RecoveryService struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.Logger
}

// NewRecoveryService creates a recovery service.
func NewRecoveryService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *RecoveryService {
	return &RecoveryService{db: db, cfg: cfg, log: log}
}

// Resolve evaluates the recovery gate in order: session exists → session
// still live → user was in the session. A denial is a normal result with a
// contract reason string; clients poll this, so it is never an error.
//
// An explicitly ended session is reported as expired regardless of the
// liveness window: teardown is final.
func (r *RecoveryService) Resolve(roomID, userID string) (*model.RecoveryResult, error) {
	if roomID == "" || userID == "" {
		return nil, errs.ErrMissingIdentifier
	}

	var sess model.CallSession
	err := r.db.Preload("Participants", participantOrder).
		Where("room_id = ?", roomID).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.deny(model.RecoveryReasonSessionNotFound), nil
		}
		return nil, err
	}

	if sess.Status == model.SessionStatusEnded || time.Since(sess.LastActivity) >= r.cfg.ActiveWindow {
		return r.deny(model.RecoveryReasonSessionExpired), nil
	}

	// Most-recently-seen match wins if historical duplicates ever exist.
	var conn model.CallConnection
	err = r.db.Where("session_id = ? AND user_id = ?", sess.ID, userID).
		Order("last_seen DESC").First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.deny(model.RecoveryReasonUserNotFound), nil
		}
		return nil, err
	}

	var peerRows []model.CallConnection
	err = r.db.Where("session_id = ? AND user_id <> ? AND connection_state IN ?",
		sess.ID, userID, []string{model.ConnStateConnected, model.ConnStateConnecting}).
		Order("last_seen DESC").Find(&peerRows).Error
	if err != nil {
		return nil, err
	}
	peers := make([]model.PeerConnection, 0, len(peerRows))
	for _, p := range peerRows {
		peers = append(peers, model.PeerConnection{
			UserID:          p.UserID,
			UserName:        p.UserName,
			UserType:        p.UserType,
			ConnectionState: p.ConnectionState,
			LastSeen:        p.LastSeen,
		})
	}

	metrics.RecoveryChecks.WithLabelValues("recoverable").Inc()
	r.log.Debug("recovery resolved",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.Int("live_peers", len(peers)))

	dto := entityToSession(&sess)
	return &model.RecoveryResult{
		CanRecover: true,
		Session: &model.RecoverySession{
			ID:              dto.ID,
			RoomID:          dto.RoomID,
			Status:          dto.Status,
			Participants:    dto.Participants,
			IceRestartCount: dto.IceRestartCount,
		},
		UserConnection:   entityToConnection(&conn),
		OtherConnections: peers,
	}, nil
}

func (r *RecoveryService) deny(reason string) *model.RecoveryResult {
	metrics.RecoveryChecks.WithLabelValues("denied").Inc()
	return &model.RecoveryResult{CanRecover: false, Reason: reason}
}
