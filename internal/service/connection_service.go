package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psds-microservice/webrtc-session-service/internal/errs"
	"github.com/psds-microservice/webrtc-session-service/internal/metrics"
	"github.com/psds-microservice/webrtc-session-service/internal/model"
)

// IceStateRestarting triggers the session-level restart counter bump.
const IceStateRestarting = "restarting"

// ConnectionUpdate carries the optional fields of a partial connection
// update. Nil means "leave unchanged".
type ConnectionUpdate struct {
	ConnectionState *string
	IceState        *string
	SignalData      *string
}

// ConnectionService tracks one connection record per (session, user) pair.
type ConnectionService struct {
	db       *gorm.DB
	sessions *SessionService
	log      *zap.Logger
}

// NewConnectionService creates a connection service.
func NewConnectionService(db *gorm.DB, sessions *SessionService, log *zap.Logger) *ConnectionService {
	return &ConnectionService{db: db, sessions: sessions, log: log}
}

// Upsert registers a participant connection, or resets the existing one for
// this (session, user) pair back to "connecting". A rejoin always
// re-negotiates, so prior state is irrelevant; last signal_data is kept.
func (c *ConnectionService) Upsert(sessionID, userID, userName, userType string) (*model.Connection, error) {
	if sessionID == "" || userID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	now := time.Now().UTC()
	ent := &model.CallConnection{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		UserID:          userID,
		UserName:        userName,
		UserType:        userType,
		ConnectionState: model.ConnStateConnecting,
		LastSeen:        now,
	}
	err := c.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"connection_state": model.ConnStateConnecting,
			"user_name":        userName,
			"user_type":        userType,
			"last_seen":        now,
			"updated_at":       now,
		}),
	}).Create(ent).Error
	if err != nil {
		return nil, err
	}
	metrics.ConnectionUpserts.Inc()
	return c.get(sessionID, userID)
}

// Update applies a partial update to the pair's connection record and bumps
// both liveness clocks. The session-activity write is a second, separate
// statement; if it finds the session gone that is benign, not an error.
func (c *ConnectionService) Update(sessionID, userID string, upd ConnectionUpdate) (*model.Connection, error) {
	if sessionID == "" || userID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	now := time.Now().UTC()
	fields := map[string]interface{}{
		"last_seen":  now,
		"updated_at": now,
	}
	if upd.ConnectionState != nil {
		fields["connection_state"] = *upd.ConnectionState
	}
	if upd.IceState != nil {
		fields["ice_state"] = *upd.IceState
	}
	if upd.SignalData != nil {
		fields["signal_data"] = *upd.SignalData
	}
	res := c.db.Model(&model.CallConnection{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errs.ErrConnectionNotFound
	}

	if upd.IceState != nil && *upd.IceState == IceStateRestarting {
		if err := c.db.Model(&model.CallSession{}).Where("id = ?", sessionID).
			UpdateColumn("ice_restart_count", gorm.Expr("ice_restart_count + 1")).Error; err != nil {
			c.log.Warn("ice restart count bump failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	if err := c.sessions.UpdateActivity(sessionID); err != nil && !errors.Is(err, errs.ErrSessionNotFound) {
		c.log.Warn("session activity update failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return c.get(sessionID, userID)
}

// End marks the pair's connection ended and, when it was the last non-ended
// connection of the session, ends the session too. The cascade is one
// conditional UPDATE so concurrent leavers cannot both skip it.
func (c *ConnectionService) End(sessionID, userID string) error {
	if sessionID == "" || userID == "" {
		return errs.ErrMissingIdentifier
	}
	now := time.Now().UTC()
	res := c.db.Model(&model.CallConnection{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Updates(map[string]interface{}{
			"connection_state": model.ConnStateEnded,
			"last_seen":        now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrConnectionNotFound
	}

	cascade := c.db.Exec(`
		UPDATE call_sessions SET status = ?, last_activity = ?, updated_at = ?
		WHERE id = ? AND status <> ?
		AND NOT EXISTS (
			SELECT 1 FROM call_connections
			WHERE session_id = call_sessions.id AND connection_state <> ?
		)`,
		model.SessionStatusEnded, now, now, sessionID, model.SessionStatusEnded, model.ConnStateEnded)
	if cascade.Error != nil {
		return cascade.Error
	}
	if cascade.RowsAffected > 0 {
		c.log.Info("session ended, last connection closed",
			zap.String("session_id", sessionID), zap.String("user_id", userID))
		return nil
	}
	if err := c.sessions.UpdateActivity(sessionID); err != nil && !errors.Is(err, errs.ErrSessionNotFound) {
		c.log.Warn("session activity update failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return nil
}

// EndAll is the bulk teardown path (host hang-up): the session and every one
// of its connections are marked ended in one sweep, bypassing the cascade.
func (c *ConnectionService) EndAll(sessionID string) error {
	if sessionID == "" {
		return errs.ErrMissingIdentifier
	}
	now := time.Now().UTC()
	res := c.db.Model(&model.CallSession{}).Where("id = ?", sessionID).Updates(map[string]interface{}{
		"status":        model.SessionStatusEnded,
		"last_activity": now,
		"updated_at":    now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	if err := c.db.Model(&model.CallConnection{}).Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"connection_state": model.ConnStateEnded,
			"last_seen":        now,
			"updated_at":       now,
		}).Error; err != nil {
		return err
	}
	c.log.Info("session torn down", zap.String("session_id", sessionID))
	return nil
}

// Touch refreshes last_seen without changing any reported state. Used by the
// signaling relay on join.
func (c *ConnectionService) Touch(sessionID, userID string) error {
	_, err := c.Update(sessionID, userID, ConnectionUpdate{})
	return err
}

func (c *ConnectionService) get(sessionID, userID string) (*model.Connection, error) {
	var ent model.CallConnection
	err := c.db.Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("last_seen DESC").First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrConnectionNotFound
		}
		return nil, err
	}
	return entityToConnection(&ent), nil
}

func entityToConnection(ent *model.CallConnection) *model.Connection {
	return &model.Connection{
		SessionID:       ent.SessionID,
		UserID:          ent.UserID,
		UserName:        ent.UserName,
		UserType:        ent.UserType,
		ConnectionState: ent.ConnectionState,
		IceState:        ent.IceState,
		SignalData:      ent.SignalData,
		LastSeen:        ent.LastSeen,
	}
}
