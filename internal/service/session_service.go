package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psds-microservice/webrtc-session-service/internal/config"
	"github.com/psds-microservice/webrtc-session-service/internal/errs"
	"github.com/psds-microservice/webrtc-session-service/internal/metrics"
	"github.com/psds-microservice/webrtc-session-service/internal/model"
	"github.com/psds-microservice/webrtc-session-service/internal/room"
)

// SessionService manages call session lifecycle (one session per room).
type SessionService struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.Logger
}

// NewSessionService creates a session service.
func NewSessionService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *SessionService {
	return &SessionService{db: db, cfg: cfg, log: log}
}

// CreateOrJoin creates the session for roomID or joins the existing one.
// The insert-or-update is a single statement keyed on the room_id unique
// index, so two concurrent first joiners cannot produce two rows. Every call
// appends a participant row; rejoins by the same user append again (the
// participant table is join history, connections are deduped separately).
func (s *SessionService) CreateOrJoin(roomID, userID, userName, userType string) (*model.Session, error) {
	if roomID == "" || userID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	now := time.Now().UTC()
	ent := &model.CallSession{
		ID:           uuid.New().String(),
		RoomID:       roomID,
		SessionToken: room.GenerateSessionToken(),
		Status:       model.SessionStatusActive,
		CreatedBy:    userID,
		LastActivity: now,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":        model.SessionStatusActive,
			"last_activity": now,
			"updated_at":    now,
		}),
	}).Create(ent).Error
	if err != nil {
		return nil, err
	}

	// On conflict the generated id above is discarded; reload the real row.
	var row model.CallSession
	if err := s.db.Where("room_id = ?", roomID).First(&row).Error; err != nil {
		return nil, err
	}

	part := &model.SessionParticipant{
		ID:        uuid.New().String(),
		SessionID: row.ID,
		UserID:    userID,
		UserName:  userName,
		UserType:  userType,
		JoinedAt:  now,
	}
	if err := s.db.Create(part).Error; err != nil {
		return nil, err
	}
	metrics.SessionJoins.Inc()

	if err := s.db.Preload("Participants", participantOrder).Where("id = ?", row.ID).First(&row).Error; err != nil {
		return nil, err
	}
	return entityToSession(&row), nil
}

// Get returns a session by room id or durable id, with derived liveness
// fields. Exactly one selector is expected; room id wins when both are set.
func (s *SessionService) Get(roomID, sessionID string) (*model.SessionView, error) {
	if roomID == "" && sessionID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	q := s.db.Preload("Participants", participantOrder).Preload("Connections")
	if roomID != "" {
		q = q.Where("room_id = ?", roomID)
	} else {
		q = q.Where("id = ?", sessionID)
	}
	var ent model.CallSession
	if err := q.First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}

	active := 0
	for _, c := range ent.Connections {
		if c.ConnectionState == model.ConnStateConnected || c.ConnectionState == model.ConnStateConnecting {
			active++
		}
	}
	return &model.SessionView{
		Session:           *entityToSession(&ent),
		IsActive:          time.Since(ent.LastActivity) < s.cfg.ActiveWindow,
		ActiveConnections: active,
	}, nil
}

// UpdateActivity bumps the session liveness clock. Called after every
// connection mutation; the two writes are separate statements, so a crash in
// between leaves last_activity briefly stale (coarse window absorbs it).
func (s *SessionService) UpdateActivity(sessionID string) error {
	now := time.Now().UTC()
	res := s.db.Model(&model.CallSession{}).Where("id = ?", sessionID).Updates(map[string]interface{}{
		"last_activity": now,
		"updated_at":    now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// End marks the session ended. Ending an already-ended session is a no-op
// success; a missing session is ErrSessionNotFound.
func (s *SessionService) End(sessionID string) error {
	now := time.Now().UTC()
	res := s.db.Model(&model.CallSession{}).Where("id = ?", sessionID).Updates(map[string]interface{}{
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
	s.log.Info("session ended", zap.String("session_id", sessionID))
	return nil
}

func participantOrder(db *gorm.DB) *gorm.DB {
	return db.Order("session_participants.joined_at ASC")
}

func entityToSession(ent *model.CallSession) *model.Session {
	sess := &model.Session{
		ID:              ent.ID,
		RoomID:          ent.RoomID,
		SessionToken:    ent.SessionToken,
		Status:          ent.Status,
		CreatedBy:       ent.CreatedBy,
		IceRestartCount: ent.IceRestartCount,
		LastActivity:    ent.LastActivity,
		CreatedAt:       ent.CreatedAt,
	}
	for _, p := range ent.Participants {
		sess.Participants = append(sess.Participants, model.Participant{
			UserID:   p.UserID,
			UserName: p.UserName,
			UserType: p.UserType,
			JoinedAt: p.JoinedAt,
		})
	}
	return sess
}
