package service

import "github.com/psds-microservice/webrtc-session-service/internal/model"

// SessionRegistry is the session-lifecycle dependency of HTTP handlers.
type SessionRegistry interface {
	CreateOrJoin(roomID, userID, userName, userType string) (*model.Session, error)
	Get(roomID, sessionID string) (*model.SessionView, error)
	UpdateActivity(sessionID string) error
	End(sessionID string) error
}

// ConnectionTracker is the per-participant connection dependency of handlers.
type ConnectionTracker interface {
	Upsert(sessionID, userID, userName, userType string) (*model.Connection, error)
	Update(sessionID, userID string, upd ConnectionUpdate) (*model.Connection, error)
	End(sessionID, userID string) error
	EndAll(sessionID string) error
	Touch(sessionID, userID string) error
}

// RecoveryResolver decides rejoin eligibility for handlers.
type RecoveryResolver interface {
	Resolve(roomID, userID string) (*model.RecoveryResult, error)
}
