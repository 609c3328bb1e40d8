package model

import "time"

// Connection states reported by call participants.
const (
	ConnStateConnecting   = "connecting"
	ConnStateConnected    = "connected"
	ConnStateDisconnected = "disconnected"
	ConnStateEnded        = "ended"
)

// Session statuses.
const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
)

// CallSession — сущность сессии звонка (GORM). One row per room, enforced by
// the unique index on room_id; all create-or-join traffic upserts on that key.
type CallSession struct {
	ID              string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RoomID          string    `gorm:"size:128;not null;uniqueIndex"`
	SessionToken    string    `gorm:"size:64;not null"`
	Status          string    `gorm:"size:20;not null;default:active"` // active, ended
	CreatedBy       string    `gorm:"size:64"`
	IceRestartCount int       `gorm:"not null;default:0"`
	LastActivity    time.Time `gorm:"column:last_activity;not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`

	Participants []SessionParticipant `gorm:"foreignKey:SessionID"`
	Connections  []CallConnection     `gorm:"foreignKey:SessionID"`
}

func (CallSession) TableName() string { return "call_sessions" }

// SessionParticipant — событие входа участника в сессию (GORM).
// Append-only: a user joining twice produces two rows, so the table doubles
// as join history. No uniqueness on (session_id, user_id) on purpose.
type SessionParticipant struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID string    `gorm:"type:uuid;not null;index"`
	UserID    string    `gorm:"size:64;not null;index"`
	UserName  string    `gorm:"size:128;not null"`
	UserType  string    `gorm:"size:32;not null"`
	JoinedAt  time.Time `gorm:"column:joined_at;not null"`
}

func (SessionParticipant) TableName() string { return "session_participants" }

// CallConnection — соединение участника в сессии (GORM). At most one row per
// (session_id, user_id), enforced by the compound unique index; rejoins upsert.
// Rows are never deleted, only moved to connection_state=ended.
type CallConnection struct {
	ID              string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_call_connections_session_user,priority:1"`
	UserID          string    `gorm:"size:64;not null;uniqueIndex:idx_call_connections_session_user,priority:2"`
	UserName        string    `gorm:"size:128;not null"`
	UserType        string    `gorm:"size:32;not null"`
	ConnectionState string    `gorm:"size:20;not null;default:connecting"` // connecting, connected, disconnected, ended
	IceState        string    `gorm:"size:64"`                             // opaque to this service
	SignalData      string    `gorm:"type:text"`                           // opaque offer/answer/candidate blob
	LastSeen        time.Time `gorm:"column:last_seen;not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (CallConnection) TableName() string { return "call_connections" }
