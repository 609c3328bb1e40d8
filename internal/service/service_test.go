package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/psds-microservice/webrtc-session-service/internal/config"
	"github.com/psds-microservice/webrtc-session-service/internal/model"
)

const testSchema = `
CREATE TABLE call_sessions (
	id text PRIMARY KEY,
	room_id text NOT NULL UNIQUE,
	session_token text NOT NULL,
	status text NOT NULL DEFAULT 'active',
	created_by text,
	ice_restart_count integer NOT NULL DEFAULT 0,
	last_activity datetime NOT NULL,
	created_at datetime,
	updated_at datetime
);
CREATE TABLE session_participants (
	id text PRIMARY KEY,
	session_id text NOT NULL,
	user_id text NOT NULL,
	user_name text NOT NULL,
	user_type text NOT NULL,
	joined_at datetime NOT NULL
);
CREATE TABLE call_connections (
	id text PRIMARY KEY,
	session_id text NOT NULL,
	user_id text NOT NULL,
	user_name text NOT NULL,
	user_type text NOT NULL,
	connection_state text NOT NULL DEFAULT 'connecting',
	ice_state text,
	signal_data text,
	last_seen datetime NOT NULL,
	created_at datetime,
	updated_at datetime,
	UNIQUE (session_id, user_id)
);
`

// newTestDB opens an isolated in-memory SQLite database with the service
// schema. The schema mirrors database/migrations without PostgreSQL-only
// bits (uuid defaults, FKs).
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Exec(testSchema).Error)
	return db
}

func newTestConfig() *config.Config {
	cfg := &config.Config{ActiveWindow: time.Hour}
	return cfg
}

func newTestServices(t *testing.T) (*SessionService, *ConnectionService, *RecoveryService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := newTestConfig()
	log := zap.NewNop()
	sessions := NewSessionService(db, cfg, log)
	connections := NewConnectionService(db, sessions, log)
	recovery := NewRecoveryService(db, cfg, log)
	return sessions, connections, recovery, db
}

func timeHoursAgo(h int) time.Time {
	return time.Now().UTC().Add(-time.Duration(h) * time.Hour)
}

// setLastActivity rewinds a session's liveness clock for window tests.
func setLastActivity(t *testing.T, db *gorm.DB, sessionID string, at time.Time) {
	t.Helper()
	err := db.Model(&model.CallSession{}).Where("id = ?", sessionID).
		UpdateColumn("last_activity", at).Error
	require.NoError(t, err)
}
