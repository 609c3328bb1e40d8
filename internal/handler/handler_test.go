package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/psds-microservice/webrtc-session-service/internal/config"
	"github.com/psds-microservice/webrtc-session-service/internal/handler"
	"github.com/psds-microservice/webrtc-session-service/internal/model"
	"github.com/psds-microservice/webrtc-session-service/internal/router"
	"github.com/psds-microservice/webrtc-session-service/internal/service"
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

type testAPI struct {
	srv *httptest.Server
	db  *gorm.DB
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Exec(testSchema).Error)

	cfg := &config.Config{ActiveWindow: time.Hour}
	log := zap.NewNop()
	hub := service.NewSignalHub(4096, 4096, 0, log)
	sessionSvc := service.NewSessionService(db, cfg, log)
	connectionSvc := service.NewConnectionService(db, sessionSvc, log)
	recoverySvc := service.NewRecoveryService(db, cfg, log)

	r := router.New(
		handler.NewRoomHandler(""),
		handler.NewSessionHandler(sessionSvc, connectionSvc, hub, log),
		handler.NewRecoveryHandler(recoverySvc, log),
		handler.NewSignalWSHandler(hub, sessionSvc, connectionSvc, log),
		handler.NewHealthHandler(),
	)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		_ = sqlDB.Close()
	})
	return &testAPI{srv: srv, db: db}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (a *testAPI) join(t *testing.T, roomID, userID, userName, userType string) map[string]interface{} {
	t.Helper()
	code, out := a.do(t, http.MethodPost, "/sessions", gin.H{
		"roomId": roomID, "userId": userID, "userName": userName, "userType": userType,
	})
	require.Equal(t, http.StatusOK, code)
	return out
}

func sessionID(t *testing.T, joinResp map[string]interface{}) string {
	t.Helper()
	data := joinResp["data"].(map[string]interface{})
	sess := data["session"].(map[string]interface{})
	return sess["id"].(string)
}

func (a *testAPI) rewindActivity(t *testing.T, sessionID string, age time.Duration) {
	t.Helper()
	err := a.db.Model(&model.CallSession{}).Where("id = ?", sessionID).
		UpdateColumn("last_activity", time.Now().UTC().Add(-age)).Error
	require.NoError(t, err)
}

func TestCreateRoom(t *testing.T) {
	api := newTestAPI(t)

	code, out := api.do(t, http.MethodPost, "/rooms", gin.H{
		"doctorId": "d1", "patientId": "p1", "doctorName": "Dr. Bob", "patientName": "Alice",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, out["success"])
	data := out["data"].(map[string]interface{})
	assert.Contains(t, data["roomId"], "room-")
	assert.Equal(t, "active", data["status"])

	code, _ = api.do(t, http.MethodPost, "/rooms", gin.H{"doctorId": "d1"})
	assert.Equal(t, http.StatusBadRequest, code, "patientId is required")
}

func TestGetRoom_RequiresRoomID(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodGet, "/rooms", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out := api.do(t, http.MethodGet, "/rooms?roomId=room-1", nil)
	require.Equal(t, http.StatusOK, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "room-1", data["roomId"])
	assert.Empty(t, data["participants"])
}

func TestJoinSession_CreatesSessionAndConnection(t *testing.T) {
	api := newTestAPI(t)

	out := api.join(t, "room-1", "u1", "Alice", "patient")
	data := out["data"].(map[string]interface{})
	sess := data["session"].(map[string]interface{})
	conn := data["connection"].(map[string]interface{})

	assert.Equal(t, "room-1", sess["roomId"])
	assert.Equal(t, "active", sess["status"])
	parts := sess["participants"].([]interface{})
	require.Len(t, parts, 1)
	assert.Equal(t, "u1", parts[0].(map[string]interface{})["userId"])
	assert.Equal(t, "connecting", conn["connectionState"])
}

func TestJoinSession_SecondUserSameRoom(t *testing.T) {
	api := newTestAPI(t)

	first := api.join(t, "room-1", "u1", "Alice", "patient")
	second := api.join(t, "room-1", "u2", "Dr. Bob", "doctor")

	require.Equal(t, sessionID(t, first), sessionID(t, second), "same session row reused")
	sess := second["data"].(map[string]interface{})["session"].(map[string]interface{})
	assert.Len(t, sess["participants"].([]interface{}), 2)

	code, out := api.do(t, http.MethodGet, "/sessions?roomId=room-1", nil)
	require.Equal(t, http.StatusOK, code)
	view := out["data"].(map[string]interface{})
	assert.Equal(t, float64(2), view["activeConnections"])
	assert.Equal(t, true, view["isActive"])
}

func TestGetSession_Validation(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodGet, "/sessions?roomId=room-unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateConnection(t *testing.T) {
	api := newTestAPI(t)
	sid := sessionID(t, api.join(t, "room-1", "u1", "Alice", "patient"))

	code, out := api.do(t, http.MethodPatch, "/sessions", gin.H{
		"sessionId": sid, "userId": "u1",
		"connectionState": "connected", "iceState": "completed",
	})
	require.Equal(t, http.StatusOK, code)
	conn := out["data"].(map[string]interface{})
	assert.Equal(t, "connected", conn["connectionState"])
	assert.Equal(t, "completed", conn["iceState"])

	code, _ = api.do(t, http.MethodPatch, "/sessions", gin.H{"sessionId": sid})
	assert.Equal(t, http.StatusBadRequest, code, "userId is required")

	code, _ = api.do(t, http.MethodPatch, "/sessions", gin.H{
		"sessionId": sid, "userId": "ghost", "connectionState": "connected",
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEndSession_PerConnectionCascade(t *testing.T) {
	api := newTestAPI(t)
	sid := sessionID(t, api.join(t, "room-1", "u1", "Alice", "patient"))
	api.join(t, "room-1", "u2", "Dr. Bob", "doctor")

	code, out := api.do(t, http.MethodDelete, "/sessions?sessionId="+sid+"&userId=u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Session ended successfully", out["message"])

	_, out = api.do(t, http.MethodGet, "/sessions?sessionId="+sid, nil)
	assert.Equal(t, "active", out["data"].(map[string]interface{})["status"])

	code, _ = api.do(t, http.MethodDelete, "/sessions?sessionId="+sid+"&userId=u2", nil)
	require.Equal(t, http.StatusOK, code)

	_, out = api.do(t, http.MethodGet, "/sessions?sessionId="+sid, nil)
	assert.Equal(t, "ended", out["data"].(map[string]interface{})["status"])
}

func TestEndSession_FullTeardown(t *testing.T) {
	api := newTestAPI(t)
	sid := sessionID(t, api.join(t, "room-1", "u1", "Alice", "patient"))
	api.join(t, "room-1", "u2", "Dr. Bob", "doctor")

	code, _ := api.do(t, http.MethodDelete, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, code, "sessionId is required")

	code, out := api.do(t, http.MethodDelete, "/sessions?sessionId="+sid, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Session ended successfully", out["message"])

	_, out = api.do(t, http.MethodGet, "/sessions?sessionId="+sid, nil)
	view := out["data"].(map[string]interface{})
	assert.Equal(t, "ended", view["status"])
	assert.Equal(t, float64(0), view["activeConnections"])

	// Teardown is final: recovery is denied for everyone in the room.
	_, out = api.do(t, http.MethodPost, "/recovery", gin.H{"roomId": "room-1", "userId": "u1"})
	assert.Equal(t, false, out["canRecover"])
	assert.Equal(t, "Session expired", out["reason"])
}

func TestRecovery_Flow(t *testing.T) {
	api := newTestAPI(t)
	sid := sessionID(t, api.join(t, "room-1", "u1", "Alice", "patient"))
	api.join(t, "room-1", "u2", "Dr. Bob", "doctor")
	_, _ = api.do(t, http.MethodPatch, "/sessions", gin.H{
		"sessionId": sid, "userId": "u2", "connectionState": "connected",
	})
	_, _ = api.do(t, http.MethodPatch, "/sessions", gin.H{
		"sessionId": sid, "userId": "u1", "connectionState": "disconnected",
	})
	api.rewindActivity(t, sid, 10*time.Minute)

	code, out := api.do(t, http.MethodPost, "/recovery", gin.H{"roomId": "room-1", "userId": "u1"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, out["canRecover"])
	data := out["data"].(map[string]interface{})
	userConn := data["userConnection"].(map[string]interface{})
	assert.Equal(t, "disconnected", userConn["connectionState"])
	others := data["otherConnections"].([]interface{})
	require.Len(t, others, 1)
	assert.Equal(t, "u2", others[0].(map[string]interface{})["userId"])
}

func TestRecovery_ExpiredWindow(t *testing.T) {
	api := newTestAPI(t)
	sid := sessionID(t, api.join(t, "room-1", "u1", "Alice", "patient"))
	api.rewindActivity(t, sid, 61*time.Minute)

	code, out := api.do(t, http.MethodPost, "/recovery", gin.H{"roomId": "room-1", "userId": "u1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, false, out["canRecover"])
	assert.Equal(t, "Session expired", out["reason"])
}

func TestRecovery_Validation(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodPost, "/recovery", gin.H{"roomId": "room-1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, out := api.do(t, http.MethodPost, "/recovery", gin.H{"roomId": "nope", "userId": "u1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Session not found", out["reason"])
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	code, out := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])

	code, out = api.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", out["status"])
}
