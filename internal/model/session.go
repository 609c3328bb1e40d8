package model

import "time"

// Recovery denial reasons. These are contract strings polled by clients,
// not error messages; do not reword.
const (
	RecoveryReasonSessionNotFound = "Session not found"
	RecoveryReasonSessionExpired  = "Session expired"
	RecoveryReasonUserNotFound    = "User not found in session"
)

// Session is the API view of a call session (not GORM entity).
type Session struct {
	ID              string        `json:"id"`
	RoomID          string        `json:"roomId"`
	SessionToken    string        `json:"sessionToken"`
	Status          string        `json:"status"`
	CreatedBy       string        `json:"createdBy"`
	IceRestartCount int           `json:"iceRestartCount"`
	Participants    []Participant `json:"participants"`
	LastActivity    time.Time     `json:"lastActivity"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Participant is one join event in a session — API response DTO.
type Participant struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	UserType string    `json:"userType"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Connection is the API view of a participant connection.
type Connection struct {
	SessionID       string    `json:"sessionId"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	UserType        string    `json:"userType"`
	ConnectionState string    `json:"connectionState"`
	IceState        string    `json:"iceState,omitempty"`
	SignalData      string    `json:"signalData,omitempty"`
	LastSeen        time.Time `json:"lastSeen"`
}

// PeerConnection is the reduced roster entry handed to a recovering client.
// Signal data of peers is never exposed.
type PeerConnection struct {
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	UserType        string    `json:"userType"`
	ConnectionState string    `json:"connectionState"`
	LastSeen        time.Time `json:"lastSeen"`
}

// SessionView is Session plus derived liveness fields (never persisted).
type SessionView struct {
	Session
	IsActive          bool `json:"isActive"`
	ActiveConnections int  `json:"activeConnections"`
}

// RecoverySession is the session projection inside a positive recovery result.
type RecoverySession struct {
	ID              string        `json:"id"`
	RoomID          string        `json:"roomId"`
	Status          string        `json:"status"`
	Participants    []Participant `json:"participants"`
	IceRestartCount int           `json:"iceRestartCount"`
}

// RecoveryResult is the outcome of a recovery check. A denial is a normal
// value (CanRecover=false + Reason), never an error.
type RecoveryResult struct {
	CanRecover       bool             `json:"canRecover"`
	Reason           string           `json:"reason,omitempty"`
	Session          *RecoverySession `json:"session,omitempty"`
	UserConnection   *Connection      `json:"userConnection,omitempty"`
	OtherConnections []PeerConnection `json:"otherConnections,omitempty"`
}

// CreateRoomRequest is the request body for POST /rooms.
type CreateRoomRequest struct {
	DoctorID    string `json:"doctorId" binding:"required"`
	PatientID   string `json:"patientId" binding:"required"`
	DoctorName  string `json:"doctorName"`
	PatientName string `json:"patientName"`
}

// RoomResponse is the data payload for room endpoints.
type RoomResponse struct {
	RoomID      string    `json:"roomId"`
	DoctorID    string    `json:"doctorId,omitempty"`
	PatientID   string    `json:"patientId,omitempty"`
	DoctorName  string    `json:"doctorName,omitempty"`
	PatientName string    `json:"patientName,omitempty"`
	Status      string    `json:"status"`
	SignalURL   string    `json:"signalUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// JoinSessionRequest is the request body for POST /sessions.
type JoinSessionRequest struct {
	RoomID   string `json:"roomId" binding:"required"`
	UserID   string `json:"userId" binding:"required"`
	UserName string `json:"userName" binding:"required"`
	UserType string `json:"userType" binding:"required"`
}

// UpdateConnectionRequest is the request body for PATCH /sessions.
// Pointer fields distinguish "absent" from "set to empty".
type UpdateConnectionRequest struct {
	SessionID       string  `json:"sessionId" binding:"required"`
	UserID          string  `json:"userId" binding:"required"`
	ConnectionState *string `json:"connectionState,omitempty"`
	IceState        *string `json:"iceState,omitempty"`
	SignalData      *string `json:"signalData,omitempty"`
}

// RecoveryRequest is the request body for POST /recovery.
type RecoveryRequest struct {
	RoomID string `json:"roomId" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}
