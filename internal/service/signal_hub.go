package service

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/psds-microservice/webrtc-session-service/internal/metrics"
)

// SignalPeer represents a WebSocket connection of one call participant.
type SignalPeer struct {
	RoomID string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// SignalHub relays opaque signaling frames (offer/answer/candidate blobs)
// between participants of a room on this instance. Payloads are never
// inspected; durable state lives in the store, the hub is transport only.
type SignalHub struct {
	mu         sync.RWMutex
	peers      map[string]map[*SignalPeer]struct{} // roomID -> set of peers
	upgrader   websocket.Upgrader
	maxMsgSize int64
	log        *zap.Logger
}

// NewSignalHub creates a new signaling hub.
func NewSignalHub(readBuf, writeBuf int, maxMessageSize int64, log *zap.Logger) *SignalHub {
	return &SignalHub{
		peers:      make(map[string]map[*SignalPeer]struct{}),
		maxMsgSize: maxMessageSize,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// Allow all origins for dev; in prod set CheckOrigin.
		},
	}
}

// Register adds a peer to a room and returns a cleanup function.
func (h *SignalHub) Register(roomID, userID string, conn *websocket.Conn) (*SignalPeer, func()) {
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}
	p := &SignalPeer{
		RoomID: roomID,
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 64),
	}
	h.mu.Lock()
	if h.peers[roomID] == nil {
		h.peers[roomID] = make(map[*SignalPeer]struct{})
	}
	h.peers[roomID][p] = struct{}{}
	h.mu.Unlock()
	metrics.SignalPeers.Inc()

	h.log.Info("signal peer registered",
		zap.String("room_id", roomID),
		zap.String("user_id", userID))

	cleanup := func() {
		h.unregister(roomID, p)
	}
	return p, cleanup
}

func (h *SignalHub) unregister(roomID string, p *SignalPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.peers[roomID]
	if !ok {
		return // room already torn down via CloseRoom
	}
	if _, present := m[p]; !present {
		return
	}
	delete(m, p)
	if len(m) == 0 {
		delete(h.peers, roomID)
	}
	close(p.Send)
	metrics.SignalPeers.Dec()
	h.log.Info("signal peer unregistered",
		zap.String("room_id", roomID),
		zap.String("user_id", p.UserID))
}

// Relay forwards a frame from one participant to every other peer in the room.
func (h *SignalHub) Relay(roomID, fromUserID string, data []byte) {
	h.mu.RLock()
	m, ok := h.peers[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// Copy peers so we don't hold the lock while writing
	peers := make([]*SignalPeer, 0, len(m))
	for p := range m {
		if p.UserID != fromUserID {
			peers = append(peers, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range peers {
		select {
		case p.Send <- data:
			metrics.SignalFramesRelayed.Inc()
		default:
			h.log.Warn("signal send buffer full",
				zap.String("room_id", roomID),
				zap.String("user_id", p.UserID))
		}
	}
}

// CloseRoom notifies and disconnects every peer of a room (call teardown).
func (h *SignalHub) CloseRoom(roomID string) {
	h.mu.Lock()
	m, ok := h.peers[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, roomID)
	for range m {
		metrics.SignalPeers.Dec()
	}
	h.mu.Unlock()

	closeMsg := map[string]string{"event": "call_ended", "roomId": roomID}
	raw, _ := json.Marshal(closeMsg)
	for p := range m {
		_ = p.Conn.WriteMessage(websocket.TextMessage, raw)
		close(p.Send)
		_ = p.Conn.Close()
	}
	h.log.Info("signal room closed", zap.String("room_id", roomID))
}

// Upgrader returns the WebSocket upgrader for HTTP handlers.
func (h *SignalHub) Upgrader() *websocket.Upgrader {
	return &h.upgrader
}

// PeerCount returns number of peers in a room (for debugging).
func (h *SignalHub) PeerCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers[roomID])
}
