package gateway

import "encoding/json"

// Message is the envelope for all websocket traffic in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event types.
const (
	EvJoinRoom         = "join-room"
	EvPlayerReady      = "player-ready"
	EvPlayerPosition   = "player-position"
	EvPlayerDied       = "player-died"
	EvRequestObstacles = "request-obstacles"
	EvChatMessage      = "chat-message"
)

// Outbound event types.
const (
	EvRoomState        = "room-state"
	EvPlayerJoined     = "player-joined"
	EvPlayerReadyState = "player-ready-state"
	EvGameStarting     = "game-starting"
	EvGameStart        = "game-start"
	EvPlayerUpdate     = "player-update"
	EvPlayerEliminated = "player-eliminated"
	EvGameOver         = "game-over"
	EvPlayerLeft       = "player-left"
	EvObstacleSync     = "obstacle-sync"
	EvError            = "error"
)

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Gamertag string `json:"gamertag"`
	Color    string `json:"color"`
}

type playerReadyPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

type playerPositionPayload struct {
	RoomID    string  `json:"roomId"`
	PlayerID  string  `json:"playerId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Velocity  float64 `json:"velocity"`
	Timestamp int64   `json:"timestamp"`
}

type playerDiedPayload struct {
	RoomID    string `json:"roomId"`
	PlayerID  string `json:"playerId"`
	Score     int    `json:"score"`
	Timestamp int64  `json:"timestamp"`
}

type requestObstaclesPayload struct {
	RoomID string `json:"roomId"`
}

type chatPayload struct {
	RoomID    string `json:"roomId"`
	PlayerID  string `json:"playerId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func mustMessage(eventType string, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are our own structs; a marshal failure is a programming error.
		panic(err)
	}
	return Message{Type: eventType, Payload: data}
}
