package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chrisklop/mpcrappyturd/internal/game"
	"github.com/chrisklop/mpcrappyturd/internal/rooms"
)

const (
	// Countdown between all-ready and the playing transition. Un-readying
	// after the countdown fired does not cancel it; only the room going away
	// does.
	startCountdown = 3 * time.Second

	// Grace before a finished room is deleted, so clients can receive the
	// final-state messages.
	finishedRoomGrace = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway translates inbound realtime events into room/game mutations and
// fans the resulting state back out over the hub. Each event performs exactly
// one authoritative mutation; a failed mutation produces no broadcast.
type Gateway struct {
	logger *slog.Logger
	rooms  *rooms.Manager
	games  *game.Manager
	hub    *Hub

	startDelay   time.Duration
	cleanupDelay time.Duration
}

func New(logger *slog.Logger, roomMgr *rooms.Manager, gameMgr *game.Manager, hub *Hub) *Gateway {
	gw := &Gateway{
		logger:       logger,
		rooms:        roomMgr,
		games:        gameMgr,
		hub:          hub,
		startDelay:   startCountdown,
		cleanupDelay: finishedRoomGrace,
	}
	gameMgr.SetGameOverHandler(gw.finishGame)
	return gw
}

// ServeWS upgrades the request and runs the connection's read/write loops.
func (gw *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(uuid.NewString(), conn, gw)
	gw.logger.Info("player connected", "socket_id", client.id)

	go client.writeLoop()
	go client.readLoop()
}

func (gw *Gateway) dispatch(c *Client, msg Message) {
	switch msg.Type {
	case EvJoinRoom:
		var p joinRoomPayload
		if gw.decode(c, msg, &p) {
			gw.handleJoin(c, p)
		}
	case EvPlayerReady:
		var p playerReadyPayload
		if gw.decode(c, msg, &p) {
			gw.handleReady(c, p)
		}
	case EvPlayerPosition:
		var p playerPositionPayload
		if gw.decode(c, msg, &p) {
			gw.handlePosition(c, p)
		}
	case EvPlayerDied:
		var p playerDiedPayload
		if gw.decode(c, msg, &p) {
			gw.handleDied(c, p)
		}
	case EvRequestObstacles:
		var p requestObstaclesPayload
		if gw.decode(c, msg, &p) {
			gw.handleObstacles(c, p)
		}
	case EvChatMessage:
		var p chatPayload
		if gw.decode(c, msg, &p) {
			gw.handleChat(c, p)
		}
	default:
		gw.logger.Warn("unknown event", "socket_id", c.id, "type", msg.Type)
	}
}

func (gw *Gateway) decode(c *Client, msg Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		gw.logger.Warn("bad payload", "socket_id", c.id, "type", msg.Type, "error", err)
		return false
	}
	return true
}

func (gw *Gateway) handleJoin(c *Client, p joinRoomPayload) {
	ctx := context.Background()

	gw.hub.Join(p.RoomID, c)
	c.playerID = p.PlayerID
	c.roomID = p.RoomID

	room, err := gw.rooms.AddPlayerToRoom(ctx, p.RoomID, p.PlayerID, rooms.PlayerData{
		Gamertag: p.Gamertag,
		Color:    p.Color,
		SocketID: c.id,
	})
	if err != nil {
		gw.logger.Warn("join rejected", "room_id", p.RoomID, "player_id", p.PlayerID, "error", err)
		gw.hub.Leave(p.RoomID, c)
		c.roomID = ""
		c.Emit(mustMessage(EvError, map[string]string{"message": "Failed to join room"}))
		return
	}

	c.Emit(mustMessage(EvRoomState, room))
	gw.hub.BroadcastExcept(p.RoomID, c.id, mustMessage(EvPlayerJoined, map[string]any{
		"playerId":    p.PlayerID,
		"gamertag":    p.Gamertag,
		"color":       p.Color,
		"playerCount": len(room.Players),
	}))

	gw.logger.Info("player joined room", "room_id", p.RoomID, "player_id", p.PlayerID, "gamertag", p.Gamertag)
}

func (gw *Gateway) handleReady(c *Client, p playerReadyPayload) {
	ctx := context.Background()

	room, err := gw.rooms.SetPlayerReady(ctx, p.RoomID, p.PlayerID, p.Ready)
	if err != nil || room == nil {
		return
	}

	gw.hub.Broadcast(p.RoomID, mustMessage(EvPlayerReadyState, map[string]any{
		"playerId": p.PlayerID,
		"ready":    p.Ready,
	}))

	if room.Status != rooms.StatusWaiting || !room.AllReady() {
		return
	}

	if err := gw.games.StartGame(ctx, p.RoomID, room.Players); err != nil {
		gw.logger.Warn("game start skipped", "room_id", p.RoomID, "error", err)
		return
	}
	if err := gw.rooms.SetRoomStatus(ctx, p.RoomID, rooms.StatusStarting); err != nil {
		gw.logger.Error("failed to mark room starting", "room_id", p.RoomID, "error", err)
	}

	gw.hub.Broadcast(p.RoomID, mustMessage(EvGameStarting, map[string]int{"countdown": 3}))

	roomID := p.RoomID
	time.AfterFunc(gw.startDelay, func() {
		gw.beginPlay(roomID)
	})
}

// beginPlay fires when the start countdown elapses. The room may have been
// torn down in the meantime (everyone disconnected), in which case nothing is
// broadcast.
func (gw *Gateway) beginPlay(roomID string) {
	ctx := context.Background()

	room, err := gw.rooms.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		gw.logger.Info("room gone before countdown finished", "room_id", roomID)
		return
	}

	if err := gw.rooms.SetRoomStatus(ctx, roomID, rooms.StatusPlaying); err != nil {
		gw.logger.Error("failed to mark room playing", "room_id", roomID, "error", err)
	}
	gw.hub.Broadcast(roomID, Message{Type: EvGameStart})
}

func (gw *Gateway) handlePosition(c *Client, p playerPositionPayload) {
	pos := game.PositionData{X: p.X, Y: p.Y, Velocity: p.Velocity, Timestamp: p.Timestamp}

	if !gw.games.ValidatePlayerPosition(pos) {
		return
	}
	if !gw.games.UpdatePlayerPosition(p.RoomID, p.PlayerID, pos) {
		return
	}

	gw.hub.BroadcastExcept(p.RoomID, c.id, mustMessage(EvPlayerUpdate, map[string]any{
		"playerId":  p.PlayerID,
		"x":         p.X,
		"y":         p.Y,
		"velocity":  p.Velocity,
		"timestamp": time.Now().UnixMilli(),
	}))
}

func (gw *Gateway) handleDied(c *Client, p playerDiedPayload) {
	ctx := context.Background()
	death := game.DeathData{Score: p.Score, Timestamp: p.Timestamp}

	if !gw.games.ValidatePlayerDeath(p.RoomID, p.PlayerID, death) {
		return
	}
	gw.games.EliminatePlayer(p.RoomID, p.PlayerID, p.Score)

	gw.hub.Broadcast(p.RoomID, mustMessage(EvPlayerEliminated, map[string]any{
		"playerId":  p.PlayerID,
		"score":     p.Score,
		"timestamp": time.Now().UnixMilli(),
	}))

	remaining := gw.games.RemainingPlayers(p.RoomID)
	if len(remaining) > 1 {
		return
	}
	var winner *game.SessionPlayer
	if len(remaining) == 1 {
		winner = &remaining[0]
	}

	result, err := gw.games.EndGame(ctx, p.RoomID, winner)
	if err != nil {
		// The tick loop got there first; its game-over hook does the fan-out.
		return
	}
	gw.finishGame(p.RoomID, result)
}

// finishGame broadcasts the result, marks the room finished and schedules the
// delayed room cleanup. It serves both the died-event path and the tick loop's
// game-over hook.
func (gw *Gateway) finishGame(roomID string, result *game.Result) {
	ctx := context.Background()

	gw.hub.Broadcast(roomID, mustMessage(EvGameOver, map[string]any{
		"winner":      result.Winner,
		"finalScores": result.FinalScores,
	}))

	if err := gw.rooms.SetRoomStatus(ctx, roomID, rooms.StatusFinished); err != nil {
		gw.logger.Error("failed to mark room finished", "room_id", roomID, "error", err)
	}

	time.AfterFunc(gw.cleanupDelay, func() {
		cleanupCtx := context.Background()
		room, err := gw.rooms.GetRoom(cleanupCtx, roomID)
		if err != nil || room == nil {
			return
		}
		if err := gw.rooms.DeleteRoom(cleanupCtx, roomID); err != nil {
			gw.logger.Error("failed to delete finished room", "room_id", roomID, "error", err)
		}
	})
}

func (gw *Gateway) handleObstacles(c *Client, p requestObstaclesPayload) {
	obstacles := gw.games.Obstacles(p.RoomID)
	c.Emit(mustMessage(EvObstacleSync, map[string]any{
		"obstacles": obstacles,
		"timestamp": time.Now().UnixMilli(),
	}))
}

// handleChat relays room chat without touching authoritative state. Empty or
// oversized messages are dropped.
func (gw *Gateway) handleChat(c *Client, p chatPayload) {
	if p.Message == "" || len(p.Message) > 100 {
		return
	}
	gw.hub.Broadcast(p.RoomID, mustMessage(EvChatMessage, chatPayload{
		RoomID:    p.RoomID,
		PlayerID:  p.PlayerID,
		Message:   p.Message,
		Timestamp: time.Now().UnixMilli(),
	}))
}

// handleDisconnect runs when a connection drops for any reason. Leaving and
// disconnecting are the same thing: membership is removed immediately, and an
// emptied room takes its session down with it.
func (gw *Gateway) handleDisconnect(c *Client) {
	gw.logger.Info("player disconnected", "socket_id", c.id)
	if c.roomID == "" {
		return
	}

	ctx := context.Background()
	gw.hub.Leave(c.roomID, c)

	room, err := gw.rooms.RemovePlayerFromRoom(ctx, c.roomID, c.playerID)
	if err != nil {
		gw.logger.Error("disconnect cleanup failed", "room_id", c.roomID, "player_id", c.playerID, "error", err)
		return
	}

	gw.hub.Broadcast(c.roomID, mustMessage(EvPlayerLeft, map[string]string{"playerId": c.playerID}))

	if room == nil {
		if _, err := gw.games.EndGame(ctx, c.roomID, nil); err == nil {
			gw.logger.Info("ended session for emptied room", "room_id", c.roomID)
		}
	}
}
