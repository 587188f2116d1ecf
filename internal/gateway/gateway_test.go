package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/chrisklop/mpcrappyturd/internal/game"
	"github.com/chrisklop/mpcrappyturd/internal/rooms"
	"github.com/chrisklop/mpcrappyturd/internal/store"
)

func newTestGateway() (*Gateway, *rooms.Manager, *game.Manager) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	roomMgr := rooms.NewManager(st, logger)
	gameMgr := game.NewManager(st, logger)
	gw := New(logger, roomMgr, gameMgr, NewHub(logger))
	gw.startDelay = 10 * time.Millisecond
	gw.cleanupDelay = 20 * time.Millisecond
	return gw, roomMgr, gameMgr
}

// recv drains a client's outbox until a message of the wanted type arrives.
func recv(t *testing.T, c *Client, eventType string) Message {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-c.send:
			if msg.Type == eventType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

// expectSilence asserts no message of the given type shows up for a while.
func expectSilence(t *testing.T, c *Client, eventType string) {
	t.Helper()
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case msg := <-c.send:
			if msg.Type == eventType {
				t.Fatalf("unexpected %s: %s", eventType, msg.Payload)
			}
		case <-deadline:
			return
		}
	}
}

func joinTwo(t *testing.T, gw *Gateway, roomMgr *rooms.Manager) (string, *Client, *Client) {
	t.Helper()
	room, err := roomMgr.FindOrCreateRoom(context.Background(), "a")
	if err != nil {
		t.Fatalf("FindOrCreateRoom: %v", err)
	}

	ca := newClient("sock-a", nil, gw)
	cb := newClient("sock-b", nil, gw)
	gw.handleJoin(ca, joinRoomPayload{RoomID: room.ID, PlayerID: "a", Gamertag: "alice"})
	gw.handleJoin(cb, joinRoomPayload{RoomID: room.ID, PlayerID: "b", Gamertag: "bob"})
	recv(t, ca, EvRoomState)
	recv(t, cb, EvRoomState)
	return room.ID, ca, cb
}

func TestJoinSendsStateAndNotifiesRoom(t *testing.T) {
	gw, roomMgr, _ := newTestGateway()

	room, err := roomMgr.FindOrCreateRoom(context.Background(), "a")
	if err != nil {
		t.Fatalf("FindOrCreateRoom: %v", err)
	}

	ca := newClient("sock-a", nil, gw)
	gw.handleJoin(ca, joinRoomPayload{RoomID: room.ID, PlayerID: "a", Gamertag: "alice"})

	state := recv(t, ca, EvRoomState)
	var got rooms.Room
	if err := json.Unmarshal(state.Payload, &got); err != nil {
		t.Fatalf("bad room-state payload: %v", err)
	}
	if got.ID != room.ID || len(got.Players) != 1 {
		t.Fatalf("room-state = %+v, want room %s with 1 player", got, room.ID)
	}

	cb := newClient("sock-b", nil, gw)
	gw.handleJoin(cb, joinRoomPayload{RoomID: room.ID, PlayerID: "b", Gamertag: "bob"})

	joined := recv(t, ca, EvPlayerJoined)
	var notice struct {
		PlayerID    string `json:"playerId"`
		PlayerCount int    `json:"playerCount"`
	}
	if err := json.Unmarshal(joined.Payload, &notice); err != nil {
		t.Fatalf("bad player-joined payload: %v", err)
	}
	if notice.PlayerID != "b" || notice.PlayerCount != 2 {
		t.Fatalf("player-joined = %+v", notice)
	}
}

func TestJoinUnknownRoomEmitsError(t *testing.T) {
	gw, _, _ := newTestGateway()

	c := newClient("sock-a", nil, gw)
	gw.handleJoin(c, joinRoomPayload{RoomID: "room_missing", PlayerID: "a"})

	recv(t, c, EvError)
	if c.roomID != "" {
		t.Fatalf("failed join left client bound to room %q", c.roomID)
	}
}

func TestReadyStartSequence(t *testing.T) {
	gw, roomMgr, gameMgr := newTestGateway()
	ctx := context.Background()

	roomID, ca, cb := joinTwo(t, gw, roomMgr)

	gw.handleReady(ca, playerReadyPayload{RoomID: roomID, PlayerID: "a", Ready: true})
	recv(t, cb, EvPlayerReadyState)
	expectSilence(t, cb, EvGameStarting)

	gw.handleReady(cb, playerReadyPayload{RoomID: roomID, PlayerID: "b", Ready: true})
	starting := recv(t, ca, EvGameStarting)
	var countdown struct {
		Countdown int `json:"countdown"`
	}
	if err := json.Unmarshal(starting.Payload, &countdown); err != nil || countdown.Countdown != 3 {
		t.Fatalf("game-starting payload = %s (err %v), want countdown 3", starting.Payload, err)
	}

	recv(t, ca, EvGameStart)
	recv(t, cb, EvGameStart)

	room, err := roomMgr.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		t.Fatalf("room lookup after start: (%v, %v)", room, err)
	}
	if room.Status != rooms.StatusPlaying {
		t.Fatalf("room status = %q, want playing", room.Status)
	}
	if room.GameStartedAt == 0 {
		t.Fatalf("playing transition did not stamp a start time")
	}
	if gameMgr.ActiveSessions() != 1 {
		t.Fatalf("active sessions = %d, want 1", gameMgr.ActiveSessions())
	}

	// Re-readying after the countdown fired must not start a second game.
	gw.handleReady(ca, playerReadyPayload{RoomID: roomID, PlayerID: "a", Ready: true})
	if gameMgr.ActiveSessions() != 1 {
		t.Fatalf("re-ready started another session")
	}

	gameMgr.EndGame(ctx, roomID, nil)
}

func TestPositionUpdateFanout(t *testing.T) {
	gw, roomMgr, gameMgr := newTestGateway()
	ctx := context.Background()

	roomID, ca, cb := joinTwo(t, gw, roomMgr)
	room, _ := roomMgr.GetRoom(ctx, roomID)
	if err := gameMgr.StartGame(ctx, roomID, room.Players); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	defer gameMgr.EndGame(ctx, roomID, nil)

	ts := time.Now().Add(time.Second).UnixMilli()
	gw.handlePosition(ca, playerPositionPayload{
		RoomID: roomID, PlayerID: "a",
		X: game.SpawnX + 10, Y: game.SpawnY, Velocity: 40, Timestamp: ts,
	})

	update := recv(t, cb, EvPlayerUpdate)
	var upd struct {
		PlayerID string  `json:"playerId"`
		X        float64 `json:"x"`
	}
	if err := json.Unmarshal(update.Payload, &upd); err != nil {
		t.Fatalf("bad player-update payload: %v", err)
	}
	if upd.PlayerID != "a" || upd.X != game.SpawnX+10 {
		t.Fatalf("player-update = %+v", upd)
	}
	// The sender must not hear its own update.
	expectSilence(t, ca, EvPlayerUpdate)

	// A teleport 500 units away 10 ms later is dropped with no fan-out.
	gw.handlePosition(ca, playerPositionPayload{
		RoomID: roomID, PlayerID: "a",
		X: game.SpawnX + 510, Y: game.SpawnY, Timestamp: ts + 10,
	})
	expectSilence(t, cb, EvPlayerUpdate)

	// Out-of-field coordinates never reach the session.
	gw.handlePosition(ca, playerPositionPayload{
		RoomID: roomID, PlayerID: "a",
		X: -50, Y: game.SpawnY, Timestamp: ts + 5000,
	})
	expectSilence(t, cb, EvPlayerUpdate)
}

func TestDeathFlowEndsGame(t *testing.T) {
	gw, roomMgr, gameMgr := newTestGateway()
	ctx := context.Background()

	roomID, ca, cb := joinTwo(t, gw, roomMgr)
	room, _ := roomMgr.GetRoom(ctx, roomID)
	if err := gameMgr.StartGame(ctx, roomID, room.Players); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	// Score 0 is always within the plausibility ceiling.
	gw.handleDied(ca, playerDiedPayload{RoomID: roomID, PlayerID: "a", Score: 0})

	eliminated := recv(t, cb, EvPlayerEliminated)
	var dead struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.Unmarshal(eliminated.Payload, &dead); err != nil || dead.PlayerID != "a" {
		t.Fatalf("player-eliminated = %s (err %v)", eliminated.Payload, err)
	}

	over := recv(t, cb, EvGameOver)
	var result struct {
		Winner      *game.SessionPlayer `json:"winner"`
		FinalScores []game.FinalScore   `json:"finalScores"`
	}
	if err := json.Unmarshal(over.Payload, &result); err != nil {
		t.Fatalf("bad game-over payload: %v", err)
	}
	if result.Winner == nil || result.Winner.ID != "b" {
		t.Fatalf("winner = %+v, want b", result.Winner)
	}
	if len(result.FinalScores) != 2 || result.FinalScores[0].PlayerID != "b" || result.FinalScores[0].Placement != 1 {
		t.Fatalf("finalScores = %+v, want b placed first", result.FinalScores)
	}

	if gameMgr.ActiveSessions() != 0 {
		t.Fatalf("session survived game over")
	}

	// The finished room gets collected after the grace delay.
	time.Sleep(100 * time.Millisecond)
	if room, _ := roomMgr.GetRoom(ctx, roomID); room != nil {
		t.Fatalf("finished room was not cleaned up")
	}
}

func TestImplausibleDeathIsDropped(t *testing.T) {
	gw, roomMgr, gameMgr := newTestGateway()
	ctx := context.Background()

	roomID, ca, cb := joinTwo(t, gw, roomMgr)
	room, _ := roomMgr.GetRoom(ctx, roomID)
	if err := gameMgr.StartGame(ctx, roomID, room.Players); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	defer gameMgr.EndGame(ctx, roomID, nil)

	// 100000 points within the first second of play is nonsense.
	gw.handleDied(ca, playerDiedPayload{RoomID: roomID, PlayerID: "a", Score: 100000})

	expectSilence(t, cb, EvPlayerEliminated)
	if remaining := gameMgr.RemainingPlayers(roomID); len(remaining) != 2 {
		t.Fatalf("remaining = %d players, want 2 (nobody eliminated)", len(remaining))
	}
}

func TestDisconnectLeavesAndTearsDown(t *testing.T) {
	gw, roomMgr, gameMgr := newTestGateway()
	ctx := context.Background()

	roomID, ca, cb := joinTwo(t, gw, roomMgr)
	room, _ := roomMgr.GetRoom(ctx, roomID)
	if err := gameMgr.StartGame(ctx, roomID, room.Players); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	gw.handleDisconnect(ca)

	left := recv(t, cb, EvPlayerLeft)
	var gone struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.Unmarshal(left.Payload, &gone); err != nil || gone.PlayerID != "a" {
		t.Fatalf("player-left = %s (err %v)", left.Payload, err)
	}

	room, _ = roomMgr.GetRoom(ctx, roomID)
	if room == nil || len(room.Players) != 1 || room.HostID != "b" {
		t.Fatalf("room after disconnect = %+v, want just b as host", room)
	}

	// Last player out deletes the room and ends the session.
	gw.handleDisconnect(cb)
	if room, _ := roomMgr.GetRoom(ctx, roomID); room != nil {
		t.Fatalf("emptied room still exists")
	}

	deadline := time.After(time.Second)
	for gameMgr.ActiveSessions() != 0 {
		select {
		case <-deadline:
			t.Fatalf("session survived emptied room")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestChatRelay(t *testing.T) {
	gw, roomMgr, _ := newTestGateway()

	roomID, ca, cb := joinTwo(t, gw, roomMgr)

	gw.handleChat(ca, chatPayload{RoomID: roomID, PlayerID: "a", Message: "gg"})
	msg := recv(t, cb, EvChatMessage)
	var chat chatPayload
	if err := json.Unmarshal(msg.Payload, &chat); err != nil {
		t.Fatalf("bad chat payload: %v", err)
	}
	if chat.PlayerID != "a" || chat.Message != "gg" || chat.Timestamp == 0 {
		t.Fatalf("chat = %+v", chat)
	}

	// Oversized and empty messages are dropped.
	gw.handleChat(ca, chatPayload{RoomID: roomID, PlayerID: "a", Message: strings.Repeat("x", 101)})
	gw.handleChat(ca, chatPayload{RoomID: roomID, PlayerID: "a", Message: ""})
	expectSilence(t, cb, EvChatMessage)
}

func TestObstacleSyncGoesToRequesterOnly(t *testing.T) {
	gw, roomMgr, gameMgr := newTestGateway()
	ctx := context.Background()

	roomID, ca, cb := joinTwo(t, gw, roomMgr)
	room, _ := roomMgr.GetRoom(ctx, roomID)
	if err := gameMgr.StartGame(ctx, roomID, room.Players); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	defer gameMgr.EndGame(ctx, roomID, nil)

	// Let the tick loop fill the spawn window.
	time.Sleep(50 * time.Millisecond)

	gw.handleObstacles(ca, requestObstaclesPayload{RoomID: roomID})

	sync := recv(t, ca, EvObstacleSync)
	var payload struct {
		Obstacles []game.Obstacle `json:"obstacles"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal(sync.Payload, &payload); err != nil {
		t.Fatalf("bad obstacle-sync payload: %v", err)
	}
	if len(payload.Obstacles) == 0 {
		t.Fatalf("obstacle sync returned no obstacles")
	}
	expectSilence(t, cb, EvObstacleSync)
}
