package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/chrisklop/mpcrappyturd/internal/store"
)

const (
	// MaxPlayersPerRoom is the hard capacity invariant for every room.
	MaxPlayersPerRoom = 6

	// RoomTTL doubles as the store expiry and the abandoned-room cutoff.
	RoomTTL = 5 * time.Minute
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrGameInProgress = errors.New("game already in progress")
)

// Manager owns room discovery, membership, ready state and status transitions.
// Room records live in the store; every read-modify-write for one room runs
// under that room's lock, and find-or-create is additionally serialized so two
// concurrent joins cannot both create a room while a waiting room with spare
// capacity is advertised.
type Manager struct {
	store  store.Store
	logger *slog.Logger

	createMu sync.Mutex
	locksMu  sync.Mutex
	locks    map[string]*roomLock

	now func() time.Time
}

// roomLock is a reference-counted keyed mutex entry. The map entry is only
// dropped once nobody holds or waits on it, so two goroutines can never run
// "exclusive" sections for the same room on different mutexes.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(st store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  st,
		logger: logger,
		locks:  make(map[string]*roomLock),
		now:    time.Now,
	}
}

func (m *Manager) lockRoom(roomID string) *roomLock {
	m.locksMu.Lock()
	l, ok := m.locks[roomID]
	if !ok {
		l = &roomLock{}
		m.locks[roomID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (m *Manager) unlockRoom(roomID string, l *roomLock) {
	l.mu.Unlock()

	m.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, roomID)
	}
	m.locksMu.Unlock()
}

// FindOrCreateRoom returns the first advertised waiting room with spare
// capacity, or creates a new room hosted by the caller.
func (m *Manager) FindOrCreateRoom(ctx context.Context, playerID string) (*Room, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	roomIDs, err := m.AvailableRooms(ctx)
	if err != nil {
		m.logger.Error("failed to list available rooms", "error", err)
		roomIDs = nil
	}

	for _, roomID := range roomIDs {
		room, err := m.GetRoom(ctx, roomID)
		if err != nil {
			continue
		}
		if room != nil && len(room.Players) < room.Settings.MaxPlayers && room.Status == StatusWaiting {
			return room, nil
		}
	}

	return m.createRoom(ctx, playerID)
}

func (m *Manager) createRoom(ctx context.Context, hostPlayerID string) (*Room, error) {
	now := m.now()
	room := &Room{
		ID:        fmt.Sprintf("room_%d_%s", now.UnixMilli(), randomSuffix(9)),
		HostID:    hostPlayerID,
		Players:   []Player{},
		Status:    StatusWaiting,
		CreatedAt: now.UnixMilli(),
		Settings: Settings{
			MaxPlayers: MaxPlayersPerRoom,
			GameMode:   GameModeElimination,
		},
	}

	if err := m.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	if err := m.store.SAdd(ctx, store.ActiveRoomsKey, room.ID); err != nil {
		return nil, err
	}

	m.logger.Info("created room", "room_id", room.ID, "host_id", hostPlayerID)
	return room, nil
}

// GetRoom loads a room record. A missing room returns (nil, nil).
func (m *Manager) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	data, ok, err := m.store.Get(ctx, store.RoomKey(roomID))
	if err != nil {
		m.logger.Error("failed to get room", "room_id", roomID, "error", err)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var room Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Manager) SaveRoom(ctx context.Context, room *Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return m.store.SetEx(ctx, store.RoomKey(room.ID), string(data), RoomTTL)
}

func (m *Manager) DeleteRoom(ctx context.Context, roomID string) error {
	if err := m.store.Del(ctx, store.RoomKey(roomID)); err != nil {
		return err
	}
	if err := m.store.SRem(ctx, store.ActiveRoomsKey, roomID); err != nil {
		return err
	}
	m.logger.Info("deleted room", "room_id", roomID)
	return nil
}

// AddPlayerToRoom joins a player to a waiting room with capacity. Re-joining
// with an id already in the room refreshes that player's data in place.
func (m *Manager) AddPlayerToRoom(ctx context.Context, roomID, playerID string, data PlayerData) (*Room, error) {
	l := m.lockRoom(roomID)
	defer m.unlockRoom(roomID, l)

	room, err := m.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	existing := room.Player(playerID)
	if existing == nil && len(room.Players) >= room.Settings.MaxPlayers {
		return nil, ErrRoomFull
	}
	if room.Status != StatusWaiting {
		return nil, ErrGameInProgress
	}

	now := m.now().UnixMilli()
	if existing != nil {
		existing.Gamertag = data.Gamertag
		existing.Color = data.Color
		existing.SocketID = data.SocketID
		existing.JoinedAt = now
		existing.Ready = false
		existing.Connected = true
	} else {
		room.Players = append(room.Players, Player{
			ID:        playerID,
			Gamertag:  data.Gamertag,
			Color:     data.Color,
			SocketID:  data.SocketID,
			JoinedAt:  now,
			Connected: true,
		})
	}

	if err := m.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// RemovePlayerFromRoom drops a player. An emptied room is deleted (nil room is
// returned); if the host left, the earliest-joined remaining player becomes
// host.
func (m *Manager) RemovePlayerFromRoom(ctx context.Context, roomID, playerID string) (*Room, error) {
	l := m.lockRoom(roomID)
	defer m.unlockRoom(roomID, l)

	room, err := m.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		return nil, err
	}

	kept := room.Players[:0]
	for _, p := range room.Players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	room.Players = kept

	if len(room.Players) == 0 {
		if err := m.DeleteRoom(ctx, roomID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if room.HostID == playerID {
		room.HostID = room.Players[0].ID
		m.logger.Info("host reassigned", "room_id", roomID, "host_id", room.HostID)
	}
	if err := m.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// SetPlayerReady flags a member ready or not. Missing room or player is
// reported via the returned room being nil, never an error.
func (m *Manager) SetPlayerReady(ctx context.Context, roomID, playerID string, ready bool) (*Room, error) {
	l := m.lockRoom(roomID)
	defer m.unlockRoom(roomID, l)

	room, err := m.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		return nil, err
	}

	player := room.Player(playerID)
	if player == nil {
		m.logger.Warn("ready toggle for unknown player", "room_id", roomID, "player_id", playerID)
		return room, nil
	}
	player.Ready = ready

	if err := m.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// SetRoomStatus advances the lifecycle; entering playing stamps the start time.
func (m *Manager) SetRoomStatus(ctx context.Context, roomID, status string) error {
	l := m.lockRoom(roomID)
	defer m.unlockRoom(roomID, l)

	room, err := m.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		return err
	}

	room.Status = status
	if status == StatusPlaying {
		room.GameStartedAt = m.now().UnixMilli()
	}
	return m.SaveRoom(ctx, room)
}

func (m *Manager) AvailableRooms(ctx context.Context) ([]string, error) {
	return m.store.SMembers(ctx, store.ActiveRoomsKey)
}

// CleanupExpiredRooms removes rooms that outlived the room TTL without being
// collected by the normal leave/end flow, and advertisements whose record
// already expired out of the store.
func (m *Manager) CleanupExpiredRooms(ctx context.Context) {
	roomIDs, err := m.AvailableRooms(ctx)
	if err != nil {
		m.logger.Error("cleanup: failed to list rooms", "error", err)
		return
	}

	now := m.now().UnixMilli()
	for _, roomID := range roomIDs {
		room, err := m.GetRoom(ctx, roomID)
		if err != nil {
			continue
		}
		if room == nil || now-room.CreatedAt > RoomTTL.Milliseconds() {
			if err := m.DeleteRoom(ctx, roomID); err != nil {
				m.logger.Error("cleanup: failed to delete room", "room_id", roomID, "error", err)
			}
		}
	}
}

// RoomStats aggregates counts over the advertised rooms. Values are best
// effort; a store failure yields zeroes.
func (m *Manager) RoomStats(ctx context.Context) Stats {
	var stats Stats

	roomIDs, err := m.AvailableRooms(ctx)
	if err != nil {
		m.logger.Error("failed to get room stats", "error", err)
		return stats
	}

	stats.TotalRooms = len(roomIDs)
	stats.ActiveRooms = len(roomIDs)
	for _, roomID := range roomIDs {
		room, err := m.GetRoom(ctx, roomID)
		if err != nil || room == nil {
			continue
		}
		stats.TotalPlayers += len(room.Players)
		stats.OnlineCount += len(room.Players)
		switch room.Status {
		case StatusWaiting:
			stats.WaitingRooms++
		case StatusPlaying:
			stats.PlayingRooms++
		}
	}
	return stats
}

const suffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixChars[rand.Intn(len(suffixChars))]
	}
	return string(b)
}
