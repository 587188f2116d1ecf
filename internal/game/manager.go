package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chrisklop/mpcrappyturd/internal/rooms"
	"github.com/chrisklop/mpcrappyturd/internal/store"
)

var (
	ErrGameRunning = errors.New("game already running for room")
	ErrNoSession   = errors.New("no active session for room")
)

// GameOverFunc is invoked when the tick loop ends a game on its own, so the
// caller can fan the result out to the room.
type GameOverFunc func(roomID string, result *Result)

// Manager owns the authoritative game sessions: one tick loop per playing
// room, movement and score plausibility checks, elimination, win detection and
// post-game aggregation. Sessions live in memory; the store holds best-effort
// snapshots plus the global history and leaderboard.
type Manager struct {
	store  store.Store
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	onGameOver GameOverFunc

	now func() time.Time
}

func NewManager(st store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:    st,
		logger:   logger,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// SetGameOverHandler registers the fan-out hook. Call before any game starts.
func (m *Manager) SetGameOverHandler(fn GameOverFunc) {
	m.onGameOver = fn
}

func (m *Manager) session(roomID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[roomID]
}

// StartGame builds the session for a room, persists the initial snapshot and
// begins the tick loop. Players spawn at a fixed coordinate with zero score.
func (m *Manager) StartGame(ctx context.Context, roomID string, players []rooms.Player) error {
	m.mu.Lock()
	if existing, ok := m.sessions[roomID]; ok {
		existing.mu.Lock()
		running := existing.Status == statusPlaying
		existing.mu.Unlock()
		if running {
			m.mu.Unlock()
			return ErrGameRunning
		}
	}
	s := newSession(roomID, players, m.now().UnixMilli())
	m.sessions[roomID] = s
	m.mu.Unlock()

	m.persistSession(ctx, s)
	go m.runLoop(roomID)

	m.logger.Info("started game", "room_id", roomID, "players", len(players))
	return nil
}

// runLoop drives one room at the fixed tick rate and exits once the session
// leaves playing status.
func (m *Manager) runLoop(roomID string) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !m.tick(roomID) {
			return
		}
	}
}

// tick advances obstacles, refills the spawn window, culls off-screen
// obstacles, checks the win condition and persists the snapshot. It returns
// false once the loop should stop.
func (m *Manager) tick(roomID string) bool {
	s := m.session(roomID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	if s.Status != statusPlaying {
		s.mu.Unlock()
		return false
	}

	now := m.now().UnixMilli()
	delta := TickInterval.Seconds()
	for i := range s.Obstacles {
		s.Obstacles[i].X -= s.Obstacles[i].Speed * delta
	}
	generateObstacles(s, now)
	cullObstacles(s)

	alive := s.alive()
	s.mu.Unlock()

	if len(alive) <= 1 {
		var winner *SessionPlayer
		if len(alive) == 1 {
			winner = &alive[0]
		}
		result, err := m.EndGame(context.Background(), roomID, winner)
		if err == nil && m.onGameOver != nil {
			m.onGameOver(roomID, result)
		}
		return false
	}

	m.persistSession(context.Background(), s)
	return true
}

func (m *Manager) persistSession(ctx context.Context, s *Session) {
	s.mu.Lock()
	data, err := json.Marshal(s)
	s.mu.Unlock()
	if err != nil {
		m.logger.Error("failed to marshal session", "room_id", s.RoomID, "error", err)
		return
	}
	if err := m.store.SetEx(ctx, store.GameKey(s.RoomID), string(data), SessionTTL); err != nil {
		m.logger.Error("failed to persist session", "room_id", s.RoomID, "error", err)
	}
}

// UpdatePlayerPosition applies a movement report after the anti-teleport
// check: the straight-line distance since the last accepted update must not
// exceed MaxPositionDelta times the elapsed seconds. Returns false with no
// mutation on any rejection.
func (m *Manager) UpdatePlayerPosition(roomID, playerID string, pos PositionData) bool {
	s := m.session(roomID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player := s.player(playerID)
	if player == nil || player.Eliminated {
		return false
	}

	elapsed := float64(pos.Timestamp-player.LastUpdate) / 1000
	maxDistance := MaxPositionDelta * elapsed
	distance := math.Hypot(pos.X-player.X, pos.Y-player.Y)
	if distance > maxDistance {
		m.logger.Warn("suspicious movement rejected",
			"room_id", roomID, "player_id", playerID,
			"distance", distance, "elapsed_s", elapsed)
		return false
	}

	player.X = pos.X
	player.Y = pos.Y
	player.Velocity = pos.Velocity
	player.LastUpdate = pos.Timestamp
	return true
}

// ValidatePlayerPosition is the stateless bounds check applied before a
// position update is broadcast: inside the play field, velocity under the cap.
func (m *Manager) ValidatePlayerPosition(pos PositionData) bool {
	return pos.X >= 0 && pos.X <= FieldWidth &&
		pos.Y >= 0 && pos.Y <= FieldHeight &&
		math.Abs(pos.Velocity) <= MaxVelocity
}

// ValidatePlayerDeath is the coarse anti-cheat gate on death reports: the
// claimed score must stay under a ceiling derived from elapsed session time.
func (m *Manager) ValidatePlayerDeath(roomID, playerID string, death DeathData) bool {
	s := m.session(roomID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player := s.player(playerID)
	if player == nil || player.Eliminated {
		return false
	}

	gameTime := float64(m.now().UnixMilli()-s.StartTime) / 1000
	maxPossibleScore := int(math.Floor(gameTime/scoreInterval)) * scorePerPass
	if death.Score > maxPossibleScore*scoreMultiplier {
		m.logger.Warn("suspicious score rejected",
			"room_id", roomID, "player_id", playerID,
			"score", death.Score, "ceiling", maxPossibleScore*scoreMultiplier)
		return false
	}
	return true
}

// EliminatePlayer marks a player dead and records the final score. Calling it
// again for an already-eliminated player is a no-op.
func (m *Manager) EliminatePlayer(roomID, playerID string, score int) {
	s := m.session(roomID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player := s.player(playerID)
	if player == nil || player.Eliminated {
		return
	}
	player.Eliminated = true
	player.FinalScore = score
	player.EliminatedAt = m.now().UnixMilli()

	m.logger.Info("player eliminated", "room_id", roomID, "player_id", playerID, "score", score)
}

// RemainingPlayers returns the non-eliminated session members.
func (m *Manager) RemainingPlayers(roomID string) []SessionPlayer {
	s := m.session(roomID)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive()
}

// Obstacles returns the obstacles inside the client-visible window.
func (m *Manager) Obstacles(roomID string) []Obstacle {
	s := m.session(roomID)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Obstacle
	for _, obs := range s.Obstacles {
		if obs.X > VisibleMinX && obs.X < VisibleMaxX {
			out = append(out, obs)
		}
	}
	return out
}

// FinalScores returns the session's ranked placements.
func (m *Manager) FinalScores(roomID string) []FinalScore {
	s := m.session(roomID)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return finalScores(s)
}

// finalScores ranks a session's players: survivors outrank the eliminated
// (outlasting everyone beats any recorded death score), then descending final
// score; players without a recorded final score rank as 0. Placement is
// contiguous and 1-based. Callers hold the session mutex.
func finalScores(s *Session) []FinalScore {
	scores := make([]FinalScore, 0, len(s.Players))
	for _, p := range s.Players {
		scores = append(scores, FinalScore{
			PlayerID:   p.ID,
			Gamertag:   p.Gamertag,
			Score:      p.FinalScore,
			Eliminated: p.Eliminated,
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Eliminated != scores[j].Eliminated {
			return !scores[i].Eliminated
		}
		return scores[i].Score > scores[j].Score
	})
	for i := range scores {
		scores[i].Placement = i + 1
	}
	return scores
}

// EndGame finishes a session: stamps the end, persists the aggregate result to
// the bounded history and the leaderboard, and discards the live session. The
// tick loop notices the status flip and stops. A second call for the same room
// returns ErrNoSession.
func (m *Manager) EndGame(ctx context.Context, roomID string, winner *SessionPlayer) (*Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if ok {
		delete(m.sessions, roomID)
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	now := m.now().UnixMilli()

	s.mu.Lock()
	s.Status = statusFinished
	s.EndTime = now
	if winner != nil {
		if p := s.player(winner.ID); p != nil {
			// The winner never reported a death, so carry their cumulative
			// score into the ranking.
			if p.FinalScore == 0 {
				p.FinalScore = p.Score
			}
			// Re-read the player so the broadcast winner matches their
			// finalScores row.
			w := *p
			winner = &w
		}
	}
	s.Winner = winner
	result := &Result{
		RoomID:      roomID,
		GameTime:    s.EndTime - s.StartTime,
		PlayerCount: len(s.Players),
		Winner:      winner,
		FinalScores: finalScores(s),
		Timestamp:   now,
	}
	s.mu.Unlock()

	m.saveResult(ctx, result)

	winnerTag := "none"
	if winner != nil {
		winnerTag = winner.Gamertag
	}
	m.logger.Info("game ended", "room_id", roomID, "winner", winnerTag, "duration_ms", result.GameTime)
	return result, nil
}

// saveResult writes the aggregate to the global leaderboard and the bounded
// history. Failures are logged; gameplay already finished, so nothing depends
// on them.
func (m *Manager) saveResult(ctx context.Context, result *Result) {
	now := m.now().UnixMilli()
	for _, score := range result.FinalScores {
		member := fmt.Sprintf("%s:%d", score.Gamertag, now)
		if err := m.store.ZAdd(ctx, store.LeaderboardKey, float64(score.Score), member); err != nil {
			m.logger.Error("failed to update leaderboard", "error", err)
			break
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		m.logger.Error("failed to marshal game result", "error", err)
		return
	}
	if err := m.store.LPush(ctx, store.HistoryKey, string(data)); err != nil {
		m.logger.Error("failed to record game history", "error", err)
		return
	}
	if err := m.store.LTrim(ctx, store.HistoryKey, 0, HistoryLimit-1); err != nil {
		m.logger.Error("failed to trim game history", "error", err)
	}

	if err := m.store.Del(ctx, store.GameKey(result.RoomID)); err != nil {
		m.logger.Error("failed to drop session snapshot", "room_id", result.RoomID, "error", err)
	}
}

// ActiveSessions is the number of rooms currently playing.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats aggregates totals for reporting: games played, top-10 leaderboard,
// five most recent games, live session count. Store failures degrade to the
// zero aggregate.
func (m *Manager) Stats(ctx context.Context) GlobalStats {
	stats := GlobalStats{ActiveRooms: m.ActiveSessions()}

	totalGames, err := m.store.LLen(ctx, store.HistoryKey)
	if err != nil {
		m.logger.Error("failed to read game history length", "error", err)
		return GlobalStats{ActiveRooms: stats.ActiveRooms}
	}
	stats.TotalGames = totalGames

	top, err := m.store.ZRevRangeWithScores(ctx, store.LeaderboardKey, 0, 9)
	if err != nil {
		m.logger.Error("failed to read leaderboard", "error", err)
		return GlobalStats{ActiveRooms: stats.ActiveRooms}
	}
	for _, entry := range top {
		player, _, _ := strings.Cut(entry.Member, ":")
		stats.TopScores = append(stats.TopScores, TopScore{Player: player, Score: entry.Score})
	}

	recent, err := m.store.LRange(ctx, store.HistoryKey, 0, 4)
	if err != nil {
		m.logger.Error("failed to read recent games", "error", err)
		return GlobalStats{ActiveRooms: stats.ActiveRooms}
	}
	for _, raw := range recent {
		var result Result
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			continue
		}
		stats.RecentGames = append(stats.RecentGames, result)
	}

	return stats
}
