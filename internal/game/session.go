package game

import (
	"sync"

	"github.com/chrisklop/mpcrappyturd/internal/rooms"
)

// Session statuses.
const (
	statusPlaying  = "playing"
	statusFinished = "finished"
)

// SessionPlayer is a room member snapshotted into a live session. Timestamps
// are unix milliseconds.
type SessionPlayer struct {
	ID           string  `json:"id"`
	Gamertag     string  `json:"gamertag"`
	Color        string  `json:"color"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Velocity     float64 `json:"velocity"`
	Score        int     `json:"score"`
	Eliminated   bool    `json:"eliminated"`
	FinalScore   int     `json:"finalScore,omitempty"`
	EliminatedAt int64   `json:"eliminationTime,omitempty"`
	LastUpdate   int64   `json:"lastUpdate"`
}

// Obstacle scrolls right to left; the gap is the survivable opening.
type Obstacle struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Type      string  `json:"type"`
	Visual    string  `json:"visual"`
	Width     float64 `json:"width"`
	GapY      float64 `json:"gapY"`
	GapSize   float64 `json:"gapSize"`
	Speed     float64 `json:"speed"`
	Scored    bool    `json:"scored"`
	SpawnTime int64   `json:"spawnTime"`
}

// Session is the authoritative play instance for one room. At most one live
// session exists per room; all access goes through its mutex.
type Session struct {
	mu sync.Mutex

	RoomID          string          `json:"roomId"`
	Players         []SessionPlayer `json:"players"`
	Obstacles       []Obstacle      `json:"obstacles"`
	Status          string          `json:"status"`
	StartTime       int64           `json:"startTime"`
	EndTime         int64           `json:"endTime,omitempty"`
	Winner          *SessionPlayer  `json:"winner,omitempty"`
	ObstacleCounter int             `json:"obstacleCounter"`
	NextSpawnAt     int64           `json:"nextObstacleTime"`
}

// player returns the session member with the given id, or nil. Callers hold mu.
func (s *Session) player(playerID string) *SessionPlayer {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return &s.Players[i]
		}
	}
	return nil
}

// alive returns the non-eliminated members. Callers hold mu.
func (s *Session) alive() []SessionPlayer {
	var out []SessionPlayer
	for i := range s.Players {
		if !s.Players[i].Eliminated {
			out = append(out, s.Players[i])
		}
	}
	return out
}

func newSession(roomID string, players []rooms.Player, now int64) *Session {
	s := &Session{
		RoomID:      roomID,
		Players:     make([]SessionPlayer, 0, len(players)),
		Obstacles:   []Obstacle{},
		Status:      statusPlaying,
		StartTime:   now,
		NextSpawnAt: now + firstSpawnDelayMs,
	}
	for _, p := range players {
		s.Players = append(s.Players, SessionPlayer{
			ID:         p.ID,
			Gamertag:   p.Gamertag,
			Color:      p.Color,
			X:          SpawnX,
			Y:          SpawnY,
			LastUpdate: now,
		})
	}
	return s
}

// PositionData is a client movement report.
type PositionData struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Velocity  float64 `json:"velocity"`
	Timestamp int64   `json:"timestamp"`
}

// DeathData is a client collision report.
type DeathData struct {
	Score     int   `json:"score"`
	Timestamp int64 `json:"timestamp"`
}

// FinalScore is one row of the post-game ranking.
type FinalScore struct {
	PlayerID   string `json:"playerId"`
	Gamertag   string `json:"gamertag"`
	Score      int    `json:"score"`
	Eliminated bool   `json:"eliminated"`
	Placement  int    `json:"placement"`
}

// Result is the persisted aggregate of a finished game.
type Result struct {
	RoomID      string         `json:"roomId"`
	GameTime    int64          `json:"gameTime"`
	PlayerCount int            `json:"playerCount"`
	Winner      *SessionPlayer `json:"winner,omitempty"`
	FinalScores []FinalScore   `json:"finalScores"`
	Timestamp   int64          `json:"timestamp"`
}

// TopScore is one leaderboard row.
type TopScore struct {
	Player string  `json:"player"`
	Score  float64 `json:"score"`
}

// GlobalStats is the reporting aggregate; a store failure yields the zero
// value rather than an error.
type GlobalStats struct {
	TotalGames  int64      `json:"totalGames"`
	TopScores   []TopScore `json:"topScores"`
	RecentGames []Result   `json:"recentGames"`
	ActiveRooms int        `json:"activeRooms"`
}
