package store

import (
	"context"
	"time"
)

// ScoredMember is one entry of a score-ranked collection.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the persistence contract the room and game managers run on: plain
// values with expiry, sets, bounded lists and a score-ranked collection. The
// redis backend is the normal one; the memory backend serves tests and the
// degraded mode when redis is unreachable.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	LPush(ctx context.Context, key, value string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
}

// Key layout shared by the managers.
const (
	ActiveRoomsKey = "active_rooms"
	HistoryKey     = "game_history"
	LeaderboardKey = "global_leaderboard"
)

func RoomKey(roomID string) string { return "room:" + roomID }
func GameKey(roomID string) string { return "game:" + roomID }
