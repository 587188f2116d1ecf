package game

import (
	"fmt"
	"math/rand"
)

// generateObstacles keeps the spawn look-ahead window full: while the next
// scheduled spawn falls within it, emit one obstacle from the category table
// and push the schedule forward by 2-3 s. Difficulty scales with elapsed game
// time. Callers hold the session mutex.
func generateObstacles(s *Session, now int64) {
	gameTime := float64(now-s.StartTime) / 1000

	for s.NextSpawnAt <= now+spawnLookaheadMs {
		ot := obstacleTypes[rand.Intn(len(obstacleTypes))]

		gap := ot.gapSize - gameTime*GapShrinkRate
		if gap < MinGapSize {
			gap = MinGapSize
		}

		s.Obstacles = append(s.Obstacles, Obstacle{
			ID:        fmt.Sprintf("obs_%d", s.ObstacleCounter),
			X:         ObstacleSpawnX,
			Type:      ot.kind,
			Visual:    ot.visual,
			Width:     ot.width,
			GapY:      GapYBase + rand.Float64()*GapYSpread,
			GapSize:   gap,
			Speed:     BaseSpeed + gameTime*SpeedGrowth,
			SpawnTime: s.NextSpawnAt,
		})
		s.ObstacleCounter++
		s.NextSpawnAt += spawnIntervalMs + rand.Int63n(spawnJitterMs)
	}
}

// cullObstacles drops obstacles that scrolled far enough past the left edge.
// Callers hold the session mutex.
func cullObstacles(s *Session) {
	kept := s.Obstacles[:0]
	for _, obs := range s.Obstacles {
		if obs.X > ObstacleCullX {
			kept = append(kept, obs)
		}
	}
	s.Obstacles = kept
}
