package game

import "time"

// Gameplay tuning. Obstacle difficulty scales with elapsed session time: gaps
// shrink to a floor, speed grows without a cap.
const (
	TickRate     = 60
	TickInterval = time.Second / TickRate

	// MaxPositionDelta bounds client movement reports, px per second.
	MaxPositionDelta = 200.0

	SpawnX = 100.0
	SpawnY = 300.0

	FieldWidth  = 800.0
	FieldHeight = 600.0
	MaxVelocity = 1000.0

	// Obstacles spawn off the right edge and are culled well past the left.
	ObstacleSpawnX = 800.0
	ObstacleCullX  = -200.0
	VisibleMinX    = -100.0
	VisibleMaxX    = 900.0

	MinGapSize    = 100.0
	GapShrinkRate = 2.0 // px per second of game time
	BaseSpeed     = 180.0
	SpeedGrowth   = 10.0 // px/s gained per second of game time

	GapYBase   = 150.0
	GapYSpread = 200.0

	firstSpawnDelayMs = 2000
	spawnLookaheadMs  = 5000
	spawnIntervalMs   = 2000
	spawnJitterMs     = 1000

	// Score plausibility: ~10 points per 2 s of play, with a 2x safety margin.
	scoreInterval   = 2.0
	scorePerPass    = 10
	scoreMultiplier = 2

	SessionTTL   = 30 * time.Minute
	HistoryLimit = 1000
)

// obstacleType is one row of the fixed category table.
type obstacleType struct {
	kind    string
	visual  string
	width   float64
	gapSize float64
}

var obstacleTypes = []obstacleType{
	{kind: "pipe", visual: "pipe", width: 80, gapSize: 150},
	{kind: "creature", visual: "rat", width: 60, gapSize: 120},
	{kind: "creature", visual: "gator", width: 100, gapSize: 180},
}
