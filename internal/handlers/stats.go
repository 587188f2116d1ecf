package handlers

import (
	"net/http"
	"time"

	"github.com/chrisklop/mpcrappyturd/internal/game"
	"github.com/chrisklop/mpcrappyturd/pkg/common/response"
)

func (hr *HandlerRepo) HealthHandler(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	}
	if err := response.JSON(w, http.StatusOK, payload, false, "ok"); err != nil {
		hr.logger.Error("failed to write health response", "error", err)
	}
}

// combinedStats merges the game-level and room-level aggregates into the flat
// shape clients expect.
type combinedStats struct {
	TotalGames   int64           `json:"totalGames"`
	TopScores    []game.TopScore `json:"topScores"`
	RecentGames  []game.Result   `json:"recentGames"`
	TotalRooms   int             `json:"totalRooms"`
	TotalPlayers int             `json:"totalPlayers"`
	WaitingRooms int             `json:"waitingRooms"`
	PlayingRooms int             `json:"playingRooms"`
	ActiveRooms  int             `json:"activeRooms"`
	OnlineCount  int             `json:"onlineCount"`
}

func (hr *HandlerRepo) StatsHandler(w http.ResponseWriter, r *http.Request) {
	gameStats := hr.games.Stats(r.Context())
	roomStats := hr.rooms.RoomStats(r.Context())

	stats := combinedStats{
		TotalGames:   gameStats.TotalGames,
		TopScores:    gameStats.TopScores,
		RecentGames:  gameStats.RecentGames,
		TotalRooms:   roomStats.TotalRooms,
		TotalPlayers: roomStats.TotalPlayers,
		WaitingRooms: roomStats.WaitingRooms,
		PlayingRooms: roomStats.PlayingRooms,
		ActiveRooms:  roomStats.ActiveRooms,
		OnlineCount:  roomStats.OnlineCount,
	}

	if err := response.JSON(w, http.StatusOK, stats, false, "get stats successfully"); err != nil {
		response.JSON(w, http.StatusInternalServerError, nil, true, err.Error())
	}
}
