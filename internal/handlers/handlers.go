package handlers

import (
	"log/slog"

	"github.com/chrisklop/mpcrappyturd/internal/game"
	"github.com/chrisklop/mpcrappyturd/internal/rooms"
)

// HandlerRepo holds all the dependencies required by the HTTP handlers: the
// application logger plus the room and game managers.
type HandlerRepo struct {
	logger *slog.Logger
	rooms  *rooms.Manager
	games  *game.Manager
}

func NewHandlerRepo(logger *slog.Logger, roomMgr *rooms.Manager, gameMgr *game.Manager) *HandlerRepo {
	return &HandlerRepo{
		logger: logger,
		rooms:  roomMgr,
		games:  gameMgr,
	}
}
