package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chrisklop/mpcrappyturd/pkg/common/request"
	"github.com/chrisklop/mpcrappyturd/pkg/common/response"
)

const maxGamertagLen = 10

type JoinQueueRequest struct {
	Gamertag string `json:"gamertag"`
	Color    string `json:"color"`
}

type JoinQueueResponse struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

// JoinQueueHandler mints a player id and matches the caller into the first
// waiting room with capacity, creating one if needed. The client then joins
// the room over the websocket with the returned ids.
func (hr *HandlerRepo) JoinQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinQueueRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.JSON(w, http.StatusBadRequest, nil, true, err.Error())
		return
	}

	if req.Gamertag == "" || len(req.Gamertag) > maxGamertagLen {
		response.JSON(w, http.StatusBadRequest, nil, true, "invalid gamertag")
		return
	}

	playerID := uuid.NewString()
	room, err := hr.rooms.FindOrCreateRoom(r.Context(), playerID)
	if err != nil {
		hr.logger.Error("join queue failed", "error", err)
		response.JSON(w, http.StatusInternalServerError, nil, true, "failed to join queue")
		return
	}

	resp := JoinQueueResponse{PlayerID: playerID, RoomID: room.ID}
	if err := response.JSON(w, http.StatusOK, resp, false, "joined queue successfully"); err != nil {
		response.JSON(w, http.StatusInternalServerError, nil, true, err.Error())
	}
}
