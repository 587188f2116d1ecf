package rooms

// Room statuses. Transitions run waiting -> starting -> playing -> finished.
const (
	StatusWaiting  = "waiting"
	StatusStarting = "starting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// GameModeElimination is the only mode right now: last player alive wins.
const GameModeElimination = "elimination"

// PlayerData is what a client supplies about itself when joining.
type PlayerData struct {
	Gamertag string `json:"gamertag"`
	Color    string `json:"color"`
	SocketID string `json:"socketId"`
}

// Player is a room member. JoinedAt and LastUpdate are unix milliseconds.
type Player struct {
	ID         string `json:"id"`
	Gamertag   string `json:"gamertag"`
	Color      string `json:"color"`
	SocketID   string `json:"socketId"`
	JoinedAt   int64  `json:"joinedAt"`
	Ready      bool   `json:"ready"`
	Connected  bool   `json:"connected"`
	Score      int    `json:"score"`
	Eliminated bool   `json:"eliminated"`
}

type Settings struct {
	MaxPlayers int    `json:"maxPlayers"`
	GameMode   string `json:"gameMode"`
}

// Room is the matchmaking/lobby record persisted in the store. Players keep
// insertion order; the earliest remaining player inherits the host role.
type Room struct {
	ID            string   `json:"id"`
	HostID        string   `json:"hostId"`
	Players       []Player `json:"players"`
	Status        string   `json:"status"`
	CreatedAt     int64    `json:"createdAt"`
	GameStartedAt int64    `json:"gameStartedAt,omitempty"`
	Settings      Settings `json:"settings"`
}

// Player returns the member with the given id, or nil.
func (r *Room) Player(playerID string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

// AllReady reports whether every current member has readied up. An empty room
// is never ready.
func (r *Room) AllReady() bool {
	if len(r.Players) == 0 {
		return false
	}
	for i := range r.Players {
		if !r.Players[i].Ready {
			return false
		}
	}
	return true
}

// Stats is a point-in-time aggregate over the advertised rooms.
type Stats struct {
	TotalRooms   int `json:"totalRooms"`
	TotalPlayers int `json:"totalPlayers"`
	WaitingRooms int `json:"waitingRooms"`
	PlayingRooms int `json:"playingRooms"`
	ActiveRooms  int `json:"activeRooms"`
	OnlineCount  int `json:"onlineCount"`
}
