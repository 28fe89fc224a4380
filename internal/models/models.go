package models

// Envelope is the wire format for every race-socket message, both directions.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Event kinds carried by Envelope.
const (
	EventRoomState    = "room:state"
	EventRoomStart    = "room:start"
	EventRoomStarted  = "room:started"
	EventRoomWinner   = "room:winner"
	EventPlayerUpdate = "player:update"
	EventTextNew      = "text:new"
	EventTextMore     = "text:more"
)

// PlayerUpdate is the client→server live-metrics payload.
type PlayerUpdate struct {
	Progress int `json:"progress"`
	WPM      int `json:"wpm"`
	Accuracy int `json:"accuracy"`
}

// RoomStart asks the coordinator to begin the countdown.
type RoomStart struct {
	Seconds int `json:"seconds"`
}

// PlayerView is one roster entry inside a RoomState snapshot.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
	Accuracy int    `json:"accuracy"`
	IsBot    bool   `json:"is_bot"`
}

// RoomState is the full-state snapshot broadcast on every roster or phase
// change. Clients replace their local view with it wholesale.
type RoomState struct {
	Code      string       `json:"code"`
	Started   bool         `json:"started"`
	Countdown int          `json:"countdown"`
	Players   []PlayerView `json:"players"`
}

// RoomStarted signals that the countdown elapsed and the race is running.
type RoomStarted struct {
	Code string `json:"code"`
}

// RoomWinner concludes a race.
type RoomWinner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TextNew delivers a passage to a client.
type TextNew struct {
	Text string `json:"text"`
}

// TextMore asks the server for an additional passage chunk.
type TextMore struct {
	Words int `json:"words,omitempty"`
}
