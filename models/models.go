// models/models.go
package models

import (
	"time"
)

// GameStatus drives the entire room lifecycle. Transitions are strictly
// forward on a single game; a replay creates a new game document instead.
type GameStatus string

const (
	StatusWaiting   GameStatus = "waiting"
	StatusCountdown GameStatus = "countdown"
	StatusRunning   GameStatus = "running"
	StatusFinished  GameStatus = "finished"
)

// Vote is a player's post-race decision. Write-once.
type Vote string

const (
	VoteNone   Vote = ""
	VoteReplay Vote = "replay"
	VoteExit   Vote = "exit"
)

// Game configuration constants.
const (
	MaxPlayers       = 5
	CountdownSeconds = 3
	DefaultDuration  = 30 // seconds, informational

	// FinishGraceDelay is the pause between the last player finishing and
	// the game flipping to finished, so the UI can show a short
	// "waiting for others" beat instead of snapping to results.
	FinishGraceDelay = 2500 * time.Millisecond
)

// Palette lists the car colors assigned to players by join order.
// Its length equals MaxPlayers, so every player gets a distinct color.
var Palette = []string{"red", "blue", "green", "purple", "orange"}

// Room is the stable URL target (/room/<id>) that survives replays.
// CurrentGameID is empty only mid-creation; the room is inserted before its
// first game to break the circular reference, then patched in the same
// transaction.
type Room struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	HostID        string    `gorm:"not null" json:"hostId"`
	CurrentGameID string    `gorm:"index" json:"currentGameId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Game is a single race within a room. Deleted only with its room.
type Game struct {
	ID                 string     `gorm:"primaryKey" json:"id"`
	RoomID             string     `gorm:"index;not null" json:"roomId"`
	Passage            string     `gorm:"not null" json:"passage"`
	Status             GameStatus `gorm:"not null" json:"status"`
	HostID             string     `gorm:"not null" json:"hostId"`
	Duration           int        `gorm:"not null" json:"duration"`
	CountdownStartedAt *time.Time `json:"countdownStartedAt,omitempty"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Player is one participant's record within one game, not a cross-game
// identity. A replay copies name/color/guestId into fresh rows with all
// counters reset.
type Player struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	GameID          string     `gorm:"index;uniqueIndex:idx_players_game_guest;not null" json:"gameId"`
	GuestID         string     `gorm:"uniqueIndex:idx_players_game_guest;not null" json:"guestId"`
	Name            string     `gorm:"not null" json:"name"`
	Color           string     `gorm:"not null" json:"color"`
	TypedLength     int        `gorm:"not null" json:"typedLength"`
	TotalKeystrokes int        `gorm:"not null" json:"totalKeystrokes"`
	Errors          int        `gorm:"not null" json:"errors"`
	Finished        bool       `gorm:"not null" json:"finished"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	Vote            Vote       `json:"vote,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ScheduledTask is a delayed internal mutation persisted alongside the game
// state so countdowns survive a process restart. Delivered at least once;
// handlers guard with a state check.
type ScheduledTask struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Task      string    `gorm:"not null" json:"task"`
	Payload   string    `gorm:"not null" json:"payload"`
	RunAt     time.Time `gorm:"index;not null" json:"runAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is the joined room/game/players view powering the UI. Always
// assembled inside a single transaction so clients never see a stitched
// view across writes.
type Snapshot struct {
	Room    Room     `json:"room"`
	Game    Game     `json:"game"`
	Players []Player `json:"players"`
}
