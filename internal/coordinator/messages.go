package coordinator

import (
	"time"

	"github.com/mafia-live/backend/internal/auth"
	"github.com/mafia-live/backend/internal/game"
	"github.com/mafia-live/backend/internal/room"
)

// Msg is the closed set of messages a room actor processes. Everything
// that mutates one room or its game session flows through the actor's
// inbox, which is what serializes concurrent participants.
type Msg interface{ isRoomMsg() }

type Join struct {
	Identity auth.Identity
	ConnID   string
}

type Leave struct {
	Identity auth.Identity
}

type ToggleReady struct {
	Identity auth.Identity
}

type UpdateSettings struct {
	Identity auth.Identity
	Settings room.Settings
}

type Kick struct {
	Identity auth.Identity
	TargetID string
}

type StartGame struct {
	Identity auth.Identity
}

type PerformAction struct {
	Identity auth.Identity
	GameID   string
	Action   string
	TargetID string
}

type CastVote struct {
	Identity auth.Identity
	GameID   string
	TargetID string
}

type Chat struct {
	Identity auth.Identity
	Content  string
}

// phaseTimeout is the day-discussion timer firing. Gen guards against
// stale fires from timers armed for an earlier phase.
type phaseTimeout struct{ gen int }

// sweepTTL comes from the hub's background sweep.
type sweepTTL struct{ now time.Time }

// GetState reflects internal state without data races; used by the hub's
// room listing and by tests.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()           {}
func (Leave) isRoomMsg()          {}
func (ToggleReady) isRoomMsg()    {}
func (UpdateSettings) isRoomMsg() {}
func (Kick) isRoomMsg()           {}
func (StartGame) isRoomMsg()      {}
func (PerformAction) isRoomMsg()  {}
func (CastVote) isRoomMsg()       {}
func (Chat) isRoomMsg()           {}
func (phaseTimeout) isRoomMsg()   {}
func (sweepTTL) isRoomMsg()       {}
func (GetState) isRoomMsg()       {}
func (Shutdown) isRoomMsg()       {}

// View is a copy of the actor's state at one instant.
type View struct {
	Room    room.Room
	Session *game.Session
}

// Saver receives cloned snapshots after each mutation. The actor never
// waits on it.
type Saver interface {
	RoomChanged(*room.Room)
	GameChanged(*game.Session)
	RoomDestroyed(code string)
}

type noopSaver struct{}

func (noopSaver) RoomChanged(*room.Room)    {}
func (noopSaver) GameChanged(*game.Session) {}
func (noopSaver) RoomDestroyed(string)      {}
