package room

import (
	"time"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/game"
)

const (
	MinPlayers = 5
	MaxPlayers = 15

	// TTL is how long a room lives after creation, regardless of activity.
	TTL = time.Hour
)

type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusStarting   Status = "STARTING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

type Settings struct {
	MaxPlayers    int             `json:"maxPlayers"`
	Roles         game.RoleCounts `json:"roles"`
	DayDuration   int             `json:"dayDuration"`   // seconds
	NightDuration int             `json:"nightDuration"` // seconds
}

func (s Settings) Validate() error {
	if s.MaxPlayers < MinPlayers || s.MaxPlayers > MaxPlayers {
		return apperr.E(apperr.CodeValidation,
			"maxPlayers must be between %d and %d", MinPlayers, MaxPlayers)
	}
	if err := s.Roles.Validate(); err != nil {
		return err
	}
	if s.DayDuration <= 0 || s.NightDuration <= 0 {
		return apperr.E(apperr.CodeValidation, "phase durations must be positive")
	}
	return nil
}

type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"isReady"`
}

// Room is a pre-game lobby. Members keep join order; the slice is never
// re-sorted so host succession stays deterministic. All mutations go
// through the owning room actor.
type Room struct {
	Code      string    `json:"code"`
	HostID    string    `json:"hostId"`
	Settings  Settings  `json:"settings"`
	Members   []Member  `json:"members"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Room) member(id string) *Member {
	for i := range r.Members {
		if r.Members[i].ID == id {
			return &r.Members[i]
		}
	}
	return nil
}

func (r *Room) IsMember(id string) bool { return r.member(id) != nil }

func (r *Room) IsHost(id string) bool { return r.HostID == id }

func (r *Room) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) >= ttl
}

// Join appends a new member, not ready. Re-joining is idempotent.
func (r *Room) Join(id, name string) error {
	if r.Status != StatusWaiting {
		return apperr.E(apperr.CodeState, "game already in progress")
	}
	if r.member(id) != nil {
		return nil
	}
	if len(r.Members) >= r.Settings.MaxPlayers {
		return apperr.E(apperr.CodeCapacity, "room is full")
	}
	r.Members = append(r.Members, Member{ID: id, Name: name})
	return nil
}

// Leave removes the member. When the host leaves, the first remaining
// member in join order becomes host. Reports whether the room emptied.
func (r *Room) Leave(id string) (empty bool) {
	for i := range r.Members {
		if r.Members[i].ID == id {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			break
		}
	}
	if len(r.Members) == 0 {
		return true
	}
	if r.HostID == id {
		r.HostID = r.Members[0].ID
	}
	return false
}

// SetReady sets the member's flag; unknown members are a no-op.
func (r *Room) SetReady(id string, ready bool) {
	if m := r.member(id); m != nil {
		m.Ready = ready
	}
}

// ToggleReady flips the member's flag; unknown members are a no-op.
func (r *Room) ToggleReady(id string) {
	if m := r.member(id); m != nil {
		m.Ready = !m.Ready
	}
}

func (r *Room) SetStatus(s Status) { r.Status = s }

func (r *Room) MemberName(id string) string {
	if m := r.member(id); m != nil {
		return m.Name
	}
	return id
}

func (r *Room) AllReady() bool {
	for _, m := range r.Members {
		if !m.Ready {
			return false
		}
	}
	return true
}

// Kick removes target on the host's behalf.
func (r *Room) Kick(hostID, targetID string) error {
	if !r.IsHost(hostID) {
		return apperr.E(apperr.CodePermission, "only the host can kick players")
	}
	if hostID == targetID {
		return apperr.E(apperr.CodeValidation, "host cannot kick themselves")
	}
	if r.member(targetID) == nil {
		return apperr.E(apperr.CodeNotFound, "player is not in the room")
	}
	r.Leave(targetID)
	return nil
}

// UpdateSettings replaces the settings while the room is still waiting.
func (r *Room) UpdateSettings(hostID string, s Settings) error {
	if !r.IsHost(hostID) {
		return apperr.E(apperr.CodePermission, "only the host can change settings")
	}
	if r.Status != StatusWaiting {
		return apperr.E(apperr.CodeState, "settings are locked once the game starts")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if len(r.Members) > s.MaxPlayers {
		return apperr.E(apperr.CodeValidation, "maxPlayers below current member count")
	}
	r.Settings = s
	return nil
}

// CanStart checks the start preconditions: enough members, not over the
// configured cap, everyone ready, roles summing to the member count.
func (r *Room) CanStart() error {
	if r.Status != StatusWaiting {
		return apperr.E(apperr.CodeState, "game already started")
	}
	if len(r.Members) < MinPlayers || len(r.Members) > r.Settings.MaxPlayers {
		return apperr.E(apperr.CodeState,
			"need between %d and %d players to start", MinPlayers, r.Settings.MaxPlayers)
	}
	if !r.AllReady() {
		return apperr.E(apperr.CodeState, "not all players are ready")
	}
	if r.Settings.Roles.Total() != len(r.Members) {
		return apperr.E(apperr.CodeValidation,
			"role counts sum to %d, want %d players", r.Settings.Roles.Total(), len(r.Members))
	}
	return nil
}

// Seats returns the members in join order for role assignment.
func (r *Room) Seats() []game.Seat {
	seats := make([]game.Seat, len(r.Members))
	for i, m := range r.Members {
		seats[i] = game.Seat{ID: m.ID, Name: m.Name}
	}
	return seats
}

// Clone deep-copies the room for handoff to the persist queue.
func (r *Room) Clone() *Room {
	c := *r
	c.Members = append([]Member(nil), r.Members...)
	return &c
}
