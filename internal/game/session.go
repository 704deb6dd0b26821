package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/mafia-live/backend/internal/apperr"
)

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Alive bool   `json:"isAlive"`
}

// Seat is a player slot in join order, before a role is attached.
type Seat struct {
	ID   string
	Name string
}

// Session owns the living roster and the append-only phase log. The last
// entry in Phases is always the current phase. All mutating methods assume
// the caller serializes access per session; the room actor does.
type Session struct {
	ID            string        `json:"id"`
	RoomCode      string        `json:"roomCode"`
	Players       []Player      `json:"players"`
	Phases        []Phase       `json:"phases"`
	Winner        Faction       `json:"winner,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	EndedAt       time.Time     `json:"endedAt,omitempty"`
	DayDuration   time.Duration `json:"dayDuration"`
	NightDuration time.Duration `json:"nightDuration"`
}

// NewSession pairs seats with roles positionally (roles come from
// AssignRoles over the same order) and opens the first night.
func NewSession(roomCode string, seats []Seat, roles []Role, day, night time.Duration, now time.Time) *Session {
	players := make([]Player, len(seats))
	for i, seat := range seats {
		players[i] = Player{ID: seat.ID, Name: seat.Name, Role: roles[i], Alive: true}
	}
	s := &Session{
		ID:            uuid.NewString(),
		RoomCode:      roomCode,
		Players:       players,
		StartedAt:     now,
		DayDuration:   day,
		NightDuration: night,
	}
	s.openPhase(PhaseNightAction, now)
	return s
}

func (s *Session) CurrentPhase() *Phase {
	return &s.Phases[len(s.Phases)-1]
}

func (s *Session) Ended() bool { return !s.EndedAt.IsZero() }

func (s *Session) player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *Session) aliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

func (s *Session) openPhase(t PhaseType, now time.Time) {
	d := s.DayDuration
	if t == PhaseNightAction {
		d = s.NightDuration
	}
	s.Phases = append(s.Phases, newPhase(t, now, d))
}

func (s *Session) end(w Faction, now time.Time) {
	s.Winner = w
	s.EndedAt = now
}

// Investigation is a detective's private night result.
type Investigation struct {
	Detective string
	Target    string
	IsMafia   bool
}

// NightOutcome reports what happened when a night phase completed.
type NightOutcome struct {
	Eliminated     string
	Investigations []Investigation
	Winner         Faction
	NextPhase      PhaseType
}

// PerformAction records actor's night action. A repeat submission by the
// same actor overwrites the earlier one. When every living action-capable
// player has an action on record, the night resolves and the phase
// advances; the returned outcome is nil until then.
func (s *Session) PerformAction(actor string, action ActionType, target string, now time.Time) (*NightOutcome, error) {
	if s.Ended() {
		return nil, apperr.E(apperr.CodeState, "game already ended")
	}
	p := s.player(actor)
	if p == nil || !p.Alive {
		return nil, apperr.E(apperr.CodePermission, "dead players cannot perform actions")
	}
	ph := s.CurrentPhase()
	if !actionLegal(p.Role, action, ph.Type) {
		return nil, apperr.E(apperr.CodePermission, "invalid action for role or phase")
	}
	t := s.player(target)
	if t == nil || !t.Alive {
		return nil, apperr.E(apperr.CodeValidation, "target is not a living player")
	}

	entry := Action{Player: actor, Type: action, Target: target}
	replaced := false
	for i := range ph.Actions {
		if ph.Actions[i].Player == actor {
			ph.Actions[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		ph.Actions = append(ph.Actions, entry)
	}

	if !s.nightComplete(ph) {
		return nil, nil
	}
	return s.resolveNight(ph, now), nil
}

// nightComplete holds once the phase has exactly one action per living
// action-capable player. Overwrite semantics guarantee one entry per actor.
func (s *Session) nightComplete(ph *Phase) bool {
	needed := 0
	for _, p := range s.Players {
		if p.Alive && nightAction[p.Role] != "" {
			needed++
		}
	}
	return len(ph.Actions) == needed
}

func (s *Session) resolveNight(ph *Phase, now time.Time) *NightOutcome {
	out := &NightOutcome{}

	protected := make(map[string]bool)
	for _, a := range ph.Actions {
		if a.Type == ActionProtect {
			protected[a.Target] = true
		}
	}
	var killed string
	for _, a := range ph.Actions {
		if a.Type == ActionKill {
			killed = a.Target
		}
	}
	if killed != "" && !protected[killed] {
		s.player(killed).Alive = false
		ph.Eliminated = killed
		out.Eliminated = killed
	}
	for _, a := range ph.Actions {
		if a.Type == ActionInvestigate {
			out.Investigations = append(out.Investigations, Investigation{
				Detective: a.Player,
				Target:    a.Target,
				IsMafia:   s.player(a.Target).Role == RoleMafia,
			})
		}
	}

	if w, won := EvaluateWin(s.Players); won {
		s.end(w, now)
		out.Winner = w
	} else {
		out.NextPhase = ph.Type.next()
		s.openPhase(out.NextPhase, now)
	}
	return out
}

// AdvanceDiscussion moves DAY_DISCUSSION to DAY_VOTING when the day timer
// fires. Any other current phase means a competing trigger already advanced
// the session, so the call is a no-op.
func (s *Session) AdvanceDiscussion(now time.Time) bool {
	if s.Ended() {
		return false
	}
	ph := s.CurrentPhase()
	if ph.Type != PhaseDayDiscussion {
		return false
	}
	s.openPhase(ph.Type.next(), now)
	return true
}

// VoteOutcome reports how a voting phase closed. Votes is the final tally
// snapshot, taken before the next phase opens.
type VoteOutcome struct {
	Eliminated string
	Tie        bool
	Votes      map[string]string
	Winner     Faction
	NextPhase  PhaseType
}

// CastVote upserts the voter's entry, last write wins. Once every living
// player has a live vote the phase closes: the top target is eliminated, a
// tie eliminates nobody, and the session either ends or opens the next
// night. The returned outcome is nil while votes are still outstanding.
func (s *Session) CastVote(voter, target string, now time.Time) (*VoteOutcome, error) {
	if s.Ended() {
		return nil, apperr.E(apperr.CodeState, "game already ended")
	}
	p := s.player(voter)
	if p == nil || !p.Alive {
		return nil, apperr.E(apperr.CodePermission, "dead players cannot vote")
	}
	ph := s.CurrentPhase()
	if ph.Type != PhaseDayVoting {
		return nil, apperr.E(apperr.CodePermission, "voting is only allowed during the day voting phase")
	}
	t := s.player(target)
	if t == nil || !t.Alive {
		return nil, apperr.E(apperr.CodeValidation, "target is not a living player")
	}

	ph.Votes[voter] = target

	if len(ph.Votes) != s.aliveCount() {
		return nil, nil
	}
	return s.closeVoting(ph, now), nil
}

func (s *Session) closeVoting(ph *Phase, now time.Time) *VoteOutcome {
	tally := make(map[string]int)
	for _, target := range ph.Votes {
		tally[target]++
	}
	top, topCount, tied := "", 0, false
	for target, n := range tally {
		switch {
		case n > topCount:
			top, topCount, tied = target, n, false
		case n == topCount:
			tied = true
		}
	}

	out := &VoteOutcome{Tie: tied, Votes: make(map[string]string, len(ph.Votes))}
	for voter, target := range ph.Votes {
		out.Votes[voter] = target
	}
	if !tied {
		s.player(top).Alive = false
		ph.Eliminated = top
		out.Eliminated = top
	}

	if w, won := EvaluateWin(s.Players); won {
		s.end(w, now)
		out.Winner = w
	} else {
		out.NextPhase = ph.Type.next()
		s.openPhase(out.NextPhase, now)
	}
	return out
}

// VotesSnapshot copies the current phase's vote map for broadcasting.
func (s *Session) VotesSnapshot() map[string]string {
	votes := s.CurrentPhase().Votes
	snap := make(map[string]string, len(votes))
	for voter, target := range votes {
		snap[voter] = target
	}
	return snap
}

// Clone deep-copies the session for handoff to the persist queue.
func (s *Session) Clone() *Session {
	c := *s
	c.Players = append([]Player(nil), s.Players...)
	c.Phases = make([]Phase, len(s.Phases))
	for i, ph := range s.Phases {
		cp := ph
		cp.Votes = make(map[string]string, len(ph.Votes))
		for voter, target := range ph.Votes {
			cp.Votes[voter] = target
		}
		cp.Actions = append([]Action(nil), ph.Actions...)
		c.Phases[i] = cp
	}
	return &c
}
