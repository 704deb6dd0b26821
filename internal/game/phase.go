package game

import "time"

type PhaseType string

const (
	PhaseNightAction   PhaseType = "NIGHT_ACTION"
	PhaseDayDiscussion PhaseType = "DAY_DISCUSSION"
	PhaseDayVoting     PhaseType = "DAY_VOTING"
)

// phaseOrder is the single source of truth for the cycle. Night leads into
// discussion, discussion into voting, voting wraps back to night unless the
// session ends first.
var phaseOrder = map[PhaseType]PhaseType{
	PhaseNightAction:   PhaseDayDiscussion,
	PhaseDayDiscussion: PhaseDayVoting,
	PhaseDayVoting:     PhaseNightAction,
}

func (p PhaseType) next() PhaseType { return phaseOrder[p] }

type ActionType string

const (
	ActionKill        ActionType = "KILL"
	ActionInvestigate ActionType = "INVESTIGATE"
	ActionProtect     ActionType = "PROTECT"
)

// nightAction maps each action-capable role to its one legal night action.
// A (role, action, phase) triple is legal iff the phase is NIGHT_ACTION and
// this table maps the role to exactly that action.
var nightAction = map[Role]ActionType{
	RoleMafia:     ActionKill,
	RoleDetective: ActionInvestigate,
	RoleDoctor:    ActionProtect,
}

func actionLegal(role Role, action ActionType, phase PhaseType) bool {
	if phase != PhaseNightAction {
		return false
	}
	want, ok := nightAction[role]
	return ok && want == action
}

type Action struct {
	Player string     `json:"player"`
	Type   ActionType `json:"action"`
	Target string     `json:"target"`
}

// Phase is one timed segment of a round. Votes hold one live entry per
// voter, last write wins. Actions are ordered; a repeat submission by the
// same actor overwrites in place.
type Phase struct {
	Type       PhaseType         `json:"type"`
	StartTime  time.Time         `json:"startTime"`
	EndTime    time.Time         `json:"endTime"`
	Votes      map[string]string `json:"votes"`
	Actions    []Action          `json:"actions"`
	Eliminated string            `json:"eliminated,omitempty"`
}

func newPhase(t PhaseType, start time.Time, d time.Duration) Phase {
	return Phase{
		Type:      t,
		StartTime: start,
		EndTime:   start.Add(d),
		Votes:     make(map[string]string),
	}
}
