package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mafia-live/backend/internal/auth"
	"github.com/mafia-live/backend/internal/broadcast"
	"github.com/mafia-live/backend/internal/game"
	"github.com/mafia-live/backend/internal/room"
	"github.com/mafia-live/backend/internal/types"
	"go.uber.org/zap"
)

// waitEvent drains ch until an event with the given name arrives, so tests
// never hang on an unexpected broadcast interleaving.
func waitEvent(t *testing.T, ch <-chan broadcast.Event, name string, within time.Duration) broadcast.Event {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", name)
			}
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", name)
		}
	}
}

// waitRoomView discards room updates until one satisfies the predicate.
// Joins and leaves each broadcast an update, so tests match on content
// rather than position in the stream.
func waitRoomView(t *testing.T, ch <-chan broadcast.Event, within time.Duration, pred func(types.RoomView) bool) types.RoomView {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatal("timed out waiting for matching room update")
		}
		ev := waitEvent(t, ch, types.EvtRoomUpdated, remaining)
		if view := ev.Payload.(types.RoomView); pred(view) {
			return view
		}
	}
}

func noEvent(t *testing.T, ch <-chan broadcast.Event, name string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Name == name {
				t.Fatalf("expected no %q within %v, got %+v", name, within, ev)
			}
		case <-deadline:
			return
		}
	}
}

type recordingSaver struct {
	mu        sync.Mutex
	roomSaves int
	gameSaves int
	destroyed []string
}

func (s *recordingSaver) RoomChanged(*room.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomSaves++
}

func (s *recordingSaver) GameChanged(*game.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameSaves++
}

func (s *recordingSaver) RoomDestroyed(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, code)
}

func (s *recordingSaver) destroyedCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.destroyed...)
}

type rig struct {
	gateway  *broadcast.Gateway
	actor    *Actor
	saver    *recordingSaver
	outboxes map[string]chan broadcast.Event
	released chan string
}

func identity(id string) auth.Identity {
	return auth.Identity{ID: id, DisplayName: "player-" + id}
}

// newRig builds an actor around a 5-cap room hosted by p1 and registers a
// connection per given player (conn id == identity id for brevity).
func newRig(t *testing.T, players ...string) *rig {
	t.Helper()
	r := &rig{
		gateway:  broadcast.NewGateway(zap.NewNop()),
		saver:    &recordingSaver{},
		outboxes: make(map[string]chan broadcast.Event),
		released: make(chan string, 1),
	}

	rm := &room.Room{
		Code:   "TEST42",
		HostID: "p1",
		Settings: room.Settings{
			MaxPlayers:    5,
			Roles:         game.RoleCounts{Mafia: 1, Detective: 1, Doctor: 1, Villager: 2},
			DayDuration:   1,
			NightDuration: 30,
		},
		Members:   []room.Member{{ID: "p1", Name: "player-p1"}},
		Status:    room.StatusWaiting,
		CreatedAt: time.Now(),
	}

	for _, p := range players {
		out := make(chan broadcast.Event, 64)
		r.outboxes[p] = out
		r.gateway.Register(p, p, out)
	}

	release := func(code string) { r.released <- code }
	r.actor = NewActor(context.Background(), rm, release, Config{
		Gateway: r.gateway,
		Saver:   r.saver,
	})
	t.Cleanup(func() { r.actor.Inbox() <- Shutdown{} })
	return r
}

func (r *rig) join(p string) {
	r.actor.Inbox() <- Join{Identity: identity(p), ConnID: p}
}

func (r *rig) out(p string) chan broadcast.Event { return r.outboxes[p] }

func TestActor_JoinBroadcastsRoomUpdate(t *testing.T) {
	r := newRig(t, "p1", "p2")
	r.join("p1")
	r.join("p2")

	view := waitRoomView(t, r.out("p1"), time.Second, func(v types.RoomView) bool {
		return len(v.Members) == 2
	})
	assert.Equal(t, "TEST42", view.Code)
	assert.Equal(t, "p1", view.HostID)

	// The second joiner subscribed before the broadcast, so it sees it too.
	waitEvent(t, r.out("p2"), types.EvtRoomUpdated, time.Second)
}

func TestActor_JoinFullRoomGetsCapacityError(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3", "p4", "p5", "p6")
	for _, p := range []string{"p1", "p2", "p3", "p4", "p5"} {
		r.join(p)
	}
	r.join("p6")

	ev := waitEvent(t, r.out("p6"), types.EvtError, time.Second)
	errEv := ev.Payload.(types.ErrorEvent)
	assert.Equal(t, "CAPACITY", errEv.Code)

	// The failure stayed private.
	noEvent(t, r.out("p1"), types.EvtError, 100*time.Millisecond)
}

func TestActor_NonHostCannotStart(t *testing.T) {
	r := newRig(t, "p1", "p2")
	r.join("p1")
	r.join("p2")

	r.actor.Inbox() <- StartGame{Identity: identity("p2")}
	ev := waitEvent(t, r.out("p2"), types.EvtError, time.Second)
	assert.Equal(t, "PERMISSION", ev.Payload.(types.ErrorEvent).Code)
}

func TestActor_LeaveHandsHostToNextInJoinOrder(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3")
	r.join("p1")
	r.join("p2")
	r.join("p3")
	waitEvent(t, r.out("p3"), types.EvtRoomUpdated, time.Second)

	r.actor.Inbox() <- Leave{Identity: identity("p1")}
	view := waitRoomView(t, r.out("p2"), time.Second, func(v types.RoomView) bool {
		return v.HostID != "p1"
	})
	assert.Equal(t, "p2", view.HostID)
	assert.Len(t, view.Members, 2)
}

func TestActor_LastLeaveDestroysRoom(t *testing.T) {
	r := newRig(t, "p1")
	r.join("p1")
	waitEvent(t, r.out("p1"), types.EvtRoomUpdated, time.Second)

	r.actor.Inbox() <- Leave{Identity: identity("p1")}

	select {
	case code := <-r.released:
		assert.Equal(t, "TEST42", code)
	case <-time.After(time.Second):
		t.Fatal("actor never released its room")
	}
	assert.Equal(t, []string{"TEST42"}, r.saver.destroyedCodes())
}

func TestActor_TTLSweepDestroysExpiredRoom(t *testing.T) {
	r := newRig(t, "p1")
	r.join("p1")
	waitEvent(t, r.out("p1"), types.EvtRoomUpdated, time.Second)

	r.actor.Inbox() <- sweepTTL{now: time.Now().Add(2 * room.TTL)}

	waitEvent(t, r.out("p1"), types.EvtRoomDeleted, time.Second)
	select {
	case <-r.released:
	case <-time.After(time.Second):
		t.Fatal("expired room was not released")
	}
}

// allJoinAndReady brings five players into the room, readies them, and
// starts the game as the host.
func startGame(t *testing.T, r *rig) map[string]game.Role {
	t.Helper()
	players := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, p := range players {
		r.join(p)
	}
	for _, p := range players {
		r.actor.Inbox() <- ToggleReady{Identity: identity(p)}
	}
	r.actor.Inbox() <- StartGame{Identity: identity("p1")}

	roles := make(map[string]game.Role)
	for _, p := range players {
		ev := waitEvent(t, r.out(p), types.EvtGameRole, time.Second)
		roles[p] = game.Role(ev.Payload.(types.RoleReveal).Role)
	}
	return roles
}

func byRole(roles map[string]game.Role) (mafia, detective, doctor string, villagers []string) {
	for p, role := range roles {
		switch role {
		case game.RoleMafia:
			mafia = p
		case game.RoleDetective:
			detective = p
		case game.RoleDoctor:
			doctor = p
		default:
			villagers = append(villagers, p)
		}
	}
	return
}

func TestActor_StartAssignsConfiguredRoleMultiset(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3", "p4", "p5")
	roles := startGame(t, r)

	counts := map[game.Role]int{}
	for _, role := range roles {
		counts[role]++
	}
	assert.Equal(t, map[game.Role]int{
		game.RoleMafia: 1, game.RoleDetective: 1, game.RoleDoctor: 1, game.RoleVillager: 2,
	}, counts)

	ev := waitEvent(t, r.out("p1"), types.EvtGameStarted, time.Second)
	started := ev.Payload.(types.GameStarted)
	assert.Equal(t, string(game.PhaseNightAction), started.Phase)
	assert.NotEmpty(t, started.GameID)

	view, ok := r.actor.State()
	require.True(t, ok)
	require.NotNil(t, view.Session)
	assert.Equal(t, room.StatusInProgress, view.Room.Status)
}

func TestActor_NightAdvancesExactlyOnce(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3", "p4", "p5")
	roles := startGame(t, r)
	mafia, detective, doctor, villagers := byRole(roles)

	act := func(p string, action game.ActionType, target string) {
		r.actor.Inbox() <- PerformAction{Identity: identity(p), Action: string(action), TargetID: target}
	}
	act(mafia, game.ActionKill, villagers[0])
	act(detective, game.ActionInvestigate, mafia)
	act(doctor, game.ActionProtect, villagers[1])

	ev := waitEvent(t, r.out(mafia), types.EvtPhaseChanged, time.Second)
	changed := ev.Payload.(types.PhaseChanged)
	assert.Equal(t, string(game.PhaseDayDiscussion), changed.Phase)
	assert.Equal(t, villagers[0], changed.Eliminated)

	inv := waitEvent(t, r.out(detective), types.EvtInvestigated, time.Second)
	res := inv.Payload.(types.InvestigationResult)
	assert.True(t, res.IsMafia)

	// A straggler action draws a private error and no second transition.
	act(mafia, game.ActionKill, villagers[1])
	waitEvent(t, r.out(mafia), types.EvtError, time.Second)
	noEvent(t, r.out(detective), types.EvtPhaseChanged, 300*time.Millisecond)
}

func TestActor_DayTimerOpensVotingAndVotesCloseIt(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3", "p4", "p5") // DayDuration: 1s
	roles := startGame(t, r)
	mafia, detective, doctor, villagers := byRole(roles)

	act := func(p string, action game.ActionType, target string) {
		r.actor.Inbox() <- PerformAction{Identity: identity(p), Action: string(action), TargetID: target}
	}
	// Doctor saves the kill target: nobody dies, 5 stay alive.
	act(mafia, game.ActionKill, villagers[0])
	act(detective, game.ActionInvestigate, villagers[0])
	act(doctor, game.ActionProtect, villagers[0])
	waitEvent(t, r.out(mafia), types.EvtPhaseChanged, time.Second)

	// Day timer fires after 1s and opens voting.
	ev := waitEvent(t, r.out(mafia), types.EvtPhaseChanged, 3*time.Second)
	assert.Equal(t, string(game.PhaseDayVoting), ev.Payload.(types.PhaseChanged).Phase)

	vote := func(p, target string) {
		r.actor.Inbox() <- CastVote{Identity: identity(p), TargetID: target}
	}
	all := []string{mafia, detective, doctor, villagers[0], villagers[1]}
	for _, p := range all {
		vote(p, villagers[1])
	}

	// Five vote updates, then the phase flips back to night.
	for i := 0; i < len(all); i++ {
		waitEvent(t, r.out(mafia), types.EvtVoteUpdate, time.Second)
	}
	ev = waitEvent(t, r.out(mafia), types.EvtPhaseChanged, time.Second)
	changed := ev.Payload.(types.PhaseChanged)
	assert.Equal(t, string(game.PhaseNightAction), changed.Phase)
	assert.Equal(t, villagers[1], changed.Eliminated)

	view, ok := r.actor.State()
	require.True(t, ok)
	assert.False(t, view.Session.Ended())
}

func TestActor_ChatRelaysToRoom(t *testing.T) {
	r := newRig(t, "p1", "p2")
	r.join("p1")
	r.join("p2")
	waitEvent(t, r.out("p1"), types.EvtRoomUpdated, time.Second)

	r.actor.Inbox() <- Chat{Identity: identity("p2"), Content: "hello"}
	ev := waitEvent(t, r.out("p1"), types.EvtChatMessage, time.Second)
	msg := ev.Payload.(types.ChatMessage)
	assert.Equal(t, "p2", msg.SenderID)
	assert.Equal(t, "hello", msg.Content)
}

func TestActor_KickedPlayerStopsReceivingRoomEvents(t *testing.T) {
	r := newRig(t, "p1", "p2")
	r.join("p1")
	r.join("p2")
	waitEvent(t, r.out("p2"), types.EvtRoomUpdated, time.Second)

	waitRoomView(t, r.out("p1"), time.Second, func(v types.RoomView) bool {
		return len(v.Members) == 2
	})
	r.actor.Inbox() <- Kick{Identity: identity("p1"), TargetID: "p2"}
	view := waitRoomView(t, r.out("p1"), time.Second, func(v types.RoomView) bool {
		return len(v.Members) == 1
	})
	assert.Equal(t, "p1", view.Members[0].ID)

	r.actor.Inbox() <- Chat{Identity: identity("p1"), Content: "secret"}
	noEvent(t, r.out("p2"), types.EvtChatMessage, 200*time.Millisecond)
}

func TestActor_VoteBeforeVotingPhaseIsRejected(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3", "p4", "p5")
	startGame(t, r)

	r.actor.Inbox() <- CastVote{Identity: identity("p1"), TargetID: "p2"}
	ev := waitEvent(t, r.out("p1"), types.EvtError, time.Second)
	assert.Equal(t, "PERMISSION", ev.Payload.(types.ErrorEvent).Code)
}

func TestActor_ActionWithoutGameIsStateError(t *testing.T) {
	r := newRig(t, "p1")
	r.join("p1")

	r.actor.Inbox() <- PerformAction{Identity: identity("p1"), Action: "KILL", TargetID: "p2"}
	ev := waitEvent(t, r.out("p1"), types.EvtError, time.Second)
	assert.Equal(t, "STATE", ev.Payload.(types.ErrorEvent).Code)
}

func TestActor_WrongGameIDIsNotFound(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3", "p4", "p5")
	startGame(t, r)

	r.actor.Inbox() <- PerformAction{Identity: identity("p1"), GameID: "nope", Action: "KILL", TargetID: "p2"}
	ev := waitEvent(t, r.out("p1"), types.EvtError, time.Second)
	assert.Equal(t, "NOT_FOUND", ev.Payload.(types.ErrorEvent).Code)
}

func TestActor_ConcurrentVotesFromDistinctVotersAllLand(t *testing.T) {
	r := newRig(t, "p1", "p2", "p3", "p4", "p5")
	roles := startGame(t, r)
	mafia, detective, doctor, villagers := byRole(roles)

	act := func(p string, action game.ActionType, target string) {
		r.actor.Inbox() <- PerformAction{Identity: identity(p), Action: string(action), TargetID: target}
	}
	act(mafia, game.ActionKill, villagers[0])
	act(detective, game.ActionInvestigate, mafia)
	act(doctor, game.ActionProtect, villagers[0])
	waitEvent(t, r.out(mafia), types.EvtPhaseChanged, time.Second)
	waitEvent(t, r.out(mafia), types.EvtPhaseChanged, 3*time.Second) // timer -> voting

	// Four goroutines fire votes at the same instant; the inbox serializes
	// them and every distinct voter's vote must land.
	voters := []string{mafia, detective, doctor, villagers[0], villagers[1]}
	var wg sync.WaitGroup
	for i, p := range voters[:4] {
		wg.Add(1)
		go func(p string, i int) {
			defer wg.Done()
			r.actor.Inbox() <- CastVote{Identity: identity(p), TargetID: voters[(i+1)%4]}
		}(p, i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		waitEvent(t, r.out(mafia), types.EvtVoteUpdate, time.Second)
	}
	view, ok := r.actor.State()
	require.True(t, ok)
	assert.Len(t, view.Session.VotesSnapshot(), 4)
}

func TestActor_StateSnapshot(t *testing.T) {
	r := newRig(t, "p1")
	r.join("p1")

	view, ok := r.actor.State()
	require.True(t, ok)
	assert.Equal(t, "TEST42", view.Room.Code)
	assert.Nil(t, view.Session)

	// Mutating the snapshot must not touch actor state.
	view.Room.Members = append(view.Room.Members, room.Member{ID: "ghost"})
	again, ok := r.actor.State()
	require.True(t, ok)
	assert.Len(t, again.Room.Members, 1)
}
