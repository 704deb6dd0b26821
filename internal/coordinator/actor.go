package coordinator

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/broadcast"
	"github.com/mafia-live/backend/internal/game"
	"github.com/mafia-live/backend/internal/room"
	"github.com/mafia-live/backend/internal/types"
)

// Actor owns one room and its game session. A single goroutine drains the
// inbox, so all read-modify-write against the room is serialized; the
// completeness and timer triggers for phase advancement both land here and
// whichever arrives second observes the advanced state and no-ops.
type Actor struct {
	inbox   chan Msg
	room    *room.Room
	session *game.Session

	gateway *broadcast.Gateway
	saver   Saver
	log     *zap.Logger
	rng     *rand.Rand
	ttl     time.Duration

	timerGen int
	timer    *time.Timer
	release  func(code string)

	ctx    context.Context
	cancel context.CancelFunc
}

// Config carries the collaborators an actor needs. Zero-value fields get
// working defaults.
type Config struct {
	Gateway *broadcast.Gateway
	Saver   Saver
	Log     *zap.Logger
	Rand    *rand.Rand
	TTL     time.Duration
}

func NewActor(parent context.Context, r *room.Room, release func(code string), cfg Config) *Actor {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Saver == nil {
		cfg.Saver = noopSaver{}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.TTL == 0 {
		cfg.TTL = room.TTL
	}
	if release == nil {
		release = func(string) {}
	}

	a := &Actor{
		inbox:   make(chan Msg, 64),
		room:    r,
		gateway: cfg.Gateway,
		saver:   cfg.Saver,
		log:     cfg.Log.With(zap.String("room", r.Code)),
		rng:     cfg.Rand,
		ttl:     cfg.TTL,
		release: release,
		ctx:     ctx,
		cancel:  cancel,
	}
	go a.loop()
	return a
}

func (a *Actor) Inbox() chan<- Msg { return a.inbox }

// State snapshots the actor's room and session without data races. The
// second return is false when the actor has already shut down.
func (a *Actor) State() (View, bool) {
	reply := make(chan View, 1)
	select {
	case a.inbox <- GetState{Reply: reply}:
	case <-a.ctx.Done():
		return View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-a.ctx.Done():
		return View{}, false
	}
}

func (a *Actor) loop() {
	for {
		select {
		case <-a.ctx.Done():
			a.stopTimer()
			return
		case m := <-a.inbox:
			a.handle(m)
		}
	}
}

func (a *Actor) handle(m Msg) {
	switch msg := m.(type) {
	case Join:
		a.handleJoin(msg)
	case Leave:
		a.handleLeave(msg)
	case ToggleReady:
		a.handleToggleReady(msg)
	case UpdateSettings:
		a.handleUpdateSettings(msg)
	case Kick:
		a.handleKick(msg)
	case StartGame:
		a.handleStartGame(msg)
	case PerformAction:
		a.handlePerformAction(msg)
	case CastVote:
		a.handleCastVote(msg)
	case Chat:
		a.handleChat(msg)
	case phaseTimeout:
		a.handlePhaseTimeout(msg)
	case sweepTTL:
		if a.room.Expired(msg.now, a.ttl) {
			a.destroy()
		}
	case GetState:
		view := View{Room: *a.room.Clone()}
		if a.session != nil {
			view.Session = a.session.Clone()
		}
		msg.Reply <- view
	case Shutdown:
		a.stopTimer()
		a.cancel()
	}
}

// emitErr converts a component failure into a private error event for the
// originating participant. Nothing else in the room is affected.
func (a *Actor) emitErr(identityID string, err error) {
	a.log.Debug("request rejected", zap.String("identity", identityID), zap.Error(err))
	a.gateway.EmitToIdentity(identityID, types.EvtError, types.ErrorEvent{
		Code:    string(apperr.CodeOf(err)),
		Message: apperr.MessageOf(err),
	})
}

func (a *Actor) broadcastRoom() {
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtRoomUpdated, types.NewRoomView(a.room))
}

func (a *Actor) systemChat(content string) {
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtChatSystem, types.SystemMessage{
		Content:   content,
		Timestamp: time.Now(),
	})
}

// ensureActive re-validates existence right before a mutation. The TTL
// sweep is an independent trigger, so an expired room may still have an
// actor for a moment; any message racing the sweep finds out here.
func (a *Actor) ensureActive(identityID string) bool {
	if a.room.Expired(time.Now(), a.ttl) {
		a.destroy()
		a.emitErr(identityID, apperr.E(apperr.CodeNotFound, "room not found"))
		return false
	}
	return true
}

func (a *Actor) handleJoin(m Join) {
	if !a.ensureActive(m.Identity.ID) {
		return
	}
	if err := a.room.Join(m.Identity.ID, m.Identity.DisplayName); err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	// Subscribe before broadcasting so the joiner sees its own join.
	a.gateway.JoinRoom(m.ConnID, a.room.Code)
	a.saver.RoomChanged(a.room)
	a.broadcastRoom()
	a.systemChat(m.Identity.DisplayName + " joined the room")
}

func (a *Actor) handleLeave(m Leave) {
	if !a.room.IsMember(m.Identity.ID) {
		return
	}
	a.gateway.LeaveRoomByIdentity(m.Identity.ID, a.room.Code)
	if empty := a.room.Leave(m.Identity.ID); empty {
		a.destroy()
		return
	}
	a.saver.RoomChanged(a.room)
	a.broadcastRoom()
	a.systemChat(m.Identity.DisplayName + " left the room")
}

func (a *Actor) handleToggleReady(m ToggleReady) {
	if !a.ensureActive(m.Identity.ID) {
		return
	}
	a.room.ToggleReady(m.Identity.ID)
	a.saver.RoomChanged(a.room)
	a.broadcastRoom()
}

func (a *Actor) handleUpdateSettings(m UpdateSettings) {
	if !a.ensureActive(m.Identity.ID) {
		return
	}
	if err := a.room.UpdateSettings(m.Identity.ID, m.Settings); err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	a.saver.RoomChanged(a.room)
	a.broadcastRoom()
}

func (a *Actor) handleKick(m Kick) {
	if !a.ensureActive(m.Identity.ID) {
		return
	}
	kickedName := a.room.MemberName(m.TargetID)
	if err := a.room.Kick(m.Identity.ID, m.TargetID); err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	a.gateway.LeaveRoomByIdentity(m.TargetID, a.room.Code)
	a.saver.RoomChanged(a.room)
	a.broadcastRoom()
	a.systemChat(kickedName + " was kicked from the room")
}

func (a *Actor) handleStartGame(m StartGame) {
	if !a.ensureActive(m.Identity.ID) {
		return
	}
	if !a.room.IsHost(m.Identity.ID) {
		a.emitErr(m.Identity.ID, apperr.E(apperr.CodePermission, "only the host can start the game"))
		return
	}
	if err := a.room.CanStart(); err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	roles, err := game.AssignRoles(len(a.room.Members), a.room.Settings.Roles, a.rng)
	if err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}

	now := time.Now()
	a.session = game.NewSession(a.room.Code, a.room.Seats(), roles,
		time.Duration(a.room.Settings.DayDuration)*time.Second,
		time.Duration(a.room.Settings.NightDuration)*time.Second,
		now)
	a.room.SetStatus(room.StatusInProgress)
	a.saver.RoomChanged(a.room)
	a.saver.GameChanged(a.session)

	for _, p := range a.session.Players {
		a.gateway.EmitToIdentity(p.ID, types.EvtGameRole, types.RoleReveal{Role: string(p.Role)})
	}
	a.broadcastRoom()
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtGameStarted, types.GameStarted{
		GameID:    a.session.ID,
		Phase:     string(game.PhaseNightAction),
		TimeLimit: a.room.Settings.NightDuration,
	})
	a.log.Info("game started", zap.String("game", a.session.ID),
		zap.Int("players", len(a.session.Players)))
}

func (a *Actor) sessionFor(identityID, gameID string) (*game.Session, error) {
	if a.session == nil {
		return nil, apperr.E(apperr.CodeState, "no game in progress")
	}
	if gameID != "" && gameID != a.session.ID {
		return nil, apperr.E(apperr.CodeNotFound, "game not found")
	}
	return a.session, nil
}

func (a *Actor) handlePerformAction(m PerformAction) {
	sess, err := a.sessionFor(m.Identity.ID, m.GameID)
	if err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	out, err := sess.PerformAction(m.Identity.ID, game.ActionType(m.Action), m.TargetID, time.Now())
	if err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	a.saver.GameChanged(sess)
	if out == nil {
		return
	}

	for _, inv := range out.Investigations {
		a.gateway.EmitToIdentity(inv.Detective, types.EvtInvestigated, types.InvestigationResult{
			TargetID: inv.Target,
			IsMafia:  inv.IsMafia,
		})
	}
	if out.Eliminated != "" {
		a.systemChat(a.room.MemberName(out.Eliminated) + " was found dead this morning")
	}
	if out.Winner != "" {
		a.endGame(out.Winner)
		return
	}
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtPhaseChanged, types.PhaseChanged{
		Phase:      string(game.PhaseDayDiscussion),
		TimeLimit:  a.room.Settings.DayDuration,
		Eliminated: out.Eliminated,
	})
	a.armDiscussionTimer()
}

func (a *Actor) handleCastVote(m CastVote) {
	sess, err := a.sessionFor(m.Identity.ID, m.GameID)
	if err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	out, err := sess.CastVote(m.Identity.ID, m.TargetID, time.Now())
	if err != nil {
		a.emitErr(m.Identity.ID, err)
		return
	}
	a.saver.GameChanged(sess)
	if out == nil {
		a.gateway.BroadcastToRoom(a.room.Code, types.EvtVoteUpdate,
			types.VoteUpdate{Votes: sess.VotesSnapshot()})
		return
	}

	a.gateway.BroadcastToRoom(a.room.Code, types.EvtVoteUpdate, types.VoteUpdate{Votes: out.Votes})
	switch {
	case out.Tie:
		a.systemChat("The vote was tied; nobody was eliminated")
	case out.Eliminated != "":
		a.systemChat(a.room.MemberName(out.Eliminated) + " was voted out")
	}
	if out.Winner != "" {
		a.endGame(out.Winner)
		return
	}
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtPhaseChanged, types.PhaseChanged{
		Phase:      string(game.PhaseNightAction),
		TimeLimit:  a.room.Settings.NightDuration,
		Eliminated: out.Eliminated,
	})
}

func (a *Actor) handleChat(m Chat) {
	if !a.room.IsMember(m.Identity.ID) {
		a.emitErr(m.Identity.ID, apperr.E(apperr.CodePermission, "not a member of this room"))
		return
	}
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtChatMessage, types.ChatMessage{
		SenderID:   m.Identity.ID,
		SenderName: m.Identity.DisplayName,
		Content:    m.Content,
		Timestamp:  time.Now(),
	})
}

// handlePhaseTimeout fires when the day-discussion timer elapses. A stale
// generation means the timer belongs to an earlier phase; a false return
// from AdvanceDiscussion means the completeness trigger already won.
func (a *Actor) handlePhaseTimeout(m phaseTimeout) {
	if m.gen != a.timerGen || a.session == nil {
		return
	}
	if !a.session.AdvanceDiscussion(time.Now()) {
		return
	}
	a.saver.GameChanged(a.session)
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtPhaseChanged, types.PhaseChanged{
		Phase:     string(game.PhaseDayVoting),
		TimeLimit: a.room.Settings.DayDuration,
	})
}

func (a *Actor) armDiscussionTimer() {
	a.stopTimer()
	a.timerGen++
	gen := a.timerGen
	d := time.Duration(a.room.Settings.DayDuration) * time.Second
	a.timer = time.AfterFunc(d, func() {
		select {
		case a.inbox <- phaseTimeout{gen: gen}:
		case <-a.ctx.Done():
		}
	})
}

func (a *Actor) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Actor) endGame(w game.Faction) {
	a.stopTimer()
	a.room.SetStatus(room.StatusFinished)
	a.saver.RoomChanged(a.room)
	a.saver.GameChanged(a.session)
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtGameEnded, types.GameEnded{Winner: string(w)})
	a.log.Info("game ended", zap.String("winner", string(w)))
}

// destroy tears the room down: subscribers are told, the channel closes,
// the hub drops the actor, and the persisted snapshot is deleted.
func (a *Actor) destroy() {
	a.stopTimer()
	a.gateway.BroadcastToRoom(a.room.Code, types.EvtRoomDeleted, nil)
	a.gateway.CloseRoom(a.room.Code)
	a.saver.RoomDestroyed(a.room.Code)
	a.release(a.room.Code)
	a.cancel()
	a.log.Info("room destroyed")
}
