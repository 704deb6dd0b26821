package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/auth"
	"github.com/mafia-live/backend/internal/broadcast"
	"github.com/mafia-live/backend/internal/coordinator"
	"github.com/mafia-live/backend/internal/ratelimit"
	"github.com/mafia-live/backend/internal/types"
)

type Deps struct {
	Hub      *coordinator.Hub
	Gateway  *broadcast.Gateway
	Verifier auth.Verifier
	Limiter  *ratelimit.Limiter
	Log      *zap.Logger
}

// session is the explicit per-connection context threaded through every
// dispatch; nothing about the connection lives in closure state.
type session struct {
	connID   string
	identity auth.Identity
}

func Handler(d Deps) http.HandlerFunc {
	log := d.Log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := d.Verifier.Verify(bearerToken(r))
		if err != nil {
			http.Error(w, apperr.MessageOf(err), http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		sess := session{connID: uuid.NewString(), identity: identity}
		outbox := make(chan broadcast.Event, 16)
		d.Gateway.Register(sess.connID, identity.ID, outbox)
		// Disconnect only detaches the transport; room membership changes
		// on an explicit room:leave and nothing else.
		defer d.Gateway.Unregister(sess.connID)

		log.Info("connected", zap.String("identity", identity.ID), zap.String("conn", sess.connID))

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writer(writeCtx, conn, outbox)

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.String("conn", sess.connID), zap.Error(err))
				}
				return
			}
			d.dispatch(sess, data)
		}
	}
}

func writer(ctx context.Context, conn *websocket.Conn, outbox <-chan broadcast.Event) {
	for ev := range outbox {
		payload, err := json.Marshal(types.ServerMessage{Type: ev.Name, Data: ev.Payload})
		if err != nil {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_ = conn.Write(wctx, websocket.MessageText, payload)
		cancel()
	}
	// Gateway closed the outbox (slow consumer or shutdown); drop the conn.
	conn.Close(websocket.StatusPolicyViolation, "subscription closed")
}

// dispatch validates one inbound message and routes it to the room's
// actor. Every failure becomes a private error event to the sender; other
// participants and other rooms never see it.
func (d Deps) dispatch(sess session, data []byte) {
	cmd, err := types.ParseClient(data)
	if err != nil {
		d.emitErr(sess, err)
		return
	}
	if !d.Limiter.Allow(sess.identity.ID, types.NameOf(cmd)) {
		d.emitErr(sess, apperr.E(apperr.CodeRateLimited, "too many %s requests", types.NameOf(cmd)))
		return
	}

	actor := d.Hub.Actor(types.RoomCodeOf(cmd))
	if actor == nil {
		d.emitErr(sess, apperr.E(apperr.CodeNotFound, "room not found"))
		return
	}

	var msg coordinator.Msg
	switch c := cmd.(type) {
	case types.JoinRoom:
		msg = coordinator.Join{Identity: sess.identity, ConnID: sess.connID}
	case types.LeaveRoom:
		msg = coordinator.Leave{Identity: sess.identity}
	case types.ToggleReady:
		msg = coordinator.ToggleReady{Identity: sess.identity}
	case types.KickPlayer:
		msg = coordinator.Kick{Identity: sess.identity, TargetID: c.TargetID}
	case types.UpdateSettings:
		msg = coordinator.UpdateSettings{Identity: sess.identity, Settings: c.Settings}
	case types.StartGame:
		msg = coordinator.StartGame{Identity: sess.identity}
	case types.PerformAction:
		msg = coordinator.PerformAction{Identity: sess.identity, GameID: c.GameID, Action: c.Action, TargetID: c.TargetID}
	case types.CastVote:
		msg = coordinator.CastVote{Identity: sess.identity, GameID: c.GameID, TargetID: c.TargetID}
	case types.Chat:
		msg = coordinator.Chat{Identity: sess.identity, Content: c.Content}
	default:
		d.emitErr(sess, apperr.E(apperr.CodeValidation, "unsupported command"))
		return
	}
	actor.Inbox() <- msg
}

func (d Deps) emitErr(sess session, err error) {
	d.Gateway.EmitToIdentity(sess.identity.ID, types.EvtError, types.ErrorEvent{
		Code:    string(apperr.CodeOf(err)),
		Message: apperr.MessageOf(err),
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
