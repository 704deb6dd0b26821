// Package types defines the wire protocol: inbound client messages parsed
// into a closed command union at the boundary, and outbound event payloads.
package types

import (
	"encoding/json"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/room"
)

// Event names, server to client.
const (
	EvtRoomUpdated  = "room:updated"
	EvtRoomDeleted  = "room:deleted"
	EvtGameRole     = "game:role" // private
	EvtGameStarted  = "game:started"
	EvtVoteUpdate   = "game:voteUpdate"
	EvtPhaseChanged = "game:phaseChanged"
	EvtGameEnded    = "game:ended"
	EvtInvestigated = "game:investigation" // private
	EvtChatMessage  = "chat:message"
	EvtChatSystem   = "chat:system"
	EvtError        = "error"
)

// Message names, client to server.
const (
	MsgRoomJoin        = "room:join"
	MsgRoomLeave       = "room:leave"
	MsgRoomToggleReady = "room:toggleReady"
	MsgRoomKick        = "room:kick"
	MsgRoomSettings    = "room:updateSettings"
	MsgGameStart       = "game:start"
	MsgGameAction      = "game:action"
	MsgGameVote        = "game:vote"
	MsgChatMessage     = "chat:message"
)

// Command is the closed union every inbound message is validated into
// before dispatch.
type Command interface{ isCommand() }

type JoinRoom struct{ RoomCode string }
type LeaveRoom struct{ RoomCode string }
type ToggleReady struct{ RoomCode string }
type KickPlayer struct {
	RoomCode string
	TargetID string
}
type UpdateSettings struct {
	RoomCode string
	Settings room.Settings
}
type StartGame struct{ RoomCode string }
type PerformAction struct {
	RoomCode string
	GameID   string
	Action   string
	TargetID string
}
type CastVote struct {
	RoomCode string
	GameID   string
	TargetID string
}
type Chat struct {
	RoomCode string
	Content  string
}

func (JoinRoom) isCommand()       {}
func (LeaveRoom) isCommand()      {}
func (ToggleReady) isCommand()    {}
func (KickPlayer) isCommand()     {}
func (UpdateSettings) isCommand() {}
func (StartGame) isCommand()      {}
func (PerformAction) isCommand()  {}
func (CastVote) isCommand()       {}
func (Chat) isCommand()           {}

type clientMessage struct {
	Type     string         `json:"type"`
	RoomCode string         `json:"roomCode"`
	GameID   string         `json:"gameId"`
	TargetID string         `json:"targetId"`
	Action   string         `json:"action"`
	Content  string         `json:"content"`
	Settings *room.Settings `json:"settings"`
}

// ParseClient validates raw bytes into a command. Unknown types and missing
// required fields are validation errors; nothing loosely-typed crosses this
// boundary.
func ParseClient(data []byte) (Command, error) {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.E(apperr.CodeValidation, "malformed message")
	}
	if m.RoomCode == "" {
		return nil, apperr.E(apperr.CodeValidation, "roomCode is required")
	}

	switch m.Type {
	case MsgRoomJoin:
		return JoinRoom{RoomCode: m.RoomCode}, nil
	case MsgRoomLeave:
		return LeaveRoom{RoomCode: m.RoomCode}, nil
	case MsgRoomToggleReady:
		return ToggleReady{RoomCode: m.RoomCode}, nil
	case MsgRoomKick:
		if m.TargetID == "" {
			return nil, apperr.E(apperr.CodeValidation, "targetId is required")
		}
		return KickPlayer{RoomCode: m.RoomCode, TargetID: m.TargetID}, nil
	case MsgRoomSettings:
		if m.Settings == nil {
			return nil, apperr.E(apperr.CodeValidation, "settings are required")
		}
		return UpdateSettings{RoomCode: m.RoomCode, Settings: *m.Settings}, nil
	case MsgGameStart:
		return StartGame{RoomCode: m.RoomCode}, nil
	case MsgGameAction:
		if m.Action == "" || m.TargetID == "" {
			return nil, apperr.E(apperr.CodeValidation, "action and targetId are required")
		}
		return PerformAction{RoomCode: m.RoomCode, GameID: m.GameID, Action: m.Action, TargetID: m.TargetID}, nil
	case MsgGameVote:
		if m.TargetID == "" {
			return nil, apperr.E(apperr.CodeValidation, "targetId is required")
		}
		return CastVote{RoomCode: m.RoomCode, GameID: m.GameID, TargetID: m.TargetID}, nil
	case MsgChatMessage:
		if m.Content == "" {
			return nil, apperr.E(apperr.CodeValidation, "content is required")
		}
		return Chat{RoomCode: m.RoomCode, Content: m.Content}, nil
	default:
		return nil, apperr.E(apperr.CodeValidation, "unknown message type %q", m.Type)
	}
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// NameOf returns the wire name of a command, used as the rate-limit key.
func NameOf(c Command) string {
	switch c.(type) {
	case JoinRoom:
		return MsgRoomJoin
	case LeaveRoom:
		return MsgRoomLeave
	case ToggleReady:
		return MsgRoomToggleReady
	case KickPlayer:
		return MsgRoomKick
	case UpdateSettings:
		return MsgRoomSettings
	case StartGame:
		return MsgGameStart
	case PerformAction:
		return MsgGameAction
	case CastVote:
		return MsgGameVote
	case Chat:
		return MsgChatMessage
	}
	return ""
}

// RoomCodeOf reports which room a command targets, for actor routing.
func RoomCodeOf(c Command) string {
	switch cmd := c.(type) {
	case JoinRoom:
		return cmd.RoomCode
	case LeaveRoom:
		return cmd.RoomCode
	case ToggleReady:
		return cmd.RoomCode
	case KickPlayer:
		return cmd.RoomCode
	case UpdateSettings:
		return cmd.RoomCode
	case StartGame:
		return cmd.RoomCode
	case PerformAction:
		return cmd.RoomCode
	case CastVote:
		return cmd.RoomCode
	case Chat:
		return cmd.RoomCode
	}
	return ""
}
