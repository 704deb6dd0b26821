package types

import (
	"time"

	"github.com/mafia-live/backend/internal/room"
)

// RoomView is the room:updated payload.
type RoomView struct {
	Code     string        `json:"code"`
	HostID   string        `json:"hostId"`
	Settings room.Settings `json:"settings"`
	Members  []room.Member `json:"members"`
	Status   room.Status   `json:"status"`
}

func NewRoomView(r *room.Room) RoomView {
	return RoomView{
		Code:     r.Code,
		HostID:   r.HostID,
		Settings: r.Settings,
		Members:  append([]room.Member(nil), r.Members...),
		Status:   r.Status,
	}
}

type GameStarted struct {
	GameID    string `json:"gameId"`
	Phase     string `json:"phase"`
	TimeLimit int    `json:"timeLimit"` // seconds
}

type RoleReveal struct {
	Role string `json:"role"`
}

type PhaseChanged struct {
	Phase      string `json:"phase"`
	TimeLimit  int    `json:"timeLimit"` // seconds
	Eliminated string `json:"eliminated,omitempty"`
}

type VoteUpdate struct {
	Votes map[string]string `json:"votes"`
}

type GameEnded struct {
	Winner string `json:"winner"`
}

type InvestigationResult struct {
	TargetID string `json:"targetId"`
	IsMafia  bool   `json:"isMafia"`
}

type ChatMessage struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type SystemMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
