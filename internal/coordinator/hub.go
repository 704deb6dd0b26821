package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/auth"
	"github.com/mafia-live/backend/internal/room"
	"github.com/mafia-live/backend/internal/types"
)

type HubMsg interface{ isHubMsg() }

type createRoom struct {
	Host     auth.Identity
	Settings room.Settings
	Reply    chan createReply
}

type createReply struct {
	View types.RoomView
	Err  error
}

type getActor struct {
	Code  string
	Reply chan *Actor
}

type listRooms struct {
	Reply chan []types.RoomView
}

type removeActor struct{ Code string }

type shutdownHub struct{}

func (createRoom) isHubMsg()  {}
func (getActor) isHubMsg()    {}
func (listRooms) isHubMsg()   {}
func (removeActor) isHubMsg() {}
func (shutdownHub) isHubMsg() {}

// Hub owns the actor map and the TTL sweep. Like the actors it is a single
// goroutine over an inbox, so code-to-actor routing never races room
// creation or destruction.
type Hub struct {
	inbox    chan HubMsg
	actors   map[string]*Actor
	registry *room.Registry
	cfg      Config
	sweep    time.Duration
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, cfg Config, sweepEvery time.Duration) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		actors:   make(map[string]*Actor),
		registry: room.NewRegistry(),
		cfg:      cfg,
		sweep:    sweepEvery,
		log:      cfg.Log.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	ticker := time.NewTicker(h.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case now := <-ticker.C:
			h.sweepExpired(now)
		case m := <-h.inbox:
			switch msg := m.(type) {
			case createRoom:
				msg.Reply <- h.create(msg.Host, msg.Settings)
			case getActor:
				msg.Reply <- h.actors[msg.Code]
			case listRooms:
				msg.Reply <- h.list()
			case removeActor:
				delete(h.actors, msg.Code)
				h.registry.Release(msg.Code)
			case shutdownHub:
				for _, a := range h.actors {
					a.Inbox() <- Shutdown{}
				}
				clear(h.actors)
				h.cancel()
			}
		}
	}
}

func (h *Hub) create(host auth.Identity, settings room.Settings) createReply {
	r, err := h.registry.Create(host.ID, host.DisplayName, settings)
	if err != nil {
		return createReply{Err: err}
	}
	a := NewActor(h.ctx, r, h.releaseFn(), h.cfg)
	h.actors[r.Code] = a
	if h.cfg.Saver != nil {
		h.cfg.Saver.RoomChanged(r)
	}
	h.log.Info("room created", zap.String("code", r.Code), zap.String("host", host.ID))
	return createReply{View: types.NewRoomView(r)}
}

// releaseFn lets an actor remove itself after destroying its room. The
// removal goes through the hub inbox so it serializes with routing.
func (h *Hub) releaseFn() func(code string) {
	return func(code string) {
		select {
		case h.inbox <- removeActor{Code: code}:
		case <-h.ctx.Done():
		}
	}
}

func (h *Hub) sweepExpired(now time.Time) {
	for _, a := range h.actors {
		select {
		case a.Inbox() <- sweepTTL{now: now}:
		default:
			// Actor is busy; the next sweep will catch it.
		}
	}
}

func (h *Hub) list() []types.RoomView {
	views := make([]types.RoomView, 0, len(h.actors))
	for _, a := range h.actors {
		reply := make(chan View, 1)
		a.Inbox() <- GetState{Reply: reply}
		select {
		case v := <-reply:
			if v.Room.Status == room.StatusWaiting {
				views = append(views, types.NewRoomView(&v.Room))
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	return views
}

// CreateRoom allocates a unique code and spawns the room's actor.
func (h *Hub) CreateRoom(host auth.Identity, settings room.Settings) (types.RoomView, error) {
	reply := make(chan createReply, 1)
	select {
	case h.inbox <- createRoom{Host: host, Settings: settings, Reply: reply}:
	case <-h.ctx.Done():
		return types.RoomView{}, apperr.E(apperr.CodeState, "server shutting down")
	}
	res := <-reply
	return res.View, res.Err
}

// Actor routes a room code to its actor; nil when no such room.
func (h *Hub) Actor(code string) *Actor {
	reply := make(chan *Actor, 1)
	select {
	case h.inbox <- getActor{Code: code, Reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	return <-reply
}

// Rooms lists rooms still waiting for players.
func (h *Hub) Rooms() []types.RoomView {
	reply := make(chan []types.RoomView, 1)
	select {
	case h.inbox <- listRooms{Reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	return <-reply
}

// Shutdown stops every actor and then the hub itself.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- shutdownHub{}:
	case <-h.ctx.Done():
	}
}
