// Package broadcast fans events out to connected participants. Delivery is
// best-effort and at-most-once: there is no persistence and no replay of
// missed events. Publish order is preserved within one room because the
// room actor issues events sequentially and each send completes under the
// gateway lock; there is no cross-room ordering guarantee.
package broadcast

import (
	"sync"

	"go.uber.org/zap"
)

// Event is one named payload headed for a connection's outbox.
type Event struct {
	Name    string
	Payload any
}

type subscriber struct {
	identityID string
	outbox     chan Event
	rooms      map[string]bool
}

type Gateway struct {
	mu    sync.Mutex
	conns map[string]*subscriber
	// rooms and identities index conns for O(members) fan-out.
	rooms      map[string]map[string]*subscriber
	identities map[string]map[string]*subscriber
	log        *zap.Logger
}

func NewGateway(log *zap.Logger) *Gateway {
	return &Gateway{
		conns:      make(map[string]*subscriber),
		rooms:      make(map[string]map[string]*subscriber),
		identities: make(map[string]map[string]*subscriber),
		log:        log.Named("broadcast"),
	}
}

// Register attaches a connection's outbox and subscribes it to its
// identity channel for private events.
func (g *Gateway) Register(connID, identityID string, outbox chan Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub := &subscriber{identityID: identityID, outbox: outbox, rooms: make(map[string]bool)}
	g.conns[connID] = sub
	if g.identities[identityID] == nil {
		g.identities[identityID] = make(map[string]*subscriber)
	}
	g.identities[identityID][connID] = sub
}

// Unregister detaches the connection from every channel and closes its
// outbox. Called on transport disconnect; it never touches room membership.
func (g *Gateway) Unregister(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropLocked(connID)
}

// JoinRoom subscribes the connection to a room channel. The room actor
// calls this after membership is confirmed, before the join broadcast, so
// the joiner sees every event from its own join onward.
func (g *Gateway) JoinRoom(connID, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.conns[connID]
	if !ok {
		return
	}
	sub.rooms[code] = true
	if g.rooms[code] == nil {
		g.rooms[code] = make(map[string]*subscriber)
	}
	g.rooms[code][connID] = sub
}

// LeaveRoom unsubscribes the connection from a room channel.
func (g *Gateway) LeaveRoom(connID, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sub, ok := g.conns[connID]; ok {
		delete(sub.rooms, code)
	}
	if set := g.rooms[code]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(g.rooms, code)
		}
	}
}

// LeaveRoomByIdentity unsubscribes every connection of one identity from a
// room channel, used when a member leaves or is kicked.
func (g *Gateway) LeaveRoomByIdentity(identityID, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for connID, sub := range g.identities[identityID] {
		delete(sub.rooms, code)
		if set := g.rooms[code]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(g.rooms, code)
			}
		}
	}
}

// CloseRoom drops the whole room channel, e.g. after room destruction.
func (g *Gateway) CloseRoom(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, sub := range g.rooms[code] {
		delete(sub.rooms, code)
	}
	delete(g.rooms, code)
}

// BroadcastToRoom delivers to every connection subscribed to the room.
func (g *Gateway) BroadcastToRoom(code, name string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for connID, sub := range g.rooms[code] {
		g.sendLocked(connID, sub, Event{Name: name, Payload: payload})
	}
}

// EmitToIdentity delivers privately to every connection of one identity,
// used for role reveals, investigation results, and personal errors.
func (g *Gateway) EmitToIdentity(identityID, name string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for connID, sub := range g.identities[identityID] {
		g.sendLocked(connID, sub, Event{Name: name, Payload: payload})
	}
}

// sendLocked is non-blocking: a connection whose outbox is full is dropped
// rather than stalling fan-out for the rest of the room.
func (g *Gateway) sendLocked(connID string, sub *subscriber, ev Event) {
	select {
	case sub.outbox <- ev:
	default:
		g.log.Warn("dropping slow subscriber",
			zap.String("conn", connID), zap.String("event", ev.Name))
		g.dropLocked(connID)
	}
}

func (g *Gateway) dropLocked(connID string) {
	sub, ok := g.conns[connID]
	if !ok {
		return
	}
	delete(g.conns, connID)
	for code := range sub.rooms {
		if set := g.rooms[code]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(g.rooms, code)
			}
		}
	}
	if set := g.identities[sub.identityID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(g.identities, sub.identityID)
		}
	}
	close(sub.outbox)
}
