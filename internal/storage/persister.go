package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mafia-live/backend/internal/game"
	"github.com/mafia-live/backend/internal/room"
)

type job struct {
	room       *room.Room
	session    *game.Session
	deleteRoom string
}

// Persister decouples room actors from storage I/O. Actors enqueue cloned
// snapshots and move on; the worker applies them in order, which keeps
// per-room saves last-write-wins in mutation order.
type Persister struct {
	store Store
	queue chan job
	log   *zap.Logger
}

func NewPersister(store Store, log *zap.Logger) *Persister {
	return &Persister{
		store: store,
		queue: make(chan job, 256),
		log:   log.Named("persist"),
	}
}

// Run drains the queue until ctx is done.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-p.queue:
			p.apply(j)
		}
	}
}

func (p *Persister) apply(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case j.room != nil:
		if err := p.store.SaveRoom(ctx, j.room); err != nil {
			p.log.Error("save room failed", zap.String("code", j.room.Code), zap.Error(err))
		}
	case j.session != nil:
		if err := p.store.SaveGame(ctx, j.session); err != nil {
			p.log.Error("save game failed", zap.String("id", j.session.ID), zap.Error(err))
		}
	case j.deleteRoom != "":
		if err := p.store.DeleteRoom(ctx, j.deleteRoom); err != nil {
			p.log.Error("delete room failed", zap.String("code", j.deleteRoom), zap.Error(err))
		}
	}
}

// enqueue is non-blocking: under backpressure the snapshot is dropped and a
// later save supersedes it anyway.
func (p *Persister) enqueue(j job) {
	select {
	case p.queue <- j:
	default:
		p.log.Warn("persist queue full, dropping snapshot")
	}
}

func (p *Persister) RoomChanged(r *room.Room) { p.enqueue(job{room: r.Clone()}) }

func (p *Persister) GameChanged(s *game.Session) { p.enqueue(job{session: s.Clone()}) }

func (p *Persister) RoomDestroyed(code string) { p.enqueue(job{deleteRoom: code}) }
