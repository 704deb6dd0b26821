package storage

import (
	"context"
	"sync"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/game"
	"github.com/mafia-live/backend/internal/room"
)

// MemoryStore keeps snapshots in process memory. Used when no DATABASE_URL
// is configured, and by tests.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*room.Room
	games map[string]*game.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*room.Room),
		games: make(map[string]*game.Session),
	}
}

func (s *MemoryStore) SaveRoom(_ context.Context, r *room.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.Code] = r.Clone()
	return nil
}

func (s *MemoryStore) FindRoom(_ context.Context, code string) (*room.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, apperr.E(apperr.CodeNotFound, "room %s not found", code)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) SaveGame(_ context.Context, sess *game.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[sess.ID] = sess.Clone()
	return nil
}

func (s *MemoryStore) FindGame(_ context.Context, id string) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.games[id]
	if !ok {
		return nil, apperr.E(apperr.CodeNotFound, "game %s not found", id)
	}
	return sess.Clone(), nil
}
