// Package storage is the durable-state collaborator. Saves are
// last-write-wins snapshots; the per-room actor already serializes
// mutations, so no conflict detection is layered on top.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mafia-live/backend/internal/apperr"
	"github.com/mafia-live/backend/internal/game"
	"github.com/mafia-live/backend/internal/room"
)

type Store interface {
	SaveRoom(ctx context.Context, r *room.Room) error
	FindRoom(ctx context.Context, code string) (*room.Room, error)
	DeleteRoom(ctx context.Context, code string) error
	SaveGame(ctx context.Context, s *game.Session) error
	FindGame(ctx context.Context, id string) (*game.Session, error)
}

type roomRecord struct {
	Code      string `gorm:"primaryKey"`
	Status    string
	Snapshot  []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (roomRecord) TableName() string { return "rooms" }

type gameRecord struct {
	ID        string `gorm:"primaryKey"`
	RoomCode  string `gorm:"index"`
	Snapshot  []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (gameRecord) TableName() string { return "games" }

type GormStore struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the snapshot tables.
func Open(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&roomRecord{}, &gameRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SaveRoom(ctx context.Context, r *room.Room) error {
	snap, err := json.Marshal(r)
	if err != nil {
		return err
	}
	rec := roomRecord{Code: r.Code, Status: string(r.Status), Snapshot: snap}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *GormStore) FindRoom(ctx context.Context, code string) (*room.Room, error) {
	var rec roomRecord
	if err := s.db.WithContext(ctx).First(&rec, "code = ?", code).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.E(apperr.CodeNotFound, "room %s not found", code)
		}
		return nil, err
	}
	var r room.Room
	if err := json.Unmarshal(rec.Snapshot, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) DeleteRoom(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Delete(&roomRecord{}, "code = ?", code).Error
}

func (s *GormStore) SaveGame(ctx context.Context, sess *game.Session) error {
	snap, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	rec := gameRecord{ID: sess.ID, RoomCode: sess.RoomCode, Snapshot: snap}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *GormStore) FindGame(ctx context.Context, id string) (*game.Session, error) {
	var rec gameRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.E(apperr.CodeNotFound, "game %s not found", id)
		}
		return nil, err
	}
	var sess game.Session
	if err := json.Unmarshal(rec.Snapshot, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
