// Package history keeps a local log of finished games so the client can
// show past scores without asking the server.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDBFile is used when no path is configured.
const DefaultDBFile = "kero_history.db"

// ErrNoPlays is returned when a lookup matches no recorded games.
var ErrNoPlays = errors.New("history: no plays recorded")

// PlayRecord is one finished game.
type PlayRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	SongID    string `gorm:"index:idx_history_song"`
	Title     string
	Artist    string
	Mode      string `gorm:"index:idx_history_mode"`
	Score     int
	MaxStreak int
	PlayedAt  time.Time `gorm:"index:idx_history_played_at"`
}

// Store is the local sqlite-backed play log.
type Store struct {
	DB *gorm.DB
	db *sql.DB
}

// Open opens (or creates) the history database at path and migrates the
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultDBFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&PlayRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{DB: db, db: sqlDB}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one finished game. Missing IDs and timestamps are
// filled in.
func (s *Store) Record(rec PlayRecord) (PlayRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = time.Now()
	}
	if err := s.DB.Create(&rec).Error; err != nil {
		return PlayRecord{}, fmt.Errorf("recording play: %w", err)
	}
	return rec, nil
}

// Recent returns the latest plays, newest first.
func (s *Store) Recent(limit int) ([]PlayRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []PlayRecord
	err := s.DB.Order("played_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("querying recent plays: %w", err)
	}
	return records, nil
}

// BestForSong returns the highest score ever recorded for a song in a
// mode.
func (s *Store) BestForSong(songID, mode string) (PlayRecord, error) {
	var rec PlayRecord
	err := s.DB.Where("song_id = ? AND mode = ?", songID, mode).
		Order("score DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PlayRecord{}, ErrNoPlays
	}
	if err != nil {
		return PlayRecord{}, fmt.Errorf("querying best play: %w", err)
	}
	return rec, nil
}
