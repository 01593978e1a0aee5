// Package history persists an audit log of notifications the bot has
// delivered, backed by sqlite through gorm.
package history

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Notification is one delivered build notification.
type Notification struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	EventID string `gorm:"index" json:"event_id"`
	Target  string `json:"target"` // channel or nick the text was sent to
	Kind    string `json:"kind"`
	Builder string `json:"builder"`
	Number  int    `json:"number"`
	Result  string `json:"result"`
	Text    string `json:"text"`
	SentAt  time.Time `json:"sent_at"`
}

// Store records and queries delivered notifications
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) a sqlite-backed store at the given DSN.
// Use ":memory:" for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	if err := db.AutoMigrate(&Notification{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends a delivered notification to the log
func (s *Store) Record(n *Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	if err := s.db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// Recent returns up to limit notifications, newest first
func (s *Store) Recent(limit int) ([]Notification, error) {
	var out []Notification
	err := s.db.Order("id desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	return out, nil
}

// LatestPerBuilder returns the most recent notification for every
// builder that has ever been reported on, ordered by builder name
func (s *Store) LatestPerBuilder() ([]Notification, error) {
	sub := s.db.Model(&Notification{}).Select("MAX(id)").Group("builder")
	var out []Notification
	err := s.db.Where("id IN (?)", sub).Order("builder asc").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	return out, nil
}

// RecentForBuilder returns up to limit notifications for one builder,
// newest first
func (s *Store) RecentForBuilder(builder string, limit int) ([]Notification, error) {
	var out []Notification
	err := s.db.Where("builder = ?", builder).Order("id desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	return out, nil
}
