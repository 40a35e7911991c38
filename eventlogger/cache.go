package eventlogger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TTLCache holds the reference time of the last bulk flush.
// An unset reference time is reported as the zero time.
type TTLCache interface {
	ReferenceTime() (time.Time, error)
	SetReferenceTime(t time.Time) error
}

const ttlReferenceName = "events_ttl"

type ttlReference struct {
	Name     string `gorm:"primaryKey;size:64"`
	UnixNano int64
}

func (ttlReference) TableName() string { return "ttl_references" }

// SQLCache stores the TTL reference time next to the pending events.
type SQLCache struct {
	mu sync.Mutex
	db *gorm.DB
}

func NewSQLCache(db *gorm.DB) *SQLCache {
	return &SQLCache{db: db}
}

func (c *SQLCache) ReferenceTime() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ref ttlReference
	err := c.db.Where("name = ?", ttlReferenceName).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read ttl reference: %w", err)
	}
	return time.Unix(0, ref.UnixNano).UTC(), nil
}

func (c *SQLCache) SetReferenceTime(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref := ttlReference{Name: ttlReferenceName, UnixNano: t.UnixNano()}
	err := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"unix_nano"}),
	}).Create(&ref).Error
	if err != nil {
		return fmt.Errorf("write ttl reference: %w", err)
	}
	return nil
}
