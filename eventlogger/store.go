package eventlogger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("eventlogger: store closed")

// EventStore is the durable fingerprint -> Event map the engine works through.
// Implementations must be safe for concurrent use.
type EventStore interface {
	InsertOrUpdate(key string, event Event) error
	Retrieve(key string) (Event, bool, error)
	DeleteAll() error
	Count() (int, error)
	GetAllEvents() (map[string]Event, error)
}

// OpenDB opens (or creates) the SQLite database holding pending events and the
// TTL reference time.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection keeps writes ordered.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&storedEvent{}, &ttlReference{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// CloseDB closes the connection pool behind db.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type storedEvent struct {
	Fingerprint       string `gorm:"primaryKey;size:1024"`
	EventType         string `gorm:"index;size:16"`
	AppID             string `gorm:"size:255"`
	AppName           string `gorm:"size:255"`
	AppVersion        string `gorm:"size:64"`
	OSVersion         string `gorm:"size:128"`
	DeviceModel       string `gorm:"size:128"`
	DeviceBrand       string `gorm:"size:128"`
	DeviceName        string `gorm:"size:255"`
	SourceName        string `gorm:"index;size:255"`
	SourceVersion     string `gorm:"size:64"`
	ErrorCode         string `gorm:"size:64"`
	ErrorMessage      string `gorm:"type:text"`
	Platform          string `gorm:"size:32"`
	EventVersion      string `gorm:"size:16"`
	OccurrenceCount   int
	FirstOccurrenceOn float64
	Info              map[string]string `gorm:"serializer:json;type:text"`
	UpdatedAt         time.Time
}

func (storedEvent) TableName() string { return "stored_events" }

func toStored(key string, e Event) storedEvent {
	return storedEvent{
		Fingerprint:       key,
		EventType:         string(e.EventType),
		AppID:             e.AppID,
		AppName:           e.AppName,
		AppVersion:        e.AppVersion,
		OSVersion:         e.OSVersion,
		DeviceModel:       e.DeviceModel,
		DeviceBrand:       e.DeviceBrand,
		DeviceName:        e.DeviceName,
		SourceName:        e.SourceName,
		SourceVersion:     e.SourceVersion,
		ErrorCode:         e.ErrorCode,
		ErrorMessage:      e.ErrorMessage,
		Platform:          e.Platform,
		EventVersion:      e.EventVersion,
		OccurrenceCount:   e.OccurrenceCount,
		FirstOccurrenceOn: e.FirstOccurrenceOn,
		Info:              copyInfo(e.Info),
	}
}

func (s storedEvent) toEvent() Event {
	return Event{
		EventType:         EventType(s.EventType),
		AppID:             s.AppID,
		AppName:           s.AppName,
		AppVersion:        s.AppVersion,
		OSVersion:         s.OSVersion,
		DeviceModel:       s.DeviceModel,
		DeviceBrand:       s.DeviceBrand,
		DeviceName:        s.DeviceName,
		SourceName:        s.SourceName,
		SourceVersion:     s.SourceVersion,
		ErrorCode:         s.ErrorCode,
		ErrorMessage:      s.ErrorMessage,
		Platform:          s.Platform,
		EventVersion:      s.EventVersion,
		OccurrenceCount:   s.OccurrenceCount,
		FirstOccurrenceOn: s.FirstOccurrenceOn,
		Info:              copyInfo(s.Info),
	}
}

// SQLStore persists pending events in SQLite through gorm.
type SQLStore struct {
	mu     sync.Mutex
	db     *gorm.DB
	closed bool
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) InsertOrUpdate(key string, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	row := toStored(key, event)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert event %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Retrieve(key string) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Event{}, false, ErrStoreClosed
	}
	var row storedEvent
	err := s.db.Where("fingerprint = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("retrieve event %q: %w", key, err)
	}
	return row.toEvent(), true, nil
}

func (s *SQLStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.db.Where("1 = 1").Delete(&storedEvent{}).Error; err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func (s *SQLStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	var n int64
	if err := s.db.Model(&storedEvent{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int(n), nil
}

func (s *SQLStore) GetAllEvents() (map[string]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	var rows []storedEvent
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make(map[string]Event, len(rows))
	for _, r := range rows {
		out[r.Fingerprint] = r.toEvent()
	}
	return out, nil
}

// Close marks the store closed. The underlying DB is owned by the caller.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
