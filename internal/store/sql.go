package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuscreatives/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the key-value table.
type Entry struct {
	Key       string     `gorm:"column:entry_key;primaryKey;size:191"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName implements gorm's tabler.
func (Entry) TableName() string { return "kv_entries" }

// SQL is a Store over a gorm database (sqlite on disk or a shared postgres).
type SQL struct {
	db   *gorm.DB
	name string
	log  *observability.StoreLogger
	now  func() time.Time
}

// NewSQL wraps db. Call Migrate before first use on a fresh database.
func NewSQL(db *gorm.DB) *SQL {
	name := db.Dialector.Name()
	return &SQL{
		db:   db,
		name: name,
		log:  observability.NewStoreLogger(name),
		now:  time.Now,
	}
}

// OpenSQLite opens (creating if needed) the sqlite file at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(observability.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// sqlite allows a single writer.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenPostgres connects to postgres using dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(observability.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(5)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
	return db, nil
}

// Name implements Store.
func (s *SQL) Name() string { return s.name }

// Migrate creates the key-value table.
func (s *SQL) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("failed to migrate kv table: %w", err)
	}
	return nil
}

// Get implements Store. Expired rows are removed on read.
func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var e Entry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		s.log.LogError(ctx, "get", key, err)
		return "", fmt.Errorf("%s get %s: %w", s.name, key, err)
	}
	if now := s.now(); e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		// Only the expired row goes; a concurrent Set may have replaced it.
		err := s.db.WithContext(ctx).
			Where("entry_key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now).
			Delete(&Entry{}).Error
		if err != nil {
			s.log.LogError(ctx, "expire", key, err)
		}
		return "", ErrNotFound
	}
	return e.Value, nil
}

// Set implements Store.
func (s *SQL) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	e := Entry{Key: key, Value: value, UpdatedAt: s.now()}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		e.ExpiresAt = &exp
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		s.log.LogError(ctx, "set", key, err)
		return fmt.Errorf("%s set %s: %w", s.name, key, err)
	}
	s.log.LogWrite(ctx, "set", key)
	return nil
}

// Delete implements Store.
func (s *SQL) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("entry_key IN ?", keys).Delete(&Entry{}).Error; err != nil {
		s.log.LogError(ctx, "delete", strings.Join(keys, ","), err)
		return fmt.Errorf("%s delete: %w", s.name, err)
	}
	s.log.LogWrite(ctx, "delete", strings.Join(keys, ","))
	return nil
}

// Close closes the underlying connection pool.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
