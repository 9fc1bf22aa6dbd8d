package db

import (
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nickheyer/launcherd/internal/httpcache"
	"github.com/nickheyer/launcherd/internal/modmeta"
)

// Config tunes the underlying sql.DB connection pool, mirroring the
// teacher's internal/db/store.go DBConfig.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store wraps the gorm handle used by every persisted subsystem: the
// instance store (§4.3), the HTTP cache (§4.1, via its own Row type and
// Migrate func), and the mod metadata cache (§4.7).
type Store struct {
	DB *gorm.DB
}

// Open opens (creating if absent) the single-file sqlite database at path,
// following the teacher's connection-pool tuning and silent gorm logger.
func Open(path string, cfg Config) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Store{DB: gdb}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate runs versioned migrations via gormigrate, falling back to a
// single AutoMigrate step for the initial schema. Later migrations extend
// this list as the schema in spec.md §6's conceptual table set grows.
func (s *Store) Migrate() error {
	allModels := func() []any {
		var models []any
		models = append(models, AllModels()...)
		models = append(models, &httpcache.Row{})
		models = append(models, modmeta.AllModels()...)
		return models
	}

	m := gormigrate.New(s.DB, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601010000_initial_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(allModels()...)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(allModels()...)
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
