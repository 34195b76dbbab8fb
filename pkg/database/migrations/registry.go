// Package migrations runs named, tracked schema migrations against postgres.
package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

// TableName is where applied migrations are recorded.
const TableName = "schema_migrations"

type namedMigration struct {
	name string
	fn   func(*gorm.DB) error
}

type appliedMigration struct {
	Name      string    `gorm:"primaryKey"`
	AppliedAt time.Time `gorm:"not null"`
}

func (appliedMigration) TableName() string { return TableName }

// Registry holds migrations in the order they were registered.
type Registry struct {
	mu         sync.RWMutex
	migrations []namedMigration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a migration. Names must be unique.
func (r *Registry) Register(name string, fn func(*gorm.DB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.migrations {
		if m.name == name {
			return fmt.Errorf("migration %s already registered", name)
		}
	}
	r.migrations = append(r.migrations, namedMigration{name: name, fn: fn})
	return nil
}

// Names lists registered migrations in run order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.migrations))
	for _, m := range r.migrations {
		names = append(names, m.name)
	}
	return names
}

// Pending returns the registered names not in applied, in run order.
func (r *Registry) Pending(applied []string) []string {
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	var pending []string
	for _, name := range r.Names() {
		if _, ok := done[name]; !ok {
			pending = append(pending, name)
		}
	}
	return pending
}

// Run applies every pending migration, each in its own transaction together with
// its tracking row.
func (r *Registry) Run(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	r.mu.RLock()
	migrations := make([]namedMigration, len(r.migrations))
	copy(migrations, r.migrations)
	r.mu.RUnlock()

	if len(migrations) == 0 {
		if log != nil {
			log.Info("no database migrations registered")
		}
		return nil
	}

	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&appliedMigration{}); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}

	var applied []string
	if err := db.Model(&appliedMigration{}).Pluck("name", &applied).Error; err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	ran := 0
	for _, migration := range migrations {
		if _, ok := done[migration.name]; ok {
			continue
		}

		if log != nil {
			log.Info("running migration", slog.String("name", migration.name))
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.fn(tx); err != nil {
				return err
			}
			return tx.Create(&appliedMigration{Name: migration.name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.name, err)
		}
		ran++

		if log != nil {
			log.Info("migration completed", slog.String("name", migration.name))
		}
	}

	if log != nil {
		log.Info("database schema up to date", slog.Int("applied", ran), slog.Int("total", len(migrations)))
	}
	return nil
}
