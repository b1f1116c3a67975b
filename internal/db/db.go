package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type DB struct {
	*gorm.DB
}

func New(gormDB *gorm.DB) *DB { return &DB{gormDB} }

func (db *DB) AutoMigrate() error {
	if err := db.DB.AutoMigrate(&Upload{}, &User{}); err != nil {
		return err
	}
	return db.ensureIndexes()
}

func (db *DB) ensureIndexes() error {
	stmts := []string{
		// --- uploads ---
		// листинг по владельцу, свежие сверху
		`CREATE INDEX IF NOT EXISTS ix_uploads_owner_created ON uploads (owner_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS ix_uploads_session_key ON uploads (session_key)`,

		// --- users ---
		`CREATE INDEX IF NOT EXISTS ix_users_status ON users (status)`,
	}

	for i, s := range stmts {
		if err := db.DB.Exec(s).Error; err != nil {
			return fmt.Errorf("ensureIndexes step %d failed: %w", i, err)
		}
	}
	return nil
}

// Ping is what /readyz checks.
func (db *DB) Ping(ctx context.Context) error {
	return db.WithContext(ctx).Exec("SELECT 1").Error
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
