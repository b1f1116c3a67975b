//go:build cgo

package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DSN: WAL + FK + нормальная синхронизация (mattn/go-sqlite3)
func DSN(path string) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
}

func OpenSQLite(path string) (*DB, error) {
	g, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db := New(g)
	return db, db.AutoMigrate()
}
