//go:build !cgo

package db

import (
	"fmt"

	"github.com/glebarez/sqlite" // pure Go, без cgo
	"gorm.io/gorm"
)

// DSN: WAL + FK + busy timeout, в синтаксисе glebarez/go-sqlite
func DSN(path string) string {
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

func OpenSQLite(path string) (*DB, error) {
	g, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db := New(g)
	return db, db.AutoMigrate()
}
