package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordUpload stores u unless its path is already known. It reports whether
// a row was inserted, so a repeated notification stays a no-op.
func (db *DB) RecordUpload(ctx context.Context, u *Upload) (bool, error) {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoNothing: true,
	}).Create(u)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListUploads returns the newest uploads of owner first. limit <= 0 means 100.
func (db *DB) ListUploads(ctx context.Context, ownerID string, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Upload
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (db *DB) FindUpload(ctx context.Context, id uint, ownerID string) (*Upload, error) {
	var u Upload
	err := db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) FindUploadByPath(ctx context.Context, path string) (*Upload, error) {
	var u Upload
	err := db.WithContext(ctx).Where("path = ?", path).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
