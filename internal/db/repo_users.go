package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// CreateUser issues a new API key for name. The key is returned once and only
// its hash is stored.
func (db *DB) CreateUser(ctx context.Context, name string) (*User, string, error) {
	if name == "" {
		return nil, "", errors.New("user name is required")
	}
	key := genHex(20)
	u := User{Name: name, KeyHash: hashKey(key), Status: "active"}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, "", err
	}
	return &u, key, nil
}

func (db *DB) FindUserByAPIKey(ctx context.Context, key string) (*User, error) {
	var u User
	if err := db.WithContext(ctx).Where("key_hash = ? AND status = 'active'", hashKey(key)).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (db *DB) FindUserByID(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DisableUser revokes the key of user id.
func (db *DB) DisableUser(ctx context.Context, id uint) error {
	res := db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("status", "disabled")
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
