package db

import "time"

// Upload: один опубликованный файл
type Upload struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Path       string `gorm:"uniqueIndex;size:1024;not null" json:"path"`
	Disk       string `gorm:"size:32;not null" json:"disk"`
	SessionKey string `gorm:"size:128" json:"sessionKey,omitempty"`
	Size       int64  `gorm:"not null" json:"size"`
	Protocol   string `gorm:"size:32" json:"protocol,omitempty"`
	// OwnerID is "user:<id>" or "session:<id>", whichever identity uploaded it.
	OwnerID   string    `gorm:"size:160" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// User - владелец API-ключа
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:128;not null"`
	KeyHash   string    `gorm:"uniqueIndex;size:64;not null"` // sha256(key), сам ключ не храним
	Status    string    `gorm:"size:16;default:active"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
