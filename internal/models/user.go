package models

import (
	"time"
)

// User is a read-through cache of an on-chain registration record. The
// ledger owns the data; rows here are refreshed on login and after a
// registration confirms.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	WalletAddress string    `gorm:"uniqueIndex;size:64;not null" json:"wallet_address"`
	Name          string    `gorm:"size:255" json:"name"`
	Role          int       `gorm:"default:0" json:"role"` // None, Arbiter, Client, Freelancer
	Reputation    int64     `gorm:"default:0" json:"reputation"`
	IsRegistered  bool      `gorm:"default:false" json:"is_registered"`
	LastSyncedAt  time.Time `json:"last_synced_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
