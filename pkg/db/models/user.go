package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity edge the monetization core needs: a wallet to
// settle toward and credentials for the thin auth surface.
type User struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username      string    `gorm:"column:username;not null;unique"`
	WalletAddress string    `gorm:"column:wallet_address;not null"`
	PasswordHash  string    `gorm:"column:password_hash;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
