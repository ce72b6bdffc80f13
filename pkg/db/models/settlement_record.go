package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veilpost/veilpost-backend/pkg/enums"
)

// SettlementRecord persists the intended fund split for a payment. No funds
// move; the breakdown exists for audit and creator-dashboard display only.
type SettlementRecord struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID        uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;uniqueIndex"`
	PostID           uuid.UUID       `gorm:"column:post_id;type:uuid;not null;index"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:numeric(20,6);not null"`
	PlatformAmount   decimal.Decimal `gorm:"column:platform_amount;type:numeric(20,6);not null"`
	CreatorAmount    decimal.Decimal `gorm:"column:creator_amount;type:numeric(20,6);not null"`
	Currency         enums.Currency  `gorm:"column:currency;not null"`
	CreatorWallet    string          `gorm:"column:creator_wallet;not null"`
	TransactionProof string          `gorm:"column:transaction_proof;not null"`
	Breakdown        json.RawMessage `gorm:"column:breakdown;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
