package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veilpost/veilpost-backend/pkg/enums"
)

// PlatformFeeRecord reserves the flat per-transaction platform fee. The
// amount is a configured constant, not a percentage of the payment. Created
// in the same transaction as its PaymentRecord.
type PlatformFeeRecord struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID         uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;uniqueIndex"`
	PostID            uuid.UUID       `gorm:"column:post_id;type:uuid;not null;index"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(20,6);not null"`
	Currency          enums.Currency  `gorm:"column:currency;not null"`
	DestinationWallet string          `gorm:"column:destination_wallet;not null"`
	Status            enums.FeeStatus `gorm:"column:status;not null;default:'recorded'"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}
