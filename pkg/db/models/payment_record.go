package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veilpost/veilpost-backend/pkg/enums"
)

// UniquePaymentConstraint names the (payer, post, payment_type) unique index.
// It is the idempotency boundary for recordPayment.
const UniquePaymentConstraint = "ux_payment_records_payer_post_type"

// PaymentRecord is an immutable, append-only row recording a paid unlock. The
// transaction proof is an opaque client-supplied string; it is stored, never
// verified against any chain.
type PaymentRecord struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayerID          uuid.UUID         `gorm:"column:payer_id;type:uuid;not null;uniqueIndex:ux_payment_records_payer_post_type"`
	PostID           uuid.UUID         `gorm:"column:post_id;type:uuid;not null;uniqueIndex:ux_payment_records_payer_post_type;index"`
	PaymentType      enums.PaymentType `gorm:"column:payment_type;not null;uniqueIndex:ux_payment_records_payer_post_type"`
	Amount           decimal.Decimal   `gorm:"column:amount;type:numeric(20,6);not null"`
	Currency         enums.Currency    `gorm:"column:currency;not null"`
	Network          enums.Network     `gorm:"column:network;not null"`
	IsBuyout         bool              `gorm:"column:is_buyout;not null;default:false"`
	TransactionProof string            `gorm:"column:transaction_proof;not null"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
}
