package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Unique constraint names on investor positions. The (post, position) index
// is the serialization point for concurrent buyout claims.
const (
	UniquePositionConstraint = "ux_investor_positions_post_position"
	UniqueInvestorConstraint = "ux_investor_positions_post_investor"
)

// InvestorPosition is one claim on a post's future revenue share. Positions
// are dense (1..MaxInvestorSlots, no gaps); TotalEarnings only ever grows.
type InvestorPosition struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PostID           uuid.UUID       `gorm:"column:post_id;type:uuid;not null;uniqueIndex:ux_investor_positions_post_position;uniqueIndex:ux_investor_positions_post_investor"`
	InvestorID       uuid.UUID       `gorm:"column:investor_id;type:uuid;not null;uniqueIndex:ux_investor_positions_post_investor"`
	Position         int             `gorm:"column:position;not null;uniqueIndex:ux_investor_positions_post_position"`
	InvestmentAmount decimal.Decimal `gorm:"column:investment_amount;type:numeric(20,6);not null"`
	TotalEarnings    decimal.Decimal `gorm:"column:total_earnings;type:numeric(20,6);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
