package settlement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

// Service computes and persists the intended fund split for a payment. No
// funds move; the breakdown is bookkeeping for audit and dashboards.
type Service interface {
	Simulate(input SimulateInput) Breakdown
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.SettlementRecord, error)
	ForPayment(ctx context.Context, paymentID uuid.UUID) (*models.SettlementRecord, error)
}

// SimulateInput describes one payment to split.
type SimulateInput struct {
	TotalAmount  decimal.Decimal
	SharePercent int
	Investors    []models.InvestorPosition
}

// Breakdown is the structured split of a single payment.
type Breakdown struct {
	Platform  decimal.Decimal `json:"platform"`
	Creator   decimal.Decimal `json:"creator"`
	Investors []InvestorCut   `json:"investors"`
}

// InvestorCut is one investor's slice of a payment.
type InvestorCut struct {
	InvestorID uuid.UUID       `json:"investor_id"`
	Position   int             `json:"position"`
	Amount     decimal.Decimal `json:"amount"`
}

// Total sums every leg of the breakdown.
func (b Breakdown) Total() decimal.Decimal {
	total := b.Platform.Add(b.Creator)
	for _, cut := range b.Investors {
		total = total.Add(cut.Amount)
	}
	return total
}

// RecordInput carries the identifiers persisted alongside the breakdown.
type RecordInput struct {
	PaymentID        uuid.UUID
	PostID           uuid.UUID
	Currency         enums.Currency
	CreatorWallet    string
	TransactionProof string
	Simulate         SimulateInput
}

type service struct {
	repo   *Repository
	cfg    config.MonetizeConfig
	logger *logger.Logger
}

// NewService constructs a settlement service instance.
func NewService(repo *Repository, cfg config.MonetizeConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cfg: cfg, logger: logg}, nil
}

// Simulate splits the payment: the platform takes the flat configured fee,
// each investor in a qualifying pool takes an equal cut of the post-fee
// share, and the creator keeps the remainder. The legs always sum back to
// the total.
func (s *service) Simulate(input SimulateInput) Breakdown {
	platform := s.cfg.PlatformFeeAmount()
	// The flat fee never exceeds the payment itself, so zero-amount
	// payments settle to an all-zero breakdown.
	if input.TotalAmount.LessThan(platform) {
		platform = input.TotalAmount
	}

	breakdown := Breakdown{
		Platform:  platform,
		Investors: []InvestorCut{},
	}

	investorSum := decimal.Zero
	if len(input.Investors) > 0 && input.SharePercent > 0 {
		per := perInvestorCut(input.TotalAmount, platform, input.SharePercent, int64(len(input.Investors)))
		for _, position := range input.Investors {
			breakdown.Investors = append(breakdown.Investors, InvestorCut{
				InvestorID: position.InvestorID,
				Position:   position.Position,
				Amount:     per,
			})
			investorSum = investorSum.Add(per)
		}
	}

	breakdown.Creator = input.TotalAmount.Sub(platform).Sub(investorSum)
	return breakdown
}

// Record simulates the split and persists it inside the caller's
// transaction.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.SettlementRecord, error) {
	breakdown := s.Simulate(input.Simulate)

	encoded, err := json.Marshal(breakdown)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding settlement breakdown")
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}

	record := &models.SettlementRecord{
		PaymentID:        input.PaymentID,
		PostID:           input.PostID,
		TotalAmount:      input.Simulate.TotalAmount,
		PlatformAmount:   breakdown.Platform,
		CreatorAmount:    breakdown.Creator,
		Currency:         input.Currency,
		CreatorWallet:    input.CreatorWallet,
		TransactionProof: input.TransactionProof,
		Breakdown:        encoded,
	}
	created, err := repo.Create(ctx, record)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting settlement record")
	}
	return created, nil
}

// ForPayment returns the persisted settlement for a payment.
func (s *service) ForPayment(ctx context.Context, paymentID uuid.UUID) (*models.SettlementRecord, error) {
	record, err := s.repo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "settlement not found")
	}
	return record, nil
}

func perInvestorCut(total, platformFee decimal.Decimal, sharePercent int, investorCount int64) decimal.Decimal {
	afterFee := total.Sub(platformFee)
	pool := afterFee.
		Mul(decimal.NewFromInt(int64(sharePercent))).
		DivRound(decimal.NewFromInt(100), 6)
	return pool.DivRound(decimal.NewFromInt(investorCount), 6)
}
