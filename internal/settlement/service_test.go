package settlement

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	settlements := `
CREATE TABLE IF NOT EXISTS settlement_records (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  post_id TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  platform_amount NUMERIC NOT NULL,
  creator_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  creator_wallet TEXT NOT NULL,
  transaction_proof TEXT NOT NULL,
  breakdown TEXT,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_settlement_records_payment_id
  ON settlement_records (payment_id);`
	require.NoError(t, db.Exec(settlements).Error)
	return db
}

func newSettlementService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		config.MonetizeConfig{PlatformFee: "0.05"},
		logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	)
	require.NoError(t, err)
	return svc
}

func investorPool(n int) []models.InvestorPosition {
	pool := make([]models.InvestorPosition, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, models.InvestorPosition{
			InvestorID: uuid.New(),
			Position:   i + 1,
		})
	}
	return pool
}

func TestSimulateWithoutInvestors(t *testing.T) {
	svc := newSettlementService(t, setupSettlementTestDB(t))

	breakdown := svc.Simulate(SimulateInput{
		TotalAmount: decimal.RequireFromString("10.00"),
	})

	assert.True(t, decimal.RequireFromString("0.05").Equal(breakdown.Platform))
	assert.True(t, decimal.RequireFromString("9.95").Equal(breakdown.Creator))
	assert.Empty(t, breakdown.Investors)
	assert.True(t, decimal.RequireFromString("10.00").Equal(breakdown.Total()))
}

func TestSimulateSplitsPoolEqually(t *testing.T) {
	svc := newSettlementService(t, setupSettlementTestDB(t))

	breakdown := svc.Simulate(SimulateInput{
		TotalAmount:  decimal.RequireFromString("5.00"),
		SharePercent: 20,
		Investors:    investorPool(2),
	})

	// (5.00 - 0.05) * 20% = 0.99, split two ways.
	require.Len(t, breakdown.Investors, 2)
	for _, cut := range breakdown.Investors {
		assert.True(t, decimal.RequireFromString("0.495").Equal(cut.Amount), "cut %s", cut.Amount)
	}
	assert.True(t, decimal.RequireFromString("0.05").Equal(breakdown.Platform))
	assert.True(t, decimal.RequireFromString("3.96").Equal(breakdown.Creator), "creator %s", breakdown.Creator)
}

func TestSimulateConservesFunds(t *testing.T) {
	svc := newSettlementService(t, setupSettlementTestDB(t))

	cases := []struct {
		total        string
		sharePercent int
		investors    int
	}{
		{"5.00", 20, 2},
		{"10.00", 0, 0},
		{"1.05", 100, 3},
		{"99.999999", 33, 7},
		{"0.05", 50, 4},
	}
	for _, tc := range cases {
		total := decimal.RequireFromString(tc.total)
		breakdown := svc.Simulate(SimulateInput{
			TotalAmount:  total,
			SharePercent: tc.sharePercent,
			Investors:    investorPool(tc.investors),
		})
		assert.True(t, total.Equal(breakdown.Total()),
			"total %s split to %s", total, breakdown.Total())
	}
}

func TestRecordPersistsBreakdown(t *testing.T) {
	db := setupSettlementTestDB(t)
	svc := newSettlementService(t, db)
	ctx := context.Background()

	paymentID := uuid.New()
	postID := uuid.New()
	record, err := svc.Record(ctx, nil, RecordInput{
		PaymentID:        paymentID,
		PostID:           postID,
		Currency:         enums.CurrencySOL,
		CreatorWallet:    "creator-wallet",
		TransactionProof: "signed-proof",
		Simulate: SimulateInput{
			TotalAmount:  decimal.RequireFromString("5.00"),
			SharePercent: 20,
			Investors:    investorPool(2),
		},
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.05").Equal(record.PlatformAmount))
	assert.True(t, decimal.RequireFromString("3.96").Equal(record.CreatorAmount))

	stored, err := svc.ForPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, postID, stored.PostID)

	var breakdown Breakdown
	require.NoError(t, json.Unmarshal(stored.Breakdown, &breakdown))
	require.Len(t, breakdown.Investors, 2)
	assert.True(t, decimal.RequireFromString("5.00").Equal(breakdown.Total()))
}
