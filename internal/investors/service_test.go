package investor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	db := setupInvestorTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, config.MonetizeConfig{SlotClaimMaxAttempts: 3}, testLogger())
	require.NoError(t, err)
	return svc, repo
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func slotPost(maxSlots, sharePercent int) *models.Post {
	return &models.Post{
		ID:                   uuid.New(),
		MaxInvestorSlots:     maxSlots,
		InvestorSharePercent: sharePercent,
	}
}

func TestClaimSlotAssignsDensePositions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	post := slotPost(10, 20)
	amount := decimal.RequireFromString("10.00")

	var successes []int
	var slotsFull int
	for i := 0; i < 12; i++ {
		pos, err := svc.ClaimSlot(ctx, nil, post, uuid.New(), amount)
		if err != nil {
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSlotsFull), "unexpected error: %v", err)
			slotsFull++
			continue
		}
		successes = append(successes, pos.Position)
	}

	assert.Equal(t, 2, slotsFull)
	require.Len(t, successes, 10)
	for i, position := range successes {
		assert.Equal(t, i+1, position)
	}
}

func TestClaimSlotRejectsRepeatInvestor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	post := slotPost(5, 0)
	investorID := uuid.New()
	amount := decimal.RequireFromString("10.00")

	_, err := svc.ClaimSlot(ctx, nil, post, investorID, amount)
	require.NoError(t, err)

	_, err = svc.ClaimSlot(ctx, nil, post, investorID, amount)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestClaimSlotContinuesFromExistingCount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	post := slotPost(5, 0)

	mustCreatePosition(t, repo, post.ID, 1)

	pos, err := svc.ClaimSlot(ctx, nil, post, uuid.New(), decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Position)
}

func TestClaimSlotGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	post := slotPost(5, 0)

	// A row holding position 2 while the count reads 1 makes every attempt
	// compute position 2 and collide, exhausting the retry budget.
	mustCreatePosition(t, repo, post.ID, 2)

	_, err := svc.ClaimSlot(ctx, nil, post, uuid.New(), decimal.RequireFromString("10.00"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestClaimSlotCollisionKeepsTransactionUsable(t *testing.T) {
	conn := setupInvestorTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, config.MonetizeConfig{SlotClaimMaxAttempts: 3}, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	collided := slotPost(5, 0)
	clean := slotPost(5, 0)
	amount := decimal.RequireFromString("10.00")

	// A row holding position 2 while the count reads 1 forces every insert
	// attempt onto the same taken position.
	mustCreatePosition(t, repo, collided.ID, 2)

	err = conn.Transaction(func(tx *gorm.DB) error {
		_, claimErr := svc.ClaimSlot(ctx, tx, collided, uuid.New(), amount)
		require.Error(t, claimErr)
		assert.True(t, pkgerrors.HasCode(claimErr, pkgerrors.CodeDependency))

		// Each failed insert must roll back to its savepoint so the
		// enclosing transaction keeps accepting statements.
		count, countErr := repo.WithTx(tx).CountByPost(ctx, collided.ID)
		require.NoError(t, countErr)
		assert.Equal(t, int64(1), count)

		pos, claimErr := svc.ClaimSlot(ctx, tx, clean, uuid.New(), amount)
		require.NoError(t, claimErr)
		assert.Equal(t, 1, pos.Position)
		return nil
	})
	require.NoError(t, err)

	count, err := repo.CountByPost(ctx, collided.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "rolled-back attempts must not leave rows behind")

	count, err = repo.CountByPost(ctx, clean.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDistributeRevenueSkipsPartialPool(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	post := slotPost(2, 20)

	mustCreatePosition(t, repo, post.ID, 1)

	dist, err := svc.DistributeRevenue(ctx, nil, post,
		decimal.RequireFromString("5.00"), decimal.RequireFromString("0.05"))
	require.NoError(t, err)
	assert.Nil(t, dist)

	rows, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, rows[0].TotalEarnings.IsZero())
}

func TestDistributeRevenueSkipsZeroSharePercent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	post := slotPost(1, 0)

	mustCreatePosition(t, repo, post.ID, 1)

	dist, err := svc.DistributeRevenue(ctx, nil, post,
		decimal.RequireFromString("5.00"), decimal.RequireFromString("0.05"))
	require.NoError(t, err)
	assert.Nil(t, dist)
}

func TestDistributeRevenueSplitsEquallyAcrossFullPool(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	post := slotPost(2, 20)

	mustCreatePosition(t, repo, post.ID, 1)
	mustCreatePosition(t, repo, post.ID, 2)

	dist, err := svc.DistributeRevenue(ctx, nil, post,
		decimal.RequireFromString("5.00"), decimal.RequireFromString("0.05"))
	require.NoError(t, err)
	require.NotNil(t, dist)

	// (5.00 - 0.05) * 20% = 0.99, split two ways.
	assert.True(t, decimal.RequireFromString("0.495").Equal(dist.PerInvestor), "per investor %s", dist.PerInvestor)
	assert.True(t, decimal.RequireFromString("0.99").Equal(dist.PoolShare), "pool share %s", dist.PoolShare)
	assert.Equal(t, int64(2), dist.InvestorCount)

	rows, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.True(t, decimal.RequireFromString("0.495").Equal(row.TotalEarnings))
	}
}

func TestPerInvestorShareRounding(t *testing.T) {
	// 3-way split of an indivisible pool rounds to 6 decimal places.
	share := PerInvestorShare(
		decimal.RequireFromString("1.05"),
		decimal.RequireFromString("0.05"),
		100,
		3,
	)
	assert.True(t, decimal.RequireFromString("0.333333").Equal(share), "got %s", share)
}
