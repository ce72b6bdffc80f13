package investor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

// Service assigns investor slots and distributes revenue share. Mutating
// operations take the caller's transaction so slot claims and credits commit
// or roll back with the payment that triggered them.
type Service interface {
	ClaimSlot(ctx context.Context, tx *gorm.DB, post *models.Post, investorID uuid.UUID, amount decimal.Decimal) (*models.InvestorPosition, error)
	DistributeRevenue(ctx context.Context, tx *gorm.DB, post *models.Post, amount, platformFee decimal.Decimal) (*Distribution, error)
	Positions(ctx context.Context, postID uuid.UUID) ([]models.InvestorPosition, error)
	Portfolio(ctx context.Context, investorID uuid.UUID) ([]models.InvestorPosition, error)
}

// Distribution describes one revenue-share payout across the investor pool.
// A nil Distribution means the payment did not qualify (pool not full, or no
// share percent configured).
type Distribution struct {
	InvestorCount int64
	PoolShare     decimal.Decimal
	PerInvestor   decimal.Decimal
}

type service struct {
	repo   *Repository
	cfg    config.MonetizeConfig
	logger *logger.Logger
}

// NewService constructs an investor service instance.
func NewService(repo *Repository, cfg config.MonetizeConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("investor repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.SlotClaimMaxAttempts <= 0 {
		cfg.SlotClaimMaxAttempts = 1
	}
	return &service{repo: repo, cfg: cfg, logger: logg}, nil
}

// ClaimSlot assigns the next free densely-numbered position to the investor.
// Two concurrent claims computing the same position collide on the
// (post, position) unique index; the loser re-reads the count and retries.
func (s *service) ClaimSlot(ctx context.Context, tx *gorm.DB, post *models.Post, investorID uuid.UUID, amount decimal.Decimal) (*models.InvestorPosition, error) {
	repo := s.txRepo(tx)

	for attempt := 0; attempt < s.cfg.SlotClaimMaxAttempts; attempt++ {
		count, err := repo.CountByPost(ctx, post.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting investor positions")
		}
		if count >= int64(post.MaxInvestorSlots) {
			return nil, pkgerrors.New(pkgerrors.CodeSlotsFull,
				fmt.Sprintf("all %d investor slots on post %s are taken", post.MaxInvestorSlots, post.ID))
		}

		position := &models.InvestorPosition{
			PostID:           post.ID,
			InvestorID:       investorID,
			Position:         int(count) + 1,
			InvestmentAmount: amount,
			TotalEarnings:    decimal.Zero,
		}
		created, err := s.insertBehindSavepoint(ctx, tx, repo, position, attempt)
		if err == nil {
			return created, nil
		}
		if db.IsUniqueViolation(err, models.UniqueInvestorConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "investor already holds a slot on this post")
		}
		if db.IsUniqueViolation(err, models.UniquePositionConstraint) {
			// Lost the race on this position, re-read and try the next one.
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting investor position")
	}

	// Every retry collided; report the pool state as of the final check.
	count, err := repo.CountByPost(ctx, post.ID)
	if err == nil && count >= int64(post.MaxInvestorSlots) {
		return nil, pkgerrors.New(pkgerrors.CodeSlotsFull,
			fmt.Sprintf("all %d investor slots on post %s are taken", post.MaxInvestorSlots, post.ID))
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency,
		fmt.Sprintf("could not claim an investor slot after %d attempts", s.cfg.SlotClaimMaxAttempts))
}

// insertBehindSavepoint runs one insert attempt inside its own savepoint.
// Postgres refuses every statement after the first failed one in a
// transaction, so without the savepoint the retry's re-read would fail and
// take the enclosing payment transaction down with it.
func (s *service) insertBehindSavepoint(ctx context.Context, tx *gorm.DB, repo *Repository, position *models.InvestorPosition, attempt int) (*models.InvestorPosition, error) {
	if tx == nil {
		return repo.Create(ctx, position)
	}
	name := fmt.Sprintf("claim_slot_%d", attempt)
	if err := tx.SavePoint(name).Error; err != nil {
		return nil, err
	}
	created, err := repo.Create(ctx, position)
	if err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return nil, rbErr
		}
		return nil, err
	}
	return created, nil
}

// DistributeRevenue splits a qualifying regular payment's revenue share
// equally across the full investor pool. Pools that are not yet full, or
// posts without a share percent, receive nothing.
func (s *service) DistributeRevenue(ctx context.Context, tx *gorm.DB, post *models.Post, amount, platformFee decimal.Decimal) (*Distribution, error) {
	if post.InvestorSharePercent <= 0 || post.MaxInvestorSlots <= 0 {
		return nil, nil
	}

	repo := s.txRepo(tx)
	count, err := repo.CountByPost(ctx, post.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting investor positions")
	}
	if count < int64(post.MaxInvestorSlots) || count == 0 {
		return nil, nil
	}

	perShare := PerInvestorShare(amount, platformFee, post.InvestorSharePercent, count)
	poolShare := perShare.Mul(decimal.NewFromInt(count))

	credited, err := repo.CreditAll(ctx, post.ID, perShare)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "crediting investor pool")
	}
	if credited != count {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity,
			fmt.Sprintf("credited %d of %d investor positions", credited, count))
	}

	ctx = s.logger.WithPostID(ctx, post.ID.String())
	s.logger.Info(ctx, "revenue share distributed")

	return &Distribution{
		InvestorCount: count,
		PoolShare:     poolShare,
		PerInvestor:   perShare,
	}, nil
}

// Positions returns the post's claimed slots in position order.
func (s *service) Positions(ctx context.Context, postID uuid.UUID) ([]models.InvestorPosition, error) {
	return s.repo.ListByPost(ctx, postID)
}

// Portfolio returns every slot the investor holds across posts.
func (s *service) Portfolio(ctx context.Context, investorID uuid.UUID) ([]models.InvestorPosition, error) {
	return s.repo.ListByInvestor(ctx, investorID)
}

func (s *service) txRepo(tx *gorm.DB) *Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

// PerInvestorShare computes the equal split of the post-fee revenue share.
// The split ignores investment amount and position order; every investor in
// the pool receives the same cut, rounded to 6 decimal places.
func PerInvestorShare(amount, platformFee decimal.Decimal, sharePercent int, investorCount int64) decimal.Decimal {
	if investorCount <= 0 || sharePercent <= 0 {
		return decimal.Zero
	}
	afterFee := amount.Sub(platformFee)
	if !afterFee.IsPositive() {
		return decimal.Zero
	}
	poolShare := afterFee.
		Mul(decimal.NewFromInt(int64(sharePercent))).
		DivRound(decimal.NewFromInt(100), 6)
	return poolShare.DivRound(decimal.NewFromInt(investorCount), 6)
}
