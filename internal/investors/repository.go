package investor

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/db/models"
)

// Repository wires together investor position persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new position row. Collisions on the (post, position)
// unique index surface as errors for the caller to retry.
func (r *Repository) Create(ctx context.Context, position *models.InvestorPosition) (*models.InvestorPosition, error) {
	if position.ID == uuid.Nil {
		position.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
		return nil, err
	}
	return position, nil
}

// CountByPost returns the number of claimed positions on the post.
func (r *Repository) CountByPost(ctx context.Context, postID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvestorPosition{}).
		Where("post_id = ?", postID).
		Count(&count).
		Error
	return count, err
}

// ListByPost returns the post's positions ordered by position number.
func (r *Repository) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.InvestorPosition, error) {
	var rows []models.InvestorPosition
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("position ASC").
		Find(&rows).
		Error
	return rows, err
}

// ListByInvestor returns every position the investor holds, newest first.
func (r *Repository) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]models.InvestorPosition, error) {
	var rows []models.InvestorPosition
	err := r.db.WithContext(ctx).
		Where("investor_id = ?", investorID).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// FindByPostAndInvestor returns the investor's position on the post, if any.
func (r *Repository) FindByPostAndInvestor(ctx context.Context, postID, investorID uuid.UUID) (*models.InvestorPosition, error) {
	var row models.InvestorPosition
	if err := r.db.WithContext(ctx).
		First(&row, "post_id = ? AND investor_id = ?", postID, investorID).
		Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CreditAll adds the per-investor share to every position on the post in one
// UPDATE. All rows move together, so a rolled-back transaction leaves no
// partially credited pool.
func (r *Repository) CreditAll(ctx context.Context, postID uuid.UUID, perShare decimal.Decimal) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InvestorPosition{}).
		Where("post_id = ?", postID).
		UpdateColumn("total_earnings", gorm.Expr("total_earnings + CAST(? AS NUMERIC)", perShare.String()))
	return res.RowsAffected, res.Error
}
