package post

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/db/models"
)

// Repository wires together post persistence helpers.
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

// Create inserts a new post row.
func (r *Repository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// FindByID loads the post without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// ListByCreator returns the creator's posts, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Post, error) {
	var rows []models.Post
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// IncrementViewCount bumps the view counter in a single UPDATE and returns
// the new value. The increment happens server-side so concurrent viewers
// never lose updates.
func (r *Repository) IncrementViewCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.incrementCounter(ctx, id, "view_count")
}

// Upvote bumps the upvote counter atomically and returns the new value.
func (r *Repository) Upvote(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.incrementCounter(ctx, id, "upvote_count")
}

// Downvote bumps the downvote counter atomically and returns the new value.
func (r *Repository) Downvote(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.incrementCounter(ctx, id, "downvote_count")
}

func (r *Repository) incrementCounter(ctx context.Context, id uuid.UUID, column string) (int64, error) {
	tx := r.db.WithContext(ctx)
	res := tx.Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var count int64
	err := tx.Model(&models.Post{}).
		Where("id = ?", id).
		Pluck(column, &count).
		Error
	return count, err
}

// ListNonViralWithUpvotesAtLeast returns sweep candidates: posts that are
// still below viral status but have crossed the upvote threshold.
func (r *Repository) ListNonViralWithUpvotesAtLeast(ctx context.Context, threshold int64) ([]models.Post, error) {
	var rows []models.Post
	err := r.db.WithContext(ctx).
		Where("is_viral = ? AND upvote_count >= ?", false, threshold).
		Order("upvote_count DESC").
		Find(&rows).
		Error
	return rows, err
}

// MarkViral flips the post to viral exactly once. The is_viral guard in the
// WHERE clause makes repeat sweeps no-ops; the boolean result tells the
// caller whether this run performed the transition.
func (r *Repository) MarkViral(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND is_viral = ?", id, false).
		Updates(map[string]any{
			"is_viral":          true,
			"viral_detected_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
