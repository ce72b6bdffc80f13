package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/db/models"
)

// Repository wires together settlement record persistence helpers.
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

// Create inserts a new settlement row.
func (r *Repository) Create(ctx context.Context, record *models.SettlementRecord) (*models.SettlementRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByPaymentID returns the settlement recorded for a payment.
func (r *Repository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.SettlementRecord, error) {
	var record models.SettlementRecord
	if err := r.db.WithContext(ctx).First(&record, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByPost returns the post's settlements, newest first.
func (r *Repository) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.SettlementRecord, error) {
	var rows []models.SettlementRecord
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}
