package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
)

// Repository wires together payment ledger persistence helpers.
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

// Create inserts the payment row. A duplicate (payer, post, payment_type)
// surfaces as a unique violation for the caller to translate.
func (r *Repository) Create(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByPayerPostType returns the payment for the idempotency tuple, or nil
// when none exists.
func (r *Repository) FindByPayerPostType(ctx context.Context, payerID, postID uuid.UUID, paymentType enums.PaymentType) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		First(&record, "payer_id = ? AND post_id = ? AND payment_type = ?", payerID, postID, paymentType).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CountByPostAndType counts ledger rows for a post and payment type.
func (r *Repository) CountByPostAndType(ctx context.Context, postID uuid.UUID, paymentType enums.PaymentType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("post_id = ? AND payment_type = ?", postID, paymentType).
		Count(&count).
		Error
	return count, err
}

// ListByPost returns the post's payments, newest first.
func (r *Repository) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.PaymentRecord, error) {
	var rows []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// CreateFeeRecord inserts the platform fee bookkeeping row for a payment.
func (r *Repository) CreateFeeRecord(ctx context.Context, record *models.PlatformFeeRecord) (*models.PlatformFeeRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindFeeByPaymentID returns the fee row recorded for a payment.
func (r *Repository) FindFeeByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.PlatformFeeRecord, error) {
	var record models.PlatformFeeRecord
	if err := r.db.WithContext(ctx).First(&record, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
