package post

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	"github.com/veilpost/veilpost-backend/pkg/envelope"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/storage"
)

// The slot count cap guards against unboundedly large revenue-share pools.
const maxSlotBound = 100

// Service exposes creator post management and engagement operations.
type Service interface {
	CreatePost(ctx context.Context, creatorID uuid.UUID, input CreatePostInput) (*models.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	RecordView(ctx context.Context, id uuid.UUID) (int64, error)
	Upvote(ctx context.Context, id uuid.UUID) (int64, error)
	Downvote(ctx context.Context, id uuid.UUID) (int64, error)
	Stats(ctx context.Context, creatorID, postID uuid.UUID) (*DashboardStats, error)
}

// CreatePostInput holds the validated payload to create a gated post.
type CreatePostInput struct {
	Title                string
	BasePrice            decimal.Decimal
	BuyoutPrice          *decimal.Decimal
	IsFree               bool
	AcceptedCurrencies   []enums.Currency
	MaxInvestorSlots     int
	InvestorSharePercent int
	CommentsGated        bool
	CommentFee           decimal.Decimal
	Media                []byte
	Thumbnail            []byte
}

// DashboardStats is the creator-facing engagement and earnings snapshot.
type DashboardStats struct {
	PostID               uuid.UUID  `json:"post_id"`
	ViewCount            int64      `json:"view_count"`
	UpvoteCount          int64      `json:"upvote_count"`
	DownvoteCount        int64      `json:"downvote_count"`
	IsViral              bool       `json:"is_viral"`
	ViralAt              *time.Time `json:"viral_detected_at,omitempty"`
	ContentUnlocks       int64      `json:"content_unlocks"`
	InvestorSlotsTaken   int64      `json:"investor_slots_taken"`
	InvestorSlotsTotal   int        `json:"investor_slots_total"`
	UnlocksAfterFirstTen int64      `json:"unlocks_after_first_10"`
}

type unlockCounter interface {
	CountByPostAndType(ctx context.Context, postID uuid.UUID, paymentType enums.PaymentType) (int64, error)
}

type slotCounter interface {
	CountByPost(ctx context.Context, postID uuid.UUID) (int64, error)
}

// service implements the post service.
type service struct {
	repo    *Repository
	blobs   storage.BlobStore
	master  *envelope.Master
	unlocks unlockCounter
	slots   slotCounter
	cfg     config.MonetizeConfig
	logger  *logger.Logger
}

// NewService constructs a post service instance.
func NewService(
	repo *Repository,
	blobs storage.BlobStore,
	master *envelope.Master,
	unlocks unlockCounter,
	slots slotCounter,
	cfg config.MonetizeConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("post repository required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if master == nil {
		return nil, fmt.Errorf("content master key required")
	}
	if unlocks == nil {
		return nil, fmt.Errorf("unlock counter required")
	}
	if slots == nil {
		return nil, fmt.Errorf("slot counter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		blobs:   blobs,
		master:  master,
		unlocks: unlocks,
		slots:   slots,
		cfg:     cfg,
		logger:  logg,
	}, nil
}

// MediaKey returns the blob key for a post's encrypted media.
func MediaKey(postID uuid.UUID) string {
	return fmt.Sprintf("posts/%s/media", postID)
}

// ThumbnailKey returns the blob key for a post's blurred thumbnail.
func ThumbnailKey(postID uuid.UUID) string {
	return fmt.Sprintf("posts/%s/thumbnail", postID)
}

// CreatePost encrypts the media under a fresh content key, uploads both
// blobs, wraps the key under the master key, and inserts the post row.
func (s *service) CreatePost(ctx context.Context, creatorID uuid.UUID, input CreatePostInput) (*models.Post, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	slots := input.MaxInvestorSlots
	if slots == 0 {
		slots = s.cfg.DefaultInvestorSlots
	}

	postID := uuid.New()
	ctx = s.logger.WithPostID(ctx, postID.String())

	contentKey, err := envelope.GenerateContentKey()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating content key")
	}

	ciphertext, iv, tag, err := envelope.Seal(input.Media, contentKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sealing media")
	}

	mediaKey := MediaKey(postID)
	if err := s.blobs.Put(ctx, mediaKey, envelope.EncodeBlob(iv, ciphertext, tag)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "uploading encrypted media")
	}

	thumbKey := ThumbnailKey(postID)
	if err := s.blobs.Put(ctx, thumbKey, input.Thumbnail); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "uploading thumbnail")
	}

	keyEnv, err := s.master.SealContentKey(contentKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "wrapping content key")
	}

	currencies := make([]string, 0, len(input.AcceptedCurrencies))
	for _, c := range input.AcceptedCurrencies {
		currencies = append(currencies, c.String())
	}

	record := &models.Post{
		ID:                   postID,
		CreatorID:            creatorID,
		Title:                input.Title,
		BasePrice:            input.BasePrice,
		BuyoutPrice:          input.BuyoutPrice,
		IsFree:               input.IsFree,
		AcceptedCurrencies:   currencies,
		MaxInvestorSlots:     slots,
		InvestorSharePercent: input.InvestorSharePercent,
		CommentsGated:        input.CommentsGated,
		CommentFee:           input.CommentFee,
		MediaBlobKey:         mediaKey,
		ThumbnailBlobKey:     thumbKey,
		EncryptedContentKey:  keyEnv.EncryptedKey,
		ContentKeyIV:         keyEnv.IV,
		ContentKeyTag:        keyEnv.AuthTag,
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting post")
	}

	s.logger.Info(ctx, "post created")
	return created, nil
}

// GetPost returns the stored post row.
func (s *service) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}
	return record, nil
}

// RecordView increments the view counter and returns the new value.
func (s *service) RecordView(ctx context.Context, id uuid.UUID) (int64, error) {
	count, err := s.repo.IncrementViewCount(ctx, id)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}
	return count, nil
}

// Upvote increments the upvote counter and returns the new value.
func (s *service) Upvote(ctx context.Context, id uuid.UUID) (int64, error) {
	count, err := s.repo.Upvote(ctx, id)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}
	return count, nil
}

// Downvote increments the downvote counter and returns the new value.
func (s *service) Downvote(ctx context.Context, id uuid.UUID) (int64, error) {
	count, err := s.repo.Downvote(ctx, id)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}
	return count, nil
}

// Stats assembles the creator dashboard snapshot for one post.
func (s *service) Stats(ctx context.Context, creatorID, postID uuid.UUID) (*DashboardStats, error) {
	record, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}
	if record.CreatorID != creatorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "post belongs to another creator")
	}

	unlocks, err := s.unlocks.CountByPostAndType(ctx, postID, enums.PaymentTypeContent)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting unlocks")
	}
	taken, err := s.slots.CountByPost(ctx, postID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting investor slots")
	}

	return &DashboardStats{
		PostID:             postID,
		ViewCount:          record.ViewCount,
		UpvoteCount:        record.UpvoteCount,
		DownvoteCount:      record.DownvoteCount,
		IsViral:            record.IsViral,
		ViralAt:            record.ViralAt,
		ContentUnlocks:     unlocks,
		InvestorSlotsTaken: taken,
		InvestorSlotsTotal: record.MaxInvestorSlots,
		// The offset is a fixed 10 independent of max_investor_slots.
		UnlocksAfterFirstTen: unlocks - 10,
	}, nil
}

func validateCreateInput(input CreatePostInput) error {
	if input.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.BasePrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "base_price cannot be negative")
	}
	if input.BuyoutPrice != nil && input.BuyoutPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyout_price cannot be negative")
	}
	if input.CommentFee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "comment_fee cannot be negative")
	}
	if input.InvestorSharePercent < 0 || input.InvestorSharePercent > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "investor_share_percent must be between 0 and 100")
	}
	if input.MaxInvestorSlots < 0 || input.MaxInvestorSlots > maxSlotBound {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("max_investor_slots must be between 0 and %d", maxSlotBound))
	}
	if len(input.AcceptedCurrencies) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "accepted_currencies cannot be empty")
	}
	for _, c := range input.AcceptedCurrencies {
		if !c.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown currency %q", c))
		}
	}
	if len(input.Media) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "media is required")
	}
	if len(input.Thumbnail) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "thumbnail is required")
	}
	return nil
}
