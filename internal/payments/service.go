package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	investor "github.com/veilpost/veilpost-backend/internal/investors"
	"github.com/veilpost/veilpost-backend/internal/settlement"
	"github.com/veilpost/veilpost-backend/pkg/broadcast"
	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/metrics"
)

// Service is the payment ledger: the single source of truth for "has this
// user paid", with idempotent recording and transactional fan-out to slot
// allocation, revenue share, and settlement bookkeeping.
type Service interface {
	HasPaid(ctx context.Context, viewerID, postID uuid.UUID, paymentType enums.PaymentType) (bool, error)
	RecordPayment(ctx context.Context, payerID uuid.UUID, input PaymentInput) (*Outcome, error)
	CountByPostAndType(ctx context.Context, postID uuid.UUID, paymentType enums.PaymentType) (int64, error)
}

// PaymentInput is the validated submission for one payment.
type PaymentInput struct {
	PostID           uuid.UUID
	PaymentType      enums.PaymentType
	Amount           decimal.Decimal
	Currency         enums.Currency
	Network          enums.Network
	TransactionProof string
	IsBuyout         bool
}

// Outcome reports what a recordPayment call did. AlreadyPaid outcomes carry
// only the pre-existing record; nothing else ran.
type Outcome struct {
	AlreadyPaid  bool
	Record       *models.PaymentRecord
	Position     *models.InvestorPosition
	Distribution *investor.Distribution
	Settlement   *models.SettlementRecord
}

type postReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
}

type walletReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo        *Repository
	dbClient    *db.Client
	posts       postReader
	wallets     walletReader
	investors   investor.Service
	settlements settlement.Service
	broadcaster broadcast.Broadcaster
	metrics     *metrics.PaymentMetrics
	cfg         config.MonetizeConfig
	prod        bool
	logger      *logger.Logger
}

// NewService constructs the payment ledger service.
func NewService(
	repo *Repository,
	dbClient *db.Client,
	posts postReader,
	wallets walletReader,
	investors investor.Service,
	settlements settlement.Service,
	broadcaster broadcast.Broadcaster,
	paymentMetrics *metrics.PaymentMetrics,
	cfg config.MonetizeConfig,
	app config.AppConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if posts == nil {
		return nil, fmt.Errorf("post reader required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet reader required")
	}
	if investors == nil {
		return nil, fmt.Errorf("investor service required")
	}
	if settlements == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if broadcaster == nil {
		broadcaster = broadcast.Noop{}
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		dbClient:    dbClient,
		posts:       posts,
		wallets:     wallets,
		investors:   investors,
		settlements: settlements,
		broadcaster: broadcaster,
		metrics:     paymentMetrics,
		cfg:         cfg,
		prod:        app.IsProd(),
		logger:      logg,
	}, nil
}

// HasPaid reports entitlement. Free posts grant content access to everyone
// without consulting the ledger.
func (s *service) HasPaid(ctx context.Context, viewerID, postID uuid.UUID, paymentType enums.PaymentType) (bool, error) {
	record, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}
	if record.IsFree && paymentType == enums.PaymentTypeContent {
		return true, nil
	}
	if viewerID == uuid.Nil {
		return false, nil
	}
	existing, err := s.repo.FindByPayerPostType(ctx, viewerID, postID, paymentType)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "querying payment ledger")
	}
	return existing != nil, nil
}

// CountByPostAndType counts ledger rows for a post and payment type.
func (s *service) CountByPostAndType(ctx context.Context, postID uuid.UUID, paymentType enums.PaymentType) (int64, error) {
	return s.repo.CountByPostAndType(ctx, postID, paymentType)
}

// RecordPayment validates the submission, then inside one transaction
// inserts the ledger row, reserves the platform fee, runs slot allocation or
// revenue share, and records the settlement split. Duplicate submissions for
// the same (payer, post, payment_type) return the original outcome instead
// of double-charging.
func (s *service) RecordPayment(ctx context.Context, payerID uuid.UUID, input PaymentInput) (*Outcome, error) {
	post, err := s.posts.FindByID(ctx, input.PostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}

	if err := s.validate(post, input); err != nil {
		return nil, err
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"post_id":      input.PostID.String(),
		"payer_id":     payerID.String(),
		"payment_type": input.PaymentType.String(),
	})

	existing, err := s.repo.FindByPayerPostType(ctx, payerID, input.PostID, input.PaymentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "querying payment ledger")
	}
	if existing != nil {
		s.metrics.IncDuplicate(input.PaymentType.String())
		return &Outcome{AlreadyPaid: true, Record: existing}, nil
	}

	creator, err := s.wallets.FindByID(ctx, post.CreatorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading creator wallet")
	}

	outcome := &Outcome{}
	txErr := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.Create(ctx, &models.PaymentRecord{
			PayerID:          payerID,
			PostID:           input.PostID,
			PaymentType:      input.PaymentType,
			Amount:           input.Amount,
			Currency:         input.Currency,
			Network:          input.Network,
			IsBuyout:         input.IsBuyout,
			TransactionProof: input.TransactionProof,
		})
		if err != nil {
			return err
		}
		outcome.Record = record

		if input.PaymentType == enums.PaymentTypeContent && !post.IsFree {
			if _, err := repo.CreateFeeRecord(ctx, &models.PlatformFeeRecord{
				PaymentID:         record.ID,
				PostID:            post.ID,
				Amount:            s.cfg.PlatformFeeAmount(),
				Currency:          input.Currency,
				DestinationWallet: s.cfg.PlatformFeeWallet,
				Status:            enums.FeeStatusRecorded,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting platform fee record")
			}
		}

		var poolForSettlement []models.InvestorPosition
		sharePercent := 0
		if input.PaymentType == enums.PaymentTypeContent {
			if input.IsBuyout {
				position, err := s.investors.ClaimSlot(ctx, tx, post, payerID, input.Amount)
				if err != nil {
					return err
				}
				outcome.Position = position
			} else {
				dist, err := s.investors.DistributeRevenue(ctx, tx, post, input.Amount, s.cfg.PlatformFeeAmount())
				if err != nil {
					return err
				}
				outcome.Distribution = dist
				if dist != nil {
					poolForSettlement, err = investorPool(ctx, tx, post.ID)
					if err != nil {
						return err
					}
					sharePercent = post.InvestorSharePercent
				}
			}
		}

		settlementRecord, err := s.settlements.Record(ctx, tx, settlement.RecordInput{
			PaymentID:        record.ID,
			PostID:           post.ID,
			Currency:         input.Currency,
			CreatorWallet:    creator.WalletAddress,
			TransactionProof: input.TransactionProof,
			Simulate: settlement.SimulateInput{
				TotalAmount:  input.Amount,
				SharePercent: sharePercent,
				Investors:    poolForSettlement,
			},
		})
		if err != nil {
			return err
		}
		outcome.Settlement = settlementRecord
		return nil
	})

	if txErr != nil {
		if db.IsUniqueViolation(txErr, models.UniquePaymentConstraint) {
			// Lost the insert race; the winner's row is the outcome.
			winner, err := s.repo.FindByPayerPostType(ctx, payerID, input.PostID, input.PaymentType)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "querying payment ledger after conflict")
			}
			if winner != nil {
				s.metrics.IncDuplicate(input.PaymentType.String())
				return &Outcome{AlreadyPaid: true, Record: winner}, nil
			}
		}
		if pkgerrors.HasCode(txErr, pkgerrors.CodeSlotsFull) {
			s.metrics.IncSlotsFull()
		}
		return nil, txErr
	}

	s.metrics.IncRecorded(input.PaymentType.String(), input.Currency.String())
	s.metrics.AddVolume(input.Currency.String(), input.Amount)
	s.logger.Info(ctx, "payment recorded")

	// Fire-and-forget; delivery failures never unwind the ledger.
	event := broadcast.NewEvent(broadcast.EventPaymentRecorded, map[string]any{
		"payment_id":   outcome.Record.ID.String(),
		"post_id":      post.ID.String(),
		"payment_type": input.PaymentType.String(),
		"is_buyout":    input.IsBuyout,
	})
	if err := s.broadcaster.Publish(ctx, event); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("publishing payment event: %v", err))
	}

	return outcome, nil
}

func (s *service) validate(post *models.Post, input PaymentInput) error {
	if !input.PaymentType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment type %q", input.PaymentType))
	}
	if input.Amount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}
	if input.TransactionProof == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction_proof is required")
	}
	if input.IsBuyout && input.PaymentType != enums.PaymentTypeContent {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyout applies to content payments only")
	}
	if input.PaymentType == enums.PaymentTypeComment && !post.CommentsGated {
		return pkgerrors.New(pkgerrors.CodeValidation, "comments on this post are not gated")
	}
	if !post.AcceptsCurrency(input.Currency.String()) {
		return pkgerrors.New(pkgerrors.CodeCurrencyNotAccepted,
			fmt.Sprintf("post does not accept %s", input.Currency))
	}
	if !enums.NetworkAllowed(input.Currency, input.Network, s.prod) {
		return pkgerrors.New(pkgerrors.CodeInvalidNetwork,
			fmt.Sprintf("network %s is not valid for %s in this environment", input.Network, input.Currency))
	}
	return nil
}

func investorPool(ctx context.Context, tx *gorm.DB, postID uuid.UUID) ([]models.InvestorPosition, error) {
	// Read through the transaction so the settlement breakdown matches the
	// pool that was just credited.
	repo := investor.NewRepository(tx)
	rows, err := repo.ListByPost(ctx, postID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing investor pool")
	}
	return rows, nil
}
