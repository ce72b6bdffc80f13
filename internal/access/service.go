package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	"github.com/veilpost/veilpost-backend/pkg/envelope"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/storage"
)

// Service is the media gate. Resolve never surfaces decryption or storage
// failures to the caller: an entitled viewer whose media cannot be produced
// degrades to the public thumbnail, same as an unentitled one.
type Service interface {
	Resolve(ctx context.Context, viewerID, postID uuid.UUID) (*Resolution, error)
	Thumbnail(ctx context.Context, postID uuid.UUID) ([]byte, error)
}

// Resolution is what a viewer sees for a post: either the decrypted media or
// the public thumbnail key to fetch instead.
type Resolution struct {
	Post         *models.Post
	Unlocked     bool
	Media        []byte
	ThumbnailKey string
}

type postReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
}

type entitlementChecker interface {
	HasPaid(ctx context.Context, viewerID, postID uuid.UUID, paymentType enums.PaymentType) (bool, error)
}

type service struct {
	posts    postReader
	payments entitlementChecker
	blobs    storage.BlobStore
	master   *envelope.Master
	logger   *logger.Logger
}

// NewService constructs the access gate.
func NewService(posts postReader, payments entitlementChecker, blobs storage.BlobStore, master *envelope.Master, logg *logger.Logger) (Service, error) {
	if posts == nil {
		return nil, fmt.Errorf("post reader required")
	}
	if payments == nil {
		return nil, fmt.Errorf("entitlement checker required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if master == nil {
		return nil, fmt.Errorf("master key required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		posts:    posts,
		payments: payments,
		blobs:    blobs,
		master:   master,
		logger:   logg,
	}, nil
}

// Resolve decides what the viewer may see. Creators always see their own
// media; everyone else goes through the payment ledger. Errors past the
// entitlement check degrade to the thumbnail instead of propagating.
func (s *service) Resolve(ctx context.Context, viewerID, postID uuid.UUID) (*Resolution, error) {
	record, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}

	entitled := viewerID != uuid.Nil && viewerID == record.CreatorID
	if !entitled {
		entitled, err = s.payments.HasPaid(ctx, viewerID, postID, enums.PaymentTypeContent)
		if err != nil {
			return nil, err
		}
	}

	locked := &Resolution{Post: record, ThumbnailKey: record.ThumbnailBlobKey}
	if !entitled {
		return locked, nil
	}

	ctx = s.logger.WithPostID(ctx, postID.String())
	media, err := s.decryptMedia(ctx, record)
	if err != nil {
		// The viewer paid but the media cannot be produced; serve the
		// thumbnail rather than failing the request.
		s.logger.Warn(ctx, fmt.Sprintf("serving thumbnail fallback: %v", err))
		return locked, nil
	}

	return &Resolution{Post: record, Unlocked: true, Media: media}, nil
}

// Thumbnail fetches the public preview blob.
func (s *service) Thumbnail(ctx context.Context, postID uuid.UUID) ([]byte, error) {
	record, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "post not found")
	}
	data, err := s.blobs.Get(ctx, record.ThumbnailBlobKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetching thumbnail blob")
	}
	return data, nil
}

func (s *service) decryptMedia(ctx context.Context, record *models.Post) ([]byte, error) {
	blob, err := s.blobs.Get(ctx, record.MediaBlobKey)
	if err != nil {
		return nil, fmt.Errorf("fetching media blob: %w", err)
	}

	iv, ciphertext, tag, err := envelope.DecodeBlob(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding media blob: %w", err)
	}

	key, err := s.master.OpenContentKey(envelope.KeyEnvelope{
		EncryptedKey: record.EncryptedContentKey,
		IV:           record.ContentKeyIV,
		AuthTag:      record.ContentKeyTag,
	})
	if err != nil {
		return nil, fmt.Errorf("unwrapping content key: %w", err)
	}

	media, err := envelope.Open(ciphertext, key, iv, tag)
	if err != nil {
		return nil, fmt.Errorf("decrypting media: %w", err)
	}
	return media, nil
}
