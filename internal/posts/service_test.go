package post

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	"github.com/veilpost/veilpost-backend/pkg/envelope"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/storage/memory"
)

type stubUnlockCounter struct {
	unlocks int64
	err     error
}

func (s stubUnlockCounter) CountByPostAndType(context.Context, uuid.UUID, enums.PaymentType) (int64, error) {
	return s.unlocks, s.err
}

type stubSlotCounter struct {
	taken int64
}

func (s stubSlotCounter) CountByPost(context.Context, uuid.UUID) (int64, error) {
	return s.taken, nil
}

type postFixture struct {
	svc    Service
	blobs  *memory.Store
	master *envelope.Master
}

func newPostFixture(t *testing.T, unlocks stubUnlockCounter, slots stubSlotCounter) postFixture {
	t.Helper()

	conn := setupPostsTestDB(t)
	blobs := memory.New()
	master, err := envelope.NewMaster("post-service-test-secret")
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(conn), blobs, master, unlocks, slots, config.MonetizeConfig{
		DefaultInvestorSlots: 10,
	}, logg)
	require.NoError(t, err)

	return postFixture{svc: svc, blobs: blobs, master: master}
}

func validInput() CreatePostInput {
	return CreatePostInput{
		Title:                "Backstage cut",
		BasePrice:            decimal.RequireFromString("5.00"),
		AcceptedCurrencies:   []enums.Currency{enums.CurrencySOL},
		InvestorSharePercent: 20,
		Media:                []byte("raw media bytes"),
		Thumbnail:            []byte("blurred thumbnail"),
	}
}

func TestCreatePostEncryptsMediaAndStoresEnvelope(t *testing.T) {
	fixture := newPostFixture(t, stubUnlockCounter{}, stubSlotCounter{})
	ctx := context.Background()
	creatorID := uuid.New()

	created, err := fixture.svc.CreatePost(ctx, creatorID, validInput())
	require.NoError(t, err)

	assert.Equal(t, creatorID, created.CreatorID)
	assert.Equal(t, 10, created.MaxInvestorSlots, "zero slots falls back to the configured default")
	assert.Equal(t, []string{"SOL"}, []string(created.AcceptedCurrencies))

	// The stored media blob must not contain the plaintext.
	blob, err := fixture.blobs.Get(ctx, created.MediaBlobKey)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "raw media bytes")

	thumb, err := fixture.blobs.Get(ctx, created.ThumbnailBlobKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("blurred thumbnail"), thumb)

	// The key envelope on the row round-trips back to plaintext media.
	contentKey, err := fixture.master.OpenContentKey(envelope.KeyEnvelope{
		EncryptedKey: created.EncryptedContentKey,
		IV:           created.ContentKeyIV,
		AuthTag:      created.ContentKeyTag,
	})
	require.NoError(t, err)

	iv, ciphertext, tag, err := envelope.DecodeBlob(blob)
	require.NoError(t, err)
	plaintext, err := envelope.Open(ciphertext, contentKey, iv, tag)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw media bytes"), plaintext)

	// Each post gets its own content key.
	second, err := fixture.svc.CreatePost(ctx, creatorID, validInput())
	require.NoError(t, err)
	assert.NotEqual(t, created.EncryptedContentKey, second.EncryptedContentKey)
}

func TestCreatePostValidation(t *testing.T) {
	fixture := newPostFixture(t, stubUnlockCounter{}, stubSlotCounter{})
	ctx := context.Background()

	cases := map[string]func(*CreatePostInput){
		"missing title":      func(in *CreatePostInput) { in.Title = "" },
		"negative price":     func(in *CreatePostInput) { in.BasePrice = decimal.RequireFromString("-1") },
		"share over 100":     func(in *CreatePostInput) { in.InvestorSharePercent = 101 },
		"too many slots":     func(in *CreatePostInput) { in.MaxInvestorSlots = maxSlotBound + 1 },
		"no currencies":      func(in *CreatePostInput) { in.AcceptedCurrencies = nil },
		"unknown currency":   func(in *CreatePostInput) { in.AcceptedCurrencies = []enums.Currency{"DOGE"} },
		"missing media":      func(in *CreatePostInput) { in.Media = nil },
		"missing thumbnail":  func(in *CreatePostInput) { in.Thumbnail = nil },
		"negative comment":   func(in *CreatePostInput) { in.CommentFee = decimal.RequireFromString("-0.01") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := validInput()
			mutate(&input)
			_, err := fixture.svc.CreatePost(ctx, uuid.New(), input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestStatsRequiresOwnership(t *testing.T) {
	fixture := newPostFixture(t, stubUnlockCounter{unlocks: 14}, stubSlotCounter{taken: 3})
	ctx := context.Background()

	created, err := fixture.svc.CreatePost(ctx, uuid.New(), validInput())
	require.NoError(t, err)

	_, err = fixture.svc.Stats(ctx, uuid.New(), created.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	stats, err := fixture.svc.Stats(ctx, created.CreatorID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(14), stats.ContentUnlocks)
	assert.Equal(t, int64(4), stats.UnlocksAfterFirstTen)
	assert.Equal(t, int64(3), stats.InvestorSlotsTaken)
	assert.Equal(t, 10, stats.InvestorSlotsTotal)
}

func TestStatsSurfacesCounterFailure(t *testing.T) {
	fixture := newPostFixture(t, stubUnlockCounter{err: fmt.Errorf("ledger offline")}, stubSlotCounter{})
	ctx := context.Background()

	created, err := fixture.svc.CreatePost(ctx, uuid.New(), validInput())
	require.NoError(t, err)

	_, err = fixture.svc.Stats(ctx, created.CreatorID, created.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestGetPostUnknownID(t *testing.T) {
	fixture := newPostFixture(t, stubUnlockCounter{}, stubSlotCounter{})

	_, err := fixture.svc.GetPost(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
