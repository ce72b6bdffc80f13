package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	"github.com/veilpost/veilpost-backend/pkg/envelope"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/storage/memory"
)

type stubPosts struct {
	posts map[uuid.UUID]*models.Post
}

func (s *stubPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	record, ok := s.posts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

type stubEntitlements struct {
	paid map[uuid.UUID]bool
}

func (s *stubEntitlements) HasPaid(_ context.Context, viewerID, _ uuid.UUID, _ enums.PaymentType) (bool, error) {
	return s.paid[viewerID], nil
}

type gateFixture struct {
	svc       Service
	blobs     *memory.Store
	post      *models.Post
	creatorID uuid.UUID
	paidID    uuid.UUID
	media     []byte
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	master, err := envelope.NewMaster("test-master-secret")
	require.NoError(t, err)

	blobs := memory.New()
	media := []byte("full resolution media bytes")
	thumbnail := []byte("blurred preview")

	key, err := envelope.GenerateContentKey()
	require.NoError(t, err)
	ciphertext, iv, tag, err := envelope.Seal(media, key)
	require.NoError(t, err)
	keyEnv, err := master.SealContentKey(key)
	require.NoError(t, err)

	postID := uuid.New()
	creatorID := uuid.New()
	record := &models.Post{
		ID:                  postID,
		CreatorID:           creatorID,
		Title:               "Gated Post",
		MediaBlobKey:        "posts/" + postID.String() + "/media",
		ThumbnailBlobKey:    "posts/" + postID.String() + "/thumbnail",
		EncryptedContentKey: keyEnv.EncryptedKey,
		ContentKeyIV:        keyEnv.IV,
		ContentKeyTag:       keyEnv.AuthTag,
	}

	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, record.MediaBlobKey, envelope.EncodeBlob(iv, ciphertext, tag)))
	require.NoError(t, blobs.Put(ctx, record.ThumbnailBlobKey, thumbnail))

	paidID := uuid.New()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(
		&stubPosts{posts: map[uuid.UUID]*models.Post{postID: record}},
		&stubEntitlements{paid: map[uuid.UUID]bool{paidID: true}},
		blobs,
		master,
		logg,
	)
	require.NoError(t, err)

	return &gateFixture{
		svc:       svc,
		blobs:     blobs,
		post:      record,
		creatorID: creatorID,
		paidID:    paidID,
		media:     media,
	}
}

func TestResolvePaidViewerGetsMedia(t *testing.T) {
	f := newGateFixture(t)

	res, err := f.svc.Resolve(context.Background(), f.paidID, f.post.ID)
	require.NoError(t, err)
	assert.True(t, res.Unlocked)
	assert.Equal(t, f.media, res.Media)
	assert.Empty(t, res.ThumbnailKey)
}

func TestResolveCreatorBypassesLedger(t *testing.T) {
	f := newGateFixture(t)

	res, err := f.svc.Resolve(context.Background(), f.creatorID, f.post.ID)
	require.NoError(t, err)
	assert.True(t, res.Unlocked)
	assert.Equal(t, f.media, res.Media)
}

func TestResolveUnpaidViewerGetsThumbnailRef(t *testing.T) {
	f := newGateFixture(t)

	res, err := f.svc.Resolve(context.Background(), uuid.New(), f.post.ID)
	require.NoError(t, err)
	assert.False(t, res.Unlocked)
	assert.Nil(t, res.Media)
	assert.Equal(t, f.post.ThumbnailBlobKey, res.ThumbnailKey)
}

func TestResolveAnonymousViewerGetsThumbnailRef(t *testing.T) {
	f := newGateFixture(t)

	res, err := f.svc.Resolve(context.Background(), uuid.Nil, f.post.ID)
	require.NoError(t, err)
	assert.False(t, res.Unlocked)
}

func TestResolveTamperedMediaFallsBackToThumbnail(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	blob, err := f.blobs.Get(ctx, f.post.MediaBlobKey)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	require.NoError(t, f.blobs.Put(ctx, f.post.MediaBlobKey, blob))

	res, err := f.svc.Resolve(ctx, f.paidID, f.post.ID)
	require.NoError(t, err, "integrity failures must not surface to the viewer")
	assert.False(t, res.Unlocked)
	assert.Equal(t, f.post.ThumbnailBlobKey, res.ThumbnailKey)
}

func TestResolveMissingMediaFallsBackToThumbnail(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	f.blobs.Delete(ctx, f.post.MediaBlobKey)

	res, err := f.svc.Resolve(ctx, f.paidID, f.post.ID)
	require.NoError(t, err)
	assert.False(t, res.Unlocked)
	assert.Equal(t, f.post.ThumbnailBlobKey, res.ThumbnailKey)
}

func TestResolveUnknownPost(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.svc.Resolve(context.Background(), f.paidID, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestThumbnail(t *testing.T) {
	f := newGateFixture(t)

	data, err := f.svc.Thumbnail(context.Background(), f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("blurred preview"), data)
}
