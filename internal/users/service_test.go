package user

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/auth"
	"github.com/veilpost/veilpost-backend/pkg/config"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  wallet_address TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

func newUserService(t *testing.T) Service {
	t.Helper()

	conn := setupUsersTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	passwordCfg := config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024, // keep the test hash cheap
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
	jwtCfg := config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "veilpost",
		ExpirationMinutes: 15,
	}

	svc, err := NewService(NewRepository(conn), passwordCfg, jwtCfg, logg)
	require.NoError(t, err)
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterInput{
		Username:      "creator",
		Password:      "hunter2hunter2",
		WalletAddress: "creator-wallet",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, "hunter2hunter2", created.PasswordHash)

	result, err := svc.Login(ctx, "creator", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, result.User.ID)

	claims, err := auth.ParseAccessToken(config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "veilpost",
		ExpirationMinutes: 15,
	}, result.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, "creator", claims.Username)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	input := RegisterInput{
		Username:      "creator",
		Password:      "hunter2hunter2",
		WalletAddress: "creator-wallet",
	}
	_, err := svc.Register(ctx, input)
	require.NoError(t, err)

	_, err = svc.Register(ctx, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "", Password: "hunter2hunter2", WalletAddress: "w"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, RegisterInput{Username: "u", Password: "short", WalletAddress: "w"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, RegisterInput{Username: "u", Password: "hunter2hunter2", WalletAddress: "  "})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{
		Username:      "creator",
		Password:      "hunter2hunter2",
		WalletAddress: "creator-wallet",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "creator", "wrong-password")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, "no-such-user", "hunter2hunter2")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}
