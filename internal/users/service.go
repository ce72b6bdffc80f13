package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilpost/veilpost-backend/pkg/auth"
	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service covers the thin identity edge: account creation and viewer login.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RegisterInput is the account-creation submission.
type RegisterInput struct {
	Username      string
	Password      string
	WalletAddress string
}

// LoginResult carries the authenticated user and their access token.
type LoginResult struct {
	User  *models.User
	Token string
}

type service struct {
	repo        *Repository
	passwordCfg config.PasswordConfig
	jwtCfg      config.JWTConfig
	logger      *logger.Logger
}

// NewService constructs the user service.
func NewService(repo *Repository, passwordCfg config.PasswordConfig, jwtCfg config.JWTConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		passwordCfg: passwordCfg,
		jwtCfg:      jwtCfg,
		logger:      logg,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if strings.TrimSpace(input.WalletAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet_address is required")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	created, err := s.repo.Create(ctx, &models.User{
		Username:      username,
		WalletAddress: strings.TrimSpace(input.WalletAddress),
		PasswordHash:  hash,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username is taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting user")
	}

	ctx = s.logger.WithField(ctx, "user_id", created.ID.String())
	s.logger.Info(ctx, "user registered")
	return created, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	record, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}

	ok, err := security.VerifyPassword(password, record.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	token, err := auth.MintAccessToken(s.jwtCfg, time.Now().UTC(), auth.AccessTokenPayload{
		UserID:   record.ID,
		Username: record.Username,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	return &LoginResult{User: record, Token: token}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}
	return record, nil
}
