package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/veilpost/veilpost-backend/api/responses"
	"github.com/veilpost/veilpost-backend/api/validators"
	user "github.com/veilpost/veilpost-backend/internal/users"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

type registerRequest struct {
	Username      string `json:"username" validate:"required,min=3,max=64"`
	Password      string `json:"password" validate:"required,min=8"`
	WalletAddress string `json:"wallet_address" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"wallet_address"`
}

// AuthRegister creates a new account.
func AuthRegister(svc user.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Register(r.Context(), user.RegisterInput{
			Username:      payload.Username,
			Password:      payload.Password,
			WalletAddress: payload.WalletAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, userResponse{
			ID:            created.ID,
			Username:      created.Username,
			WalletAddress: created.WalletAddress,
		})
	}
}

// AuthLogin exchanges credentials for an access token.
func AuthLogin(svc user.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), payload.Username, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"token": result.Token,
			"user": userResponse{
				ID:            result.User.ID,
				Username:      result.User.Username,
				WalletAddress: result.User.WalletAddress,
			},
		})
	}
}
