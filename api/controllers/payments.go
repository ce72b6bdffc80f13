package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veilpost/veilpost-backend/api/middleware"
	"github.com/veilpost/veilpost-backend/api/responses"
	"github.com/veilpost/veilpost-backend/api/validators"
	payment "github.com/veilpost/veilpost-backend/internal/payments"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

type submitPaymentRequest struct {
	PaymentType      string `json:"payment_type" validate:"required,oneof=content comment"`
	Amount           string `json:"amount" validate:"required"`
	Currency         string `json:"currency" validate:"required"`
	Network          string `json:"network" validate:"required"`
	TransactionProof string `json:"transaction_proof" validate:"required"`
	IsBuyout         bool   `json:"is_buyout"`
}

type paymentOutcomeResponse struct {
	AlreadyPaid bool              `json:"already_paid"`
	PaymentID   uuid.UUID         `json:"payment_id"`
	RecordedAt  time.Time         `json:"recorded_at"`
	Position    *positionResponse `json:"investor_position,omitempty"`
	PerInvestor *string           `json:"per_investor_share,omitempty"`
}

type positionResponse struct {
	Position      int    `json:"position"`
	TotalEarnings string `json:"total_earnings"`
}

// PaymentSubmit records a payment for the authenticated viewer.
func PaymentSubmit(svc payment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		payerID := middleware.ViewerIDFromContext(r.Context())
		if payerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		outcome, err := svc.RecordPayment(r.Context(), payerID, payment.PaymentInput{
			PostID:           postID,
			PaymentType:      enums.PaymentType(payload.PaymentType),
			Amount:           amount,
			Currency:         enums.Currency(payload.Currency),
			Network:          enums.Network(payload.Network),
			TransactionProof: payload.TransactionProof,
			IsBuyout:         payload.IsBuyout,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := paymentOutcomeResponse{
			AlreadyPaid: outcome.AlreadyPaid,
			PaymentID:   outcome.Record.ID,
			RecordedAt:  outcome.Record.CreatedAt,
		}
		if outcome.Position != nil {
			resp.Position = &positionResponse{
				Position:      outcome.Position.Position,
				TotalEarnings: outcome.Position.TotalEarnings.String(),
			}
		}
		if outcome.Distribution != nil {
			share := outcome.Distribution.PerInvestor.String()
			resp.PerInvestor = &share
		}

		status := http.StatusCreated
		if outcome.AlreadyPaid {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, resp)
	}
}

// PaymentStatus reports whether the viewer has paid for the post.
func PaymentStatus(svc payment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentType := enums.PaymentTypeContent
		if raw := r.URL.Query().Get("type"); raw != "" {
			paymentType = enums.PaymentType(raw)
			if !paymentType.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type "+raw))
				return
			}
		}

		paid, err := svc.HasPaid(r.Context(), middleware.ViewerIDFromContext(r.Context()), postID, paymentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"post_id":      postID,
			"payment_type": paymentType,
			"paid":         paid,
		})
	}
}
