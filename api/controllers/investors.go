package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/veilpost/veilpost-backend/api/middleware"
	"github.com/veilpost/veilpost-backend/api/responses"
	investor "github.com/veilpost/veilpost-backend/internal/investors"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

type investorPositionResponse struct {
	PostID           uuid.UUID `json:"post_id"`
	InvestorID       uuid.UUID `json:"investor_id"`
	Position         int       `json:"position"`
	InvestmentAmount string    `json:"investment_amount"`
	TotalEarnings    string    `json:"total_earnings"`
	CreatedAt        time.Time `json:"created_at"`
}

func toPositionResponses(rows []models.InvestorPosition) []investorPositionResponse {
	out := make([]investorPositionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, investorPositionResponse{
			PostID:           row.PostID,
			InvestorID:       row.InvestorID,
			Position:         row.Position,
			InvestmentAmount: row.InvestmentAmount.String(),
			TotalEarnings:    row.TotalEarnings.String(),
			CreatedAt:        row.CreatedAt,
		})
	}
	return out
}

// InvestorPositions lists the claimed slots on a post.
func InvestorPositions(svc investor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Positions(r.Context(), postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toPositionResponses(rows))
	}
}

// InvestorPortfolio lists every slot the authenticated viewer holds.
func InvestorPortfolio(svc investor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		investorID := middleware.ViewerIDFromContext(r.Context())
		if investorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		rows, err := svc.Portfolio(r.Context(), investorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toPositionResponses(rows))
	}
}
