package controllers

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veilpost/veilpost-backend/api/middleware"
	"github.com/veilpost/veilpost-backend/api/responses"
	"github.com/veilpost/veilpost-backend/api/validators"
	post "github.com/veilpost/veilpost-backend/internal/posts"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/enums"
	pkgerrors "github.com/veilpost/veilpost-backend/pkg/errors"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

type createPostRequest struct {
	Title                string   `json:"title" validate:"required,max=200"`
	BasePrice            string   `json:"base_price" validate:"required"`
	BuyoutPrice          *string  `json:"buyout_price,omitempty"`
	IsFree               bool     `json:"is_free"`
	AcceptedCurrencies   []string `json:"accepted_currencies" validate:"required,min=1,dive,required"`
	MaxInvestorSlots     int      `json:"max_investor_slots" validate:"omitempty,min=1,max=100"`
	InvestorSharePercent int      `json:"investor_share_percent" validate:"min=0,max=100"`
	CommentsGated        bool     `json:"comments_gated"`
	CommentFee           *string  `json:"comment_fee,omitempty"`
	MediaBase64          string   `json:"media_base64" validate:"required"`
	ThumbnailBase64      string   `json:"thumbnail_base64" validate:"required"`
}

type postResponse struct {
	ID                   uuid.UUID  `json:"id"`
	CreatorID            uuid.UUID  `json:"creator_id"`
	Title                string     `json:"title"`
	BasePrice            string     `json:"base_price"`
	BuyoutPrice          *string    `json:"buyout_price,omitempty"`
	IsFree               bool       `json:"is_free"`
	AcceptedCurrencies   []string   `json:"accepted_currencies"`
	MaxInvestorSlots     int        `json:"max_investor_slots"`
	InvestorSharePercent int        `json:"investor_share_percent"`
	CommentsGated        bool       `json:"comments_gated"`
	CommentFee           string     `json:"comment_fee"`
	ViewCount            int64      `json:"view_count"`
	UpvoteCount          int64      `json:"upvote_count"`
	DownvoteCount        int64      `json:"downvote_count"`
	IsViral              bool       `json:"is_viral"`
	ViralAt              *time.Time `json:"viral_detected_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

func toPostResponse(record *models.Post) postResponse {
	resp := postResponse{
		ID:                   record.ID,
		CreatorID:            record.CreatorID,
		Title:                record.Title,
		BasePrice:            record.BasePrice.String(),
		IsFree:               record.IsFree,
		AcceptedCurrencies:   record.AcceptedCurrencies,
		MaxInvestorSlots:     record.MaxInvestorSlots,
		InvestorSharePercent: record.InvestorSharePercent,
		CommentsGated:        record.CommentsGated,
		CommentFee:           record.CommentFee.String(),
		ViewCount:            record.ViewCount,
		UpvoteCount:          record.UpvoteCount,
		DownvoteCount:        record.DownvoteCount,
		IsViral:              record.IsViral,
		ViralAt:              record.ViralAt,
		CreatedAt:            record.CreatedAt,
	}
	if record.BuyoutPrice != nil {
		s := record.BuyoutPrice.String()
		resp.BuyoutPrice = &s
	}
	return resp
}

// PostCreate uploads and gates a new post for the authenticated creator.
func PostCreate(svc post.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "post service unavailable"))
			return
		}

		creatorID := middleware.ViewerIDFromContext(r.Context())
		if creatorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createPostRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreatePost(r.Context(), creatorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toPostResponse(created))
	}
}

func (p createPostRequest) toCreateInput() (post.CreatePostInput, error) {
	basePrice, err := decimal.NewFromString(p.BasePrice)
	if err != nil {
		return post.CreatePostInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid base_price")
	}

	input := post.CreatePostInput{
		Title:                p.Title,
		BasePrice:            basePrice,
		IsFree:               p.IsFree,
		MaxInvestorSlots:     p.MaxInvestorSlots,
		InvestorSharePercent: p.InvestorSharePercent,
		CommentsGated:        p.CommentsGated,
	}

	if p.BuyoutPrice != nil {
		buyout, err := decimal.NewFromString(*p.BuyoutPrice)
		if err != nil {
			return post.CreatePostInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyout_price")
		}
		input.BuyoutPrice = &buyout
	}
	if p.CommentFee != nil {
		fee, err := decimal.NewFromString(*p.CommentFee)
		if err != nil {
			return post.CreatePostInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid comment_fee")
		}
		input.CommentFee = fee
	}

	for _, raw := range p.AcceptedCurrencies {
		currency := enums.Currency(raw)
		if !currency.IsValid() {
			return post.CreatePostInput{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown currency "+raw)
		}
		input.AcceptedCurrencies = append(input.AcceptedCurrencies, currency)
	}

	media, err := base64.StdEncoding.DecodeString(p.MediaBase64)
	if err != nil {
		return post.CreatePostInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid media_base64")
	}
	input.Media = media

	thumbnail, err := base64.StdEncoding.DecodeString(p.ThumbnailBase64)
	if err != nil {
		return post.CreatePostInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid thumbnail_base64")
	}
	input.Thumbnail = thumbnail

	return input, nil
}

// PostDetail returns public post metadata.
func PostDetail(svc post.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetPost(r.Context(), postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toPostResponse(record))
	}
}

// PostStats returns the creator dashboard snapshot for one post.
func PostStats(svc post.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID := middleware.ViewerIDFromContext(r.Context())
		if creatorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.Stats(r.Context(), creatorID, postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}

// PostView records one view and returns the new count.
func PostView(svc post.Service, logg *logger.Logger) http.HandlerFunc {
	return counterHandler(svc, logg, "view_count", post.Service.RecordView)
}

// PostUpvote records one upvote and returns the new count.
func PostUpvote(svc post.Service, logg *logger.Logger) http.HandlerFunc {
	return counterHandler(svc, logg, "upvote_count", post.Service.Upvote)
}

// PostDownvote records one downvote and returns the new count.
func PostDownvote(svc post.Service, logg *logger.Logger) http.HandlerFunc {
	return counterHandler(svc, logg, "downvote_count", post.Service.Downvote)
}

func counterHandler(svc post.Service, logg *logger.Logger, field string, op func(post.Service, context.Context, uuid.UUID) (int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := op(svc, r.Context(), postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"post_id": postID,
			field:     count,
		})
	}
}

func postIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "postId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid post id")
	}
	return id, nil
}
