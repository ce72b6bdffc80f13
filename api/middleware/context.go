package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxViewerID contextKey = "viewer_id"

// ViewerIDFromContext returns the authenticated viewer's ID, or uuid.Nil for
// anonymous requests.
func ViewerIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxViewerID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithViewerID injects the viewer identifier into the context.
func WithViewerID(ctx context.Context, viewerID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxViewerID, viewerID)
}
