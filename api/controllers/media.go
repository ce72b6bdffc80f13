package controllers

import (
	"encoding/base64"
	"net/http"

	"github.com/veilpost/veilpost-backend/api/middleware"
	"github.com/veilpost/veilpost-backend/api/responses"
	"github.com/veilpost/veilpost-backend/internal/access"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

type mediaResponse struct {
	Unlocked     bool   `json:"unlocked"`
	MediaBase64  string `json:"media_base64,omitempty"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
}

// MediaResolve returns the decrypted media for entitled viewers and the
// thumbnail reference for everyone else.
func MediaResolve(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Resolve(r.Context(), middleware.ViewerIDFromContext(r.Context()), postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := mediaResponse{Unlocked: res.Unlocked, ThumbnailKey: res.ThumbnailKey}
		if res.Unlocked {
			resp.MediaBase64 = base64.StdEncoding.EncodeToString(res.Media)
		}
		responses.WriteSuccess(w, resp)
	}
}

// MediaThumbnail serves the public preview bytes.
func MediaThumbnail(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := postIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		data, err := svc.Thumbnail(r.Context(), postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
