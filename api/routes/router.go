package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veilpost/veilpost-backend/api/controllers"
	"github.com/veilpost/veilpost-backend/api/middleware"
	"github.com/veilpost/veilpost-backend/internal/access"
	investor "github.com/veilpost/veilpost-backend/internal/investors"
	payment "github.com/veilpost/veilpost-backend/internal/payments"
	post "github.com/veilpost/veilpost-backend/internal/posts"
	user "github.com/veilpost/veilpost-backend/internal/users"
	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/redis"
	"github.com/veilpost/veilpost-backend/pkg/storage/gcs"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *redis.Client
	Blobs     gcs.Pinger
	Users     user.Service
	Posts     post.Service
	Payments  payment.Service
	Investors investor.Service
	Access    access.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	authPolicy := middleware.NewRateLimitPolicy("auth", cfg.RateLimit.AuthWindow, cfg.RateLimit.AuthLimit)
	paymentPolicy := middleware.NewRateLimitPolicy("payments", cfg.RateLimit.PaymentWindow, cfg.RateLimit.PaymentLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis, p.Blobs))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(authPolicy, p.Redis, logg))
		r.Post("/register", controllers.AuthRegister(p.Users, logg))
		r.Post("/login", controllers.AuthLogin(p.Users, logg))
	})

	r.Route("/api/v1/posts", func(r chi.Router) {
		// Public surface: anonymous viewers browse metadata and engage.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/{postId}", controllers.PostDetail(p.Posts, logg))
			r.Get("/{postId}/media", controllers.MediaResolve(p.Access, logg))
			r.Get("/{postId}/thumbnail", controllers.MediaThumbnail(p.Access, logg))
			r.Get("/{postId}/investors", controllers.InvestorPositions(p.Investors, logg))
			r.Post("/{postId}/views", controllers.PostView(p.Posts, logg))
			r.Post("/{postId}/upvotes", controllers.PostUpvote(p.Posts, logg))
			r.Post("/{postId}/downvotes", controllers.PostDownvote(p.Posts, logg))
		})

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/", controllers.PostCreate(p.Posts, logg))
			r.Get("/{postId}/stats", controllers.PostStats(p.Posts, logg))
			r.Get("/{postId}/payments/status", controllers.PaymentStatus(p.Payments, logg))
			r.With(middleware.RateLimit(paymentPolicy, p.Redis, logg)).
				Post("/{postId}/payments", controllers.PaymentSubmit(p.Payments, logg))
		})
	})

	r.Route("/api/v1/investors", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/portfolio", controllers.InvestorPortfolio(p.Investors, logg))
	})

	return r
}
