package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veilpost/veilpost-backend/api/routes"
	"github.com/veilpost/veilpost-backend/internal/access"
	investor "github.com/veilpost/veilpost-backend/internal/investors"
	payment "github.com/veilpost/veilpost-backend/internal/payments"
	post "github.com/veilpost/veilpost-backend/internal/posts"
	"github.com/veilpost/veilpost-backend/internal/settlement"
	user "github.com/veilpost/veilpost-backend/internal/users"
	"github.com/veilpost/veilpost-backend/pkg/broadcast"
	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/db"
	"github.com/veilpost/veilpost-backend/pkg/envelope"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/metrics"
	"github.com/veilpost/veilpost-backend/pkg/migrate"
	"github.com/veilpost/veilpost-backend/pkg/redis"
	"github.com/veilpost/veilpost-backend/pkg/storage"
	"github.com/veilpost/veilpost-backend/pkg/storage/gcs"
	"github.com/veilpost/veilpost-backend/pkg/storage/memory"
)

// devMasterSecret keeps local environments working without a configured
// content secret. Production refuses to boot without a real one.
const devMasterSecret = "veilpost-dev-master-secret"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var blobs storage.BlobStore
	var blobPinger gcs.Pinger
	if cfg.GCS.BucketName != "" {
		gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap blob storage", err)
			os.Exit(1)
		}
		blobs = gcsClient
		blobPinger = gcsClient
	} else {
		logg.Warn(context.Background(), "no GCS bucket configured, using in-memory blob store")
		blobs = memory.New()
	}

	masterSecret := cfg.Content.MasterSecret
	if masterSecret == "" {
		logg.Warn(context.Background(), "no content master secret configured, using dev secret")
		masterSecret = devMasterSecret
	}
	master, err := envelope.NewMaster(masterSecret)
	if err != nil {
		logg.Error(context.Background(), "failed to derive content master key", err)
		os.Exit(1)
	}

	var broadcaster broadcast.Broadcaster = broadcast.Noop{}
	if cfg.GCP.ProjectID != "" {
		pubsubBroadcaster, err := broadcast.NewPubSub(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer pubsubBroadcaster.Close()
		broadcaster = pubsubBroadcaster
	}

	userRepo := user.NewRepository(dbClient.DB())
	postRepo := post.NewRepository(dbClient.DB())
	paymentRepo := payment.NewRepository(dbClient.DB())
	investorRepo := investor.NewRepository(dbClient.DB())
	settlementRepo := settlement.NewRepository(dbClient.DB())

	userService, err := user.NewService(userRepo, cfg.Password, cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	postService, err := post.NewService(postRepo, blobs, master, paymentRepo, investorRepo, cfg.Monetize, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create post service", err)
		os.Exit(1)
	}

	investorService, err := investor.NewService(investorRepo, cfg.Monetize, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create investor service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlementRepo, cfg.Monetize, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	paymentService, err := payment.NewService(
		paymentRepo,
		dbClient,
		postRepo,
		userRepo,
		investorService,
		settlementService,
		broadcaster,
		metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		cfg.Monetize,
		cfg.App,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	accessService, err := access.NewService(postRepo, paymentService, blobs, master, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create access service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Blobs:     blobPinger,
			Users:     userService,
			Posts:     postService,
			Payments:  paymentService,
			Investors: investorService,
			Access:    accessService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
