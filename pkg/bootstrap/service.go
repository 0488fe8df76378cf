package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/coaching"
	"github.com/fitline/server/pkg/domain/bodycomp"
	"github.com/fitline/server/pkg/domain/metrics"
	"github.com/fitline/server/pkg/infrastructure/database"
	"github.com/fitline/server/pkg/infrastructure/genai"
	"github.com/fitline/server/pkg/infrastructure/notifications"
	"github.com/fitline/server/pkg/infrastructure/oauth"
	infrapubsub "github.com/fitline/server/pkg/infrastructure/pubsub"
	"github.com/fitline/server/pkg/infrastructure/sentry"
	infrastorage "github.com/fitline/server/pkg/infrastructure/storage"
	"github.com/fitline/server/pkg/infrastructure/warehouse"
	"github.com/fitline/server/pkg/integrations/fitbit"
	"github.com/fitline/server/pkg/integrations/healthplanet"
	"github.com/fitline/server/pkg/persistence"
)

// Service holds every long-lived dependency. It is built once per process.
type Service struct {
	Config *Config
	Logger *slog.Logger

	DB        shared.Database
	Warehouse shared.Warehouse
	Pub       shared.Publisher
	Store     shared.BlobStore
	Notifier  shared.Notifier
	Generator shared.TextGenerator
	Images    shared.ImageDescriber
	Archive   *infrastorage.RawArchive

	Tokens      *oauth.Manager
	Aggregator  *metrics.Aggregator
	Weight      *bodycomp.Resolver
	Persistence *persistence.Coordinator
	Coaching    *coaching.Pipeline

	closers []func() error
}

// NewService initializes all standard dependencies. Optional collaborators
// (BigQuery, Redis, FCM, Gemini, archive bucket) degrade to disabled rather
// than failing startup.
func NewService(ctx context.Context, serviceName string) (*Service, error) {
	InitLogger()
	cfg := LoadConfig()
	logger := NewLogger(serviceName)

	logger.Info("Initializing service", "project_id", cfg.ProjectID, "env", cfg.Env)

	if err := sentry.Init(sentry.Config{DSN: cfg.SentryDSN, Environment: cfg.Env, ServerName: serviceName}, logger); err != nil {
		logger.Warn("Continuing without Sentry", "error", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	svc := &Service{Config: cfg, Logger: logger}

	// Firestore
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore init failed", "error", err)
		return nil, fmt.Errorf("firestore init: %w", err)
	}
	svc.closers = append(svc.closers, fsClient.Close)
	db := database.NewFirestoreAdapter(fsClient)
	svc.DB = db

	// BigQuery
	if cfg.EnableBigQuery {
		bqClient, err := bigquery.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Warn("BigQuery init failed, warehouse disabled", "error", err)
		} else {
			wh := warehouse.NewBigQueryWarehouse(bqClient, cfg.ProjectID, cfg.BQDataset, cfg.BQLocation, warehouse.Tables{
				Daily:    cfg.BQTableFitbit,
				Body:     cfg.BQTableBody,
				Profiles: cfg.BQTableProfiles,
				Meals:    cfg.BQTableMeals,
				Monthly:  cfg.BQTableMonthly,
			}, loc, logger.With("component", "warehouse"))
			svc.Warehouse = wh
			svc.closers = append(svc.closers, wh.Close)
			logger.Info("BigQuery: enabled", "dataset", cfg.BQDataset)
		}
	}

	// Pub/Sub
	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub init failed", "error", err)
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		svc.closers = append(svc.closers, psClient.Close)
		svc.Pub = &infrapubsub.PubSubAdapter{Client: psClient}
		logger.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		svc.Pub = &infrapubsub.LogPublisher{Logger: logger}
		logger.Info("Pub/Sub: MOCK (LogPublisher)")
	}

	// Storage
	var archive *infrastorage.RawArchive
	if cfg.RawArchiveBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			logger.Warn("Storage init failed, raw archive disabled", "error", err)
		} else {
			svc.closers = append(svc.closers, gcsClient.Close)
			svc.Store = &infrastorage.StorageAdapter{Client: gcsClient}
			archive = &infrastorage.RawArchive{Store: svc.Store, Bucket: cfg.RawArchiveBucket, Logger: logger}
			svc.Archive = archive
		}
	}

	// Push notifications
	var fcm *notifications.FCMAdapter
	if app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}); err != nil {
		logger.Warn("Firebase init failed, push disabled", "error", err)
	} else if fcm, err = notifications.NewFCMAdapter(ctx, app, db, logger.With("component", "fcm")); err != nil {
		logger.Warn("FCM init failed, push disabled", "error", err)
	}
	svc.Notifier = fcm

	gemini := genai.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel, logger.With("component", "gemini"))
	svc.Generator = gemini
	svc.Images = gemini

	// Tokens
	httpClient := &http.Client{Timeout: 30 * time.Second}
	endpoints := oauth.NewEndpoints(
		oauth.ClientCredentials{ClientID: cfg.FitbitClientID, ClientSecret: cfg.FitbitClientSecret, RedirectURL: cfg.FitbitRedirectURL()},
		oauth.ClientCredentials{ClientID: cfg.HealthPlanetClientID, ClientSecret: cfg.HealthPlanetClientSecret, Scopes: []string{cfg.HealthPlanetScope}},
		httpClient,
	)
	tokenOpts := []oauth.Option{oauth.WithLogger(logger.With("component", "oauth"))}
	if cfg.RedisURL != "" {
		rdb, err := ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, refresh lease is per process", "error", err)
		} else {
			svc.closers = append(svc.closers, rdb.Close)
			tokenOpts = append(tokenOpts, oauth.WithLease(oauth.NewRedisLease(rdb)))
			logger.Info("Redis refresh lease enabled")
		}
	}
	svc.Tokens = oauth.NewManager(db, endpoints, tokenOpts...)

	// Domain
	aggOpts := []metrics.Option{metrics.WithLogger(logger.With("component", "aggregator"))}
	if archive != nil {
		aggOpts = append(aggOpts, metrics.WithArchiver(archive))
	}
	svc.Aggregator = metrics.NewAggregator(svc.Tokens, fitbit.NewClient(nil), healthplanet.NewClient(nil), loc, aggOpts...)
	svc.Weight = bodycomp.NewResolver(svc.Aggregator, db, logger.With("component", "weight"))

	persistOpts := []persistence.Option{
		persistence.WithPublisher(svc.Pub),
		persistence.WithFetchers(svc.Aggregator, svc.Aggregator),
		persistence.WithLocation(loc),
		persistence.WithLogger(logger.With("component", "persistence")),
	}
	if svc.Warehouse != nil {
		persistOpts = append(persistOpts, persistence.WithWarehouse(svc.Warehouse))
	}
	svc.Persistence = persistence.NewCoordinator(db, persistOpts...)

	svc.Coaching = coaching.NewPipeline(svc.Aggregator, svc.Persistence, db, svc.Generator, svc.Notifier, loc,
		coaching.WithLogger(logger.With("component", "coaching")))

	return svc, nil
}

// Close releases clients in reverse creation order and flushes Sentry.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Logger.Warn("Close failed", "error", err)
		}
	}
	sentry.Flush(2 * time.Second)
}

// ConnectRedis parses url, tunes the pool and verifies the connection.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
