package main

import (
	"context"
	"net/http"

	"github.com/castregistry/cast-registry/internal/config"
	"github.com/castregistry/cast-registry/internal/database"
	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/httpapi"
	"github.com/castregistry/cast-registry/internal/logger"
	"github.com/castregistry/cast-registry/internal/registry"
	"github.com/castregistry/cast-registry/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

func main() {
	ctx := context.Background()
	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("parsing configuration")
	}

	log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("creating logger")
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Fatal(err)
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter("github.com/castregistry/cast-registry")

	errors, err := meter.Int64Counter("errors")
	if err != nil {
		log.Fatalf("creating error counter: %v", err)
	}

	repo, snapshots, closeStore := newStore(ctx, cfg.Store, log)
	defer closeStore()

	policy, err := registry.ParseFetchPolicy(cfg.Fastdeploy.FetchPolicy)
	if err != nil {
		log.Fatal(err)
	}

	reconciler, err := registry.NewReconciler(
		newClient(cfg.Fastdeploy, errors, log),
		repo,
		snapshots,
		registry.NewTokens(cfg.Fastdeploy.Tokens),
		meter,
		log.WithField("component", "reconciler"),
		registry.WithFetchPolicy(policy),
	)
	if err != nil {
		log.WithError(err).Fatal("setting up reconciler")
	}

	metricsMW, err := httpapi.NewMetrics(meter)
	if err != nil {
		log.WithError(err).Fatal("setting up metrics middleware")
	}

	corsMW := cors.New(
		cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowCredentials: true,
			Debug:            cfg.LogLevel == "debug",
		})

	http.Handle("/", corsMW.Handler(httpapi.New(repo, reconciler, metricsMW, log.WithField("component", "httpapi"))))
	http.Handle("/metrics", promhttp.Handler())

	log.Printf("listening on http://%s:%s/", cfg.BindHost, cfg.Port)
	log.Fatal(http.ListenAndServe(cfg.BindHost+":"+cfg.Port, nil))
}

func newClient(cfg config.Fastdeploy, errors api.Int64Counter, log logrus.FieldLogger) fastdeploy.Client {
	if cfg.Client == "test" {
		log.Warn("using the test deployment client, no deployments will be started")
		return fastdeploy.NewDefaultTestClient()
	}
	return fastdeploy.New(cfg, errors, log.WithField("client", "fastdeploy"))
}

func newStore(ctx context.Context, cfg config.Store, log logrus.FieldLogger) (store.Repo, store.SnapshotStore, func()) {
	switch cfg.Kind {
	case "postgres":
		db, closers, err := database.NewDB(ctx, cfg.DBConnectionDSN, log.WithField("component", "database"))
		if err != nil {
			log.WithError(err).Fatal("setting up database")
		}
		return store.NewPostgresRepo(db, log.WithField("component", "repo")), store.NewPostgresSnapshots(db), func() {
			if err := closers.Close(); err != nil {
				log.WithError(err).Error("closing database")
			}
		}
	case "redis":
		client, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.WithError(err).Fatal("setting up redis")
		}
		log.Warn("domains and deployment records are kept in memory, only snapshots are kept in redis")
		return store.NewMemoryRepo(), store.NewRedisSnapshots(client, cfg.SessionTTL), func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Error("closing redis client")
			}
		}
	default:
		return store.NewMemoryRepo(), store.NewMemorySnapshots(cfg.SessionTTL), func() {}
	}
}
