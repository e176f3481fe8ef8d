package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/CallMeMhz/feature-gating/internal/config"
	"github.com/CallMeMhz/feature-gating/internal/server"
	"github.com/CallMeMhz/feature-gating/pkg/cookie"
	"github.com/CallMeMhz/feature-gating/pkg/httpserver"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/mongo"
	"github.com/CallMeMhz/feature-gating/pkg/redis"
	"github.com/CallMeMhz/feature-gating/pkg/snapshot"
	"github.com/CallMeMhz/feature-gating/pkg/submitguard"
	"github.com/CallMeMhz/feature-gating/pkg/viewer"
)

func serveCmd() *cobra.Command {
	var viewerToasts bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, viewerToasts)
		},
	}
	cmd.Flags().BoolVar(&viewerToasts, "viewer-toasts", false, "Show an error toast when a snapshot cannot be viewed")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, viewerToasts bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(cfg.App)

	opts := []server.Option{
		server.WithLogger(log),
		server.WithEnvironment(cfg.App.Environment()),
		server.WithPages(cfg.Pages),
		server.WithViewer(viewer.NewFromConfig(cfg.Viewer, nil, viewer.WithLogger(log))),
		server.WithViewerFailureToasts(viewerToasts),
	}

	store, projects, mongoOpts, closeStores, err := snapshotStores(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	defer closeStores()
	opts = append(opts, mongoOpts...)

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts,
			server.WithGuardStore(submitguard.NewRedisStore(client, "fg:submit:")),
			server.WithReadinessCheck("redis", redis.Healthcheck(client)),
		)
	}

	svcOpts := []snapshot.ServiceOption{
		snapshot.WithServiceLogger(log),
		snapshot.WithCacheSize(cfg.Snapshots.CacheSize),
	}
	if cfg.Snapshots.Archive.Enabled() {
		archiver, err := snapshot.NewS3ArchiverFromConfig(ctx, cfg.Snapshots.Archive)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, snapshot.WithArchiver(archiver))
	}
	svc := snapshot.NewService(store, projects, svcOpts...)

	cookies, err := newCookies(cfg, log)
	if err != nil {
		return err
	}

	srv := server.New(svc, cookies, opts...)
	defer srv.Close()

	return httpserver.New(
		httpserver.WithConfig(cfg.HTTP),
		httpserver.WithLogger(log),
	).Run(ctx, srv.Handler())
}

// snapshotStores picks MongoDB when configured, memory stores with a demo
// project otherwise.
func snapshotStores(ctx context.Context, cfg mongo.Config, log *slog.Logger) (snapshot.Store, snapshot.ProjectStore, []server.Option, func(), error) {
	if !cfg.Enabled() {
		demo := snapshot.Project{
			ID:        bson.NewObjectID().Hex(),
			Name:      "demo",
			CreatedAt: time.Now().UTC(),
			Items: []any{
				bson.D{{Key: "name", Value: "new_checkout"}, {Key: "enabled", Value: true}},
				bson.D{{Key: "name", Value: "dark_mode"}, {Key: "enabled", Value: false}},
			},
		}
		log.Info("using in-memory snapshot store", logger.ProjectID(demo.ID))
		return snapshot.NewMemoryStore(), snapshot.NewMemoryProjects(demo), nil, func() {}, nil
	}

	client, err := mongo.Connect(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Error("mongo disconnect failed", logger.Error(err))
		}
	}
	db := client.Database(cfg.Database)
	store := snapshot.NewMongoStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		disconnect()
		return nil, nil, nil, nil, err
	}
	return store, snapshot.NewMongoProjects(db), []server.Option{
		server.WithReadinessCheck("mongodb", mongo.Healthcheck(client)),
	}, disconnect, nil
}

// newCookies builds the cookie manager. Outside production a missing secret is
// replaced with a random one, so cookies do not survive a restart.
func newCookies(cfg config.Config, log *slog.Logger) (*cookie.Manager, error) {
	if len(cfg.Cookie.Secrets) == 0 && !cfg.App.Environment().IsProduction() {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate cookie secret: %w", err)
		}
		cfg.Cookie.Secrets = []string{hex.EncodeToString(buf)}
		log.Warn("COOKIE_SECRETS not set, using an ephemeral secret")
	}
	return cookie.NewFromConfig(cfg.Cookie)
}
