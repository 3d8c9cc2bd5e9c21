// Command dedupsvc runs the geographic entity-deduplication pipeline:
// either as a long-running HTTP service (`serve`) or as a one-shot
// detection pass (`scan`).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/cache"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/config"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/enrich"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/httpapi"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/impact"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/logging"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/merge"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/pipeline"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/resolvers"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/revert"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage/postgres"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/validate"
)

var (
	rootCtx    context.Context
	rootCancel context.CancelFunc
	devLog     bool
)

type deps struct {
	cfg      config.Config
	log      *zap.Logger
	store    *postgres.Store
	pipeline *pipeline.Pipeline
	merger   *merge.Merger
	reverser *revert.Reverser
	impact   *impact.Analyzer
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(devLog)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := postgres.Migrate(sqlDB); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	sqlDB.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	store := postgres.New(pool, log)

	var c cache.Cache = cache.NewInMemory()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		c = cache.NewRedis(redis.NewClient(opt), log)
	}

	var validator *validate.Validator
	if cfg.AnthropicAPIKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		validator = validate.New(client, anthropic.Model(cfg.AnthropicModel), c, 10, log)
	}

	var enricher *enrich.Enricher
	if cfg.EnriquecimentoHabilitado {
		reg := resolvers.NewRegistry(cfg.RegistryBaseURL, cfg.RegistryAPIKey, c, log)
		postal := resolvers.NewPostalCEP(cfg.PostalBaseURL, c, log)
		geo := resolvers.NewGeocoder(cfg.GeocoderBaseURL, cfg.GeocoderAPIKey, c, log)
		places := resolvers.NewPlaces(cfg.PlacesBaseURL, cfg.PlacesAPIKey, c, log)
		enricher = enrich.New(store, reg, postal, geo, places, log)
	}

	return &deps{
		cfg:      cfg,
		log:      log,
		store:    store,
		pipeline: pipeline.New(store, validator, enricher, log),
		merger:   merge.New(store, 30*time.Second),
		reverser: revert.New(store, 30*time.Second),
		impact:   impact.New(store),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "dedupsvc",
	Short: "Geographic entity deduplication pipeline",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(rootCtx)
		if err != nil {
			return err
		}
		defer d.log.Sync()

		srv := httpapi.New(d.store, d.pipeline, d.merger, d.reverser, d.impact, d.log)
		addr := fmt.Sprintf(":%d", d.cfg.Port)
		d.log.Info("starting http server", zap.String("addr", addr))
		return srv.Router().Run(addr)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one detection pass across all entity kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(rootCtx)
		if err != nil {
			return err
		}
		defer d.log.Sync()

		summaries, err := d.pipeline.Run(rootCtx, pipeline.Config{
			Threshold:     d.cfg.ThresholdSimilaridade,
			Limit:         d.cfg.LimitePorExecucao,
			EnrichEnabled: d.cfg.EnriquecimentoHabilitado,
		})
		if err != nil {
			return err
		}
		for _, s := range summaries {
			d.log.Info("scan summary",
				zap.String("kind", string(s.Kind)),
				zap.Int("pairs_detected", s.PairsDetected),
				zap.Int("groups_formed", s.GroupsFormed),
				zap.Int("groups_persisted", s.GroupsPersisted))
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "use a development (console) logger")
	rootCmd.AddCommand(serveCmd, scanCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if rootCancel != nil {
			rootCancel()
		}
		os.Exit(1)
	}
	if rootCancel != nil {
		rootCancel()
	}
}
