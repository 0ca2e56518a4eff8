package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/productsearch/internal/adapters/cache"
	"github.com/zatekoja/productsearch/internal/adapters/database"
	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/embeddings"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var workers int
	var productID string
	var stale bool
	var schedule string

	flag.IntVar(&workers, "workers", cfg.Backfill.Workers, "Number of concurrent embedding requests per batch")
	flag.StringVar(&productID, "product", "", "Single product ID to regenerate")
	flag.BoolVar(&stale, "stale", false, "Also regenerate embeddings whose product text changed")
	flag.StringVar(&schedule, "schedule", cfg.Backfill.Schedule, "Cron expression for repeated runs (e.g. \"@every 1h\")")
	flag.Parse()

	observability.InitLogger("product-search-backfill", cfg.Server.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	// The shared query cache is optional for backfills; document embeddings
	// bypass it anyway.
	var shared providers.CacheProvider
	if redisClient, err := redis.NewClient(&cfg.Redis); err == nil {
		defer redisClient.Close()
		shared = cache.NewRedisAdapter(redisClient)
	}

	provider, err := embeddings.NewProvider(&cfg.Embedding, shared)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create embedding provider")
	}

	svc := services.NewEmbeddingService(
		database.NewProductAdapter(pgClient),
		database.NewEmbeddingAdapter(pgClient),
		provider,
		cfg.Embedding,
		workers,
		nil,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if productID != "" {
		embedding, err := svc.EmbedProduct(ctx, productID)
		if err != nil {
			log.Fatal().Err(err).Str("product_id", productID).Msg("failed to regenerate embedding")
		}
		log.Info().
			Str("product_id", productID).
			Str("model", embedding.ModelVersion).
			Int("dimensions", len(embedding.Vector)).
			Msg("embedding regenerated")
		return
	}

	if schedule == "" {
		runBackfill(ctx, svc, stale)
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() { runBackfill(ctx, svc, stale) }); err != nil {
		log.Fatal().Err(err).Str("schedule", schedule).Msg("invalid schedule")
	}
	c.Start()
	log.Info().Str("schedule", schedule).Msg("backfill scheduled")

	<-ctx.Done()
	log.Info().Msg("waiting for running backfill to stop")
	<-c.Stop().Done()
}

// runBackfill embeds missing products, then optionally stale ones, and logs
// the outcome.
func runBackfill(ctx context.Context, svc *services.EmbeddingService, stale bool) {
	start := time.Now()

	summary, err := svc.EmbedAllMissing(ctx)
	logSummary("missing", summary, err, start)

	if stale && ctx.Err() == nil {
		start = time.Now()
		summary, err = svc.EmbedStale(ctx)
		logSummary("stale", summary, err, start)
	}
}

func logSummary(kind string, summary *entities.BackfillSummary, err error, start time.Time) {
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("backfill failed")
	}
	if summary == nil {
		return
	}
	log.Info().
		Str("kind", kind).
		Int("total_processed", summary.TotalProcessed).
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailureCount).
		Dur("elapsed", time.Since(start)).
		Msg("backfill complete")
}
