package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/productsearch/internal/adapters/cache"
	"github.com/zatekoja/productsearch/internal/adapters/database"
	"github.com/zatekoja/productsearch/internal/adapters/search"
	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
)

// indexBatchSize is how many products are pushed per IndexBatch call.
const indexBatchSize = 100

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("product-search-indexer", cfg.Server.Environment)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", tsClient.Collection()).Msg("deleting product collection")
		if err := tsClient.DropCollection(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete collection")
		}
	}

	index := search.NewTypesenseAdapter(tsClient)
	if err := index.InitSchema(ctx); err != nil {
		return err
	}

	products, err := database.NewProductAdapter(pgClient).ListAll(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("products", len(products)).Msg("indexing products")

	failedBatches := 0
	for start := 0; start < len(products); start += indexBatchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := start + indexBatchSize
		if end > len(products) {
			end = len(products)
		}
		if err := index.IndexBatch(ctx, products[start:end]); err != nil {
			failedBatches++
			log.Warn().Err(err).Int("offset", start).Msg("batch partially failed")
		}
	}

	invalidateSearchCaches(ctx, cfg)

	log.Info().
		Int("products", len(products)).
		Int("failed_batches", failedBatches).
		Msg("indexing finished")
	return nil
}

// invalidateSearchCaches drops suggestion and profile caches built against
// the previous catalog. Redis being down only means the caches expire on
// their own.
func invalidateSearchCaches(ctx context.Context, cfg *config.Config) {
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; skipping cache invalidation")
		return
	}
	defer redisClient.Close()

	invalidation := services.NewCacheInvalidationService(cache.NewRedisAdapter(redisClient), nil)
	if err := invalidation.InvalidateSearchCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate search caches")
	}
}
