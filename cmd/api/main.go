package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/productsearch/internal/adapters/cache"
	"github.com/zatekoja/productsearch/internal/adapters/database"
	"github.com/zatekoja/productsearch/internal/adapters/events"
	"github.com/zatekoja/productsearch/internal/adapters/search"
	"github.com/zatekoja/productsearch/internal/api/handlers"
	"github.com/zatekoja/productsearch/internal/api/middleware"
	"github.com/zatekoja/productsearch/internal/api/routes"
	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/embeddings"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the shared caches and the event bus. Search keeps working
	// without it.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; caches and event bus disabled")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	var searchIndex repositories.ProductSearchIndex
	if cfg.Typesense.CandidateSource == "typesense" {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; lexical candidates come from PostgreSQL")
		} else {
			adapter := search.NewTypesenseAdapter(typesenseClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchIndex = adapter
		}
	}

	embeddingProvider, err := embeddings.NewProvider(&cfg.Embedding, cacheProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize embedding provider")
	}

	// Adapters
	productRepo := database.NewProductAdapter(pgClient)
	embeddingRepo := database.NewEmbeddingAdapter(pgClient)
	interactionRepo := database.NewInteractionAdapter(pgClient)
	searchQueryRepo := database.NewSearchQueryAdapter(pgClient)

	// Services
	lexicalService := services.NewLexicalSearchService(productRepo, searchIndex, metrics)
	embeddingService := services.NewEmbeddingService(productRepo, embeddingRepo, embeddingProvider, cfg.Embedding, cfg.Backfill.Workers, metrics)
	hybridService := services.NewHybridSearchService(lexicalService, embeddingService, services.HybridWeightsFromConfig(cfg.Search), metrics)
	personalizationService := services.NewPersonalizationService(
		hybridService,
		interactionRepo,
		productRepo,
		cacheProvider,
		cfg.Search.PersonalizationHistory,
		cfg.Search.ProfileCacheTTL,
		metrics,
	)
	suggestionService := services.NewSuggestionService(searchQueryRepo, productRepo, cacheProvider, cfg.Search.SuggestionWindowDays, metrics)
	tracker := services.NewInteractionTracker(interactionRepo, searchQueryRepo, eventBus, metrics)
	analyticsService := services.NewAnalyticsService(interactionRepo, searchQueryRepo)
	searchService := services.NewSearchService(
		hybridService,
		personalizationService,
		embeddingService,
		suggestionService,
		productRepo,
		tracker,
	)

	// Profile caches are dropped as soon as a user's interactions change.
	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation service")
		}
	}

	if cacheProvider != nil && cfg.Search.SuggestionWarmInterval > 0 {
		services.NewCacheWarmingService(searchQueryRepo, suggestionService).
			StartPeriodicWarming(ctx, cfg.Search.SuggestionWarmInterval)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, nil, metrics)
	}

	checks := map[string]handlers.HealthCheck{"postgres": pgClient.Ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	router := routes.NewRouter(
		handlers.NewHealthHandler(checks),
		handlers.NewSearchHandler(searchService),
		handlers.NewTrackingHandler(tracker),
		handlers.NewAnalyticsHandler(analyticsService),
		handlers.NewEmbeddingHandler(embeddingService),
		cacheMiddleware,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Let in-flight tracking writes land before the stores close.
	tracker.Wait()

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
