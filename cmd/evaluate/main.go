package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/productsearch/internal/adapters/database"
	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/evaluation"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/embeddings"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
)

func main() {
	var goldenPath string
	var rankerName string
	var minRecall float64
	var minMRR float64
	flag.StringVar(&goldenPath, "golden", "config/golden_queries.json", "path to the golden query set")
	flag.StringVar(&rankerName, "ranker", "all", "ranker to evaluate: lexical, semantic, hybrid or all")
	flag.Float64Var(&minRecall, "min-recall", 0, "fail when average recall@10 is below this")
	flag.Float64Var(&minMRR, "min-mrr", 0, "fail when average mrr@10 is below this")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("product-search-evaluate", cfg.Server.Environment)

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load golden queries")
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatal().Err(err).Msg("invalid golden queries")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	provider, err := embeddings.NewProvider(&cfg.Embedding, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create embedding provider")
	}

	productRepo := database.NewProductAdapter(pgClient)
	lexical := services.NewLexicalSearchService(productRepo, nil, nil)
	embedding := services.NewEmbeddingService(productRepo, database.NewEmbeddingAdapter(pgClient), provider, cfg.Embedding, cfg.Backfill.Workers, nil)
	hybrid := services.NewHybridSearchService(lexical, embedding, services.HybridWeightsFromConfig(cfg.Search), nil)

	rankers := map[string]evaluation.Ranker{
		"lexical": evaluation.RankerFunc(func(ctx context.Context, query string, limit int) ([]string, error) {
			matches, err := lexical.Search(ctx, query, limit)
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(matches))
			for i, m := range matches {
				ids[i] = m.ProductID
			}
			return ids, nil
		}),
		"semantic": evaluation.RankerFunc(func(ctx context.Context, query string, limit int) ([]string, error) {
			matches, err := embedding.SemanticSearch(ctx, query, limit)
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(matches))
			for i, m := range matches {
				ids[i] = m.ProductID
			}
			return ids, nil
		}),
		"hybrid": evaluation.RankerFunc(func(ctx context.Context, query string, limit int) ([]string, error) {
			ranked, err := hybrid.Search(ctx, query, limit)
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(ranked))
			for i, r := range ranked {
				ids[i] = r.ProductID
			}
			return ids, nil
		}),
	}

	names := []string{"lexical", "semantic", "hybrid"}
	if rankerName != "all" {
		if _, ok := rankers[rankerName]; !ok {
			log.Fatal().Str("ranker", rankerName).Msg("unknown ranker")
		}
		names = []string{rankerName}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinRecallAt10: minRecall,
		MinMRRAt10:    minMRR,
	})

	summaries := make([]*evaluation.EvalSummary, 0, len(names))
	failed := false
	for _, name := range names {
		summary, err := evaluation.NewRunner(name, rankers[name]).Run(ctx, queries)
		if err != nil {
			log.Fatal().Err(err).Str("ranker", name).Msg("evaluation failed")
		}
		for _, v := range guardrails.Check(summary) {
			log.Error().Str("ranker", name).Msg(v)
			failed = true
		}
		summaries = append(summaries, summary)
	}

	// Output results as JSON
	out, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode summary")
	}
	fmt.Println(string(out))

	if failed {
		stop()
		pgClient.Close()
		os.Exit(1)
	}
}
