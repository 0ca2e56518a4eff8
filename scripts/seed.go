package main

import (
	"context"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/productsearch/internal/adapters/search"
	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
)

type seedProduct struct {
	name, description, category, brand string
	price, rating                      float64
	stock                              int
}

var catalog = []seedProduct{
	{"Canister Filter 1200", "External canister filter for aquariums up to 300 litres", "Filtration", "AquaFlow", 189.99, 4.6, 14},
	{"Filter Sponge Pack", "Replacement coarse sponges for canister and hang-on filters", "Filtration", "AquaFlow", 12.5, 4.2, 120},
	{"Hang-On Back Filter", "Quiet hang-on filter with adjustable flow", "Filtration", "ClearTank", 39.0, 4.1, 0},
	{"Aquarium Heater 100W", "Submersible heater with thermostat for tropical tanks", "Heating", "ThermoFin", 29.99, 4.4, 45},
	{"Aquarium Heater 300W", "Titanium heater for large aquariums", "Heating", "ThermoFin", 64.0, 4.7, 8},
	{"Tropical Fish Flakes", "Complete daily food for community fish", "Food", "Nutrifin", 7.49, 4.5, 300},
	{"Sinking Shrimp Pellets", "Protein pellets for bottom feeders", "Food", "Nutrifin", 9.99, 4.3, 150},
	{"LED Aquarium Light 60cm", "Full spectrum LED bar with day and night modes", "Lighting", "LumaReef", 79.0, 4.5, 22},
	{"Water Test Kit", "Tests pH, ammonia, nitrite and nitrate", "Water Care", "ClearTank", 34.5, 4.8, 60},
	{"Water Conditioner 500ml", "Removes chlorine and detoxifies heavy metals", "Water Care", "AquaFlow", 11.0, 4.6, 0},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("product-search-seed", cfg.Server.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				search_queries,
				product_interactions,
				product_embeddings,
				products
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	now := time.Now().UTC()
	products := make([]*entities.Product, 0, len(catalog))
	for _, p := range catalog {
		products = append(products, &entities.Product{
			ID:          seedProductID(p.name),
			Name:        p.name,
			Description: p.description,
			Category:    p.category,
			Brand:       p.brand,
			Price:       p.price,
			Rating:      p.rating,
			Stock:       p.stock,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	query, args, err := goqu.Dialect("postgres").
		Insert("products").
		Rows(products).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build insert")
	}

	err = pgClient.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed products")
	}
	log.Info().Int("products", len(products)).Msg("products seeded")

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable; skipping index")
		return
	}
	index := search.NewTypesenseAdapter(tsClient)
	if err := index.InitSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to init Typesense schema")
		return
	}
	if err := index.IndexBatch(ctx, products); err != nil {
		log.Warn().Err(err).Msg("failed to index seeded products")
	}

	log.Info().Msg("seeding completed; run cmd/backfill to generate embeddings")
}

// seedProductID is stable across runs so golden query sets can reference
// seeded products.
func seedProductID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("product-search/seed/"+name)).String()
}
