package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zatekoja/productsearch/internal/domain/entities"
)

func TestBuildProductDocument(t *testing.T) {
	updated := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	doc := BuildProductDocument(&entities.Product{
		ID:          "p1",
		Name:        "إضاءة LED للأحواض",
		Description: "إضاءة قوية",
		Category:    "Lighting",
		Brand:       "Chihiros",
		Price:       35000,
		Rating:      4.2,
		Stock:       0,
		UpdatedAt:   updated,
	})

	assert.Equal(t, "p1", doc["id"])
	assert.Equal(t, "اضاءه led للاحواض", doc["name"])
	assert.Equal(t, "lighting", doc["category"])
	assert.Equal(t, false, doc["in_stock"])
	assert.Equal(t, updated.Unix(), doc["updated_at"])
}
