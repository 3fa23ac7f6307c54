package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rastreador-precos/internal/models"
)

type stubProvider struct {
	name    string
	results []models.SearchResult
	err     error
	panics  bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(context.Context, string) ([]models.SearchResult, error) {
	if s.panics {
		panic("provedor quebrado")
	}
	return s.results, s.err
}

func TestSearchMergesProviders(t *testing.T) {
	ml := &stubProvider{name: "mercadolivre", results: []models.SearchResult{
		{Title: "iPhone 14 128GB", Price: 3899.90, URL: "https://ml/p1", Source: "mercadolivre"},
	}}
	zoom := &stubProvider{name: "zoom", results: []models.SearchResult{
		{Title: "iPhone 14 128GB", Price: 3799.90, URL: "https://zoom/p1", Source: "zoom"},
	}}

	engine := NewEngine(ml, zoom)
	groups := engine.Search(context.Background(), "iphone 14")

	require.Len(t, groups, 1)
	g := groups[0]
	assert.InDelta(t, 3799.90, g.BestPrice, 0.001)
	assert.Equal(t, "https://zoom/p1", g.BestURL)
	assert.Equal(t, "zoom", g.Source)
	require.Len(t, g.Sellers, 2)
	assert.True(t, g.Sellers[0].Price <= g.Sellers[1].Price)
	assert.ElementsMatch(t, []string{"mercadolivre", "zoom"}, g.Sources)
}

func TestSearchSurvivesFailingProviders(t *testing.T) {
	ok := &stubProvider{name: "ok", results: []models.SearchResult{
		{Title: "Air Fryer 4L", Price: 399.90, URL: "https://ok/p1", Source: "ok"},
	}}
	broken := &stubProvider{name: "quebrado", err: errors.New("timeout")}
	panicking := &stubProvider{name: "panico", panics: true}

	engine := NewEngine(ok, broken, panicking)
	groups := engine.Search(context.Background(), "air fryer")

	require.Len(t, groups, 1)
	assert.Equal(t, "Air Fryer 4L", groups[0].Title)
}

func TestAggregateFiltersNoise(t *testing.T) {
	raw := []models.SearchResult{
		{Title: "iPhone 14 128GB", Price: 3899.90, URL: "https://a/1", Source: "a"},
		{Title: "Capa Silicone iPhone 14", Price: 29.90, URL: "https://a/2", Source: "a"},
		{Title: "iPhone 14 Kılıf", Price: 19.90, URL: "https://a/3", Source: "a"},
		{Title: "iPhone 14 128GB", Price: 140, URL: "https://a/4", Source: "a"},
		{Title: "", Price: 100, URL: "https://a/5", Source: "a"},
		{Title: "Sem preço", Price: 0, URL: "https://a/6", Source: "a"},
	}

	groups := Aggregate("iphone 14", raw)

	require.Len(t, groups, 1)
	assert.Equal(t, "iPhone 14 128GB", groups[0].Title)
	assert.InDelta(t, 3899.90, groups[0].BestPrice, 0.001)
}

func TestAggregateDedupesSellers(t *testing.T) {
	raw := []models.SearchResult{
		{
			Title: "Teclado Mecânico", Price: 349.90, URL: "https://a/1", Source: "buscape",
			Sellers: []models.Offer{
				{Merchant: "kabum", Price: 349.90, URL: "https://kabum/1"},
				{Merchant: "amazon", Price: 359.90, URL: "https://amazon/1"},
			},
		},
		{
			Title: "Teclado Mecânico", Price: 349.90, URL: "https://b/1", Source: "zoom",
			Sellers: []models.Offer{
				// Mesmo lojista e mesmo preço ao centavo: deduplicado
				{Merchant: "kabum", Price: 349.90, URL: "https://kabum/1"},
				{Merchant: "magazineluiza", Price: 339.90, URL: "https://magalu/1"},
			},
		},
	}

	groups := Aggregate("teclado mecanico", raw)

	require.Len(t, groups, 1)
	g := groups[0]
	require.Len(t, g.Sellers, 3)
	assert.Equal(t, "magazineluiza", g.Sellers[0].Merchant)
	assert.InDelta(t, 339.90, g.BestPrice, 0.001)
}

func TestAggregateGroupsByNormalizedTitle(t *testing.T) {
	raw := []models.SearchResult{
		{Title: "Galaxy S23 256GB (Lacrado)", Price: 3099.90, URL: "https://a/1", Source: "a"},
		{Title: "galaxy s23 256gb", Price: 2999.90, URL: "https://b/1", Source: "b"},
		{Title: "Galaxy S23 Ultra 512GB", Price: 5499.90, URL: "https://c/1", Source: "c"},
	}

	groups := Aggregate("galaxy s23", raw)

	require.Len(t, groups, 2)
	// Ordenado por melhor preço crescente
	assert.InDelta(t, 2999.90, groups[0].BestPrice, 0.001)
	assert.InDelta(t, 5499.90, groups[1].BestPrice, 0.001)
}

func TestAggregateTruncatesToTop(t *testing.T) {
	var raw []models.SearchResult
	for i := 0; i < 80; i++ {
		raw = append(raw, models.SearchResult{
			Title:  fmt.Sprintf("Produto distinto %d", i),
			Price:  float64(1000 + i),
			URL:    fmt.Sprintf("https://a/%d", i),
			Source: "a",
		})
	}

	groups := Aggregate("produto", raw)

	require.Len(t, groups, maxResults)
	assert.InDelta(t, 1000, groups[0].BestPrice, 0.001)
}
