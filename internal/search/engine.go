package search

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"rastreador-precos/internal/models"
)

// Provider é um adaptador de um provedor externo de busca/comparação.
// Cada provedor devolve resultados já normalizados para a forma comum.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

const (
	maxResults      = 50
	providerTimeout = 20 * time.Second
)

// Engine despacha uma consulta em paralelo para todos os provedores,
// mescla duplicatas, filtra ruído e ordena por preço.
type Engine struct {
	providers []Provider
}

// NewEngine cria o agregador de busca
func NewEngine(providers ...Provider) *Engine {
	return &Engine{providers: providers}
}

// Search executa a consulta. A falha de um provedor rende uma lista vazia
// só para ele; a busca nunca aborta por causa de um provedor.
func (e *Engine) Search(ctx context.Context, query string) []models.SearchResultGroup {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		raw []models.SearchResult
	)

	// Provedores são poucos e fixos; fan-out sem limitador
	for _, p := range e.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Provedor %s entrou em pânico: %v", p.Name(), r)
				}
			}()

			pctx, cancel := context.WithTimeout(ctx, providerTimeout)
			defer cancel()

			results, err := p.Search(pctx, query)
			if err != nil {
				log.Printf("Provedor %s falhou: %v", p.Name(), err)
				return
			}
			mu.Lock()
			raw = append(raw, results...)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return Aggregate(query, raw)
}

// Aggregate mescla resultados brutos de vários provedores em grupos
// deduplicados, aplica os filtros de ruído e anomalia de preço e ordena
// por preço crescente, truncando no topo.
func Aggregate(query string, raw []models.SearchResult) []models.SearchResultGroup {
	groups := make(map[string]*models.SearchResultGroup)
	var order []string

	for _, r := range raw {
		if r.Title == "" || r.Price <= 0 {
			continue // preço 0 é "ausente", nunca uma pechincha
		}
		if IsAccessoryNoise(r.Title, query) {
			continue
		}
		if IsPriceAnomaly(r.Title, query, r.Price) {
			continue
		}

		key := NormalizeKey(r.Title)
		if key == "" {
			continue
		}

		g, ok := groups[key]
		if !ok {
			g = &models.SearchResultGroup{Key: key, Title: r.Title}
			groups[key] = g
			order = append(order, key)
		}

		sellers := r.Sellers
		if len(sellers) == 0 {
			sellers = []models.Offer{{Merchant: r.Source, Price: r.Price, URL: r.URL}}
		}
		for _, offer := range sellers {
			if offer.Price <= 0 {
				continue
			}
			g.Sellers = mergeSeller(g.Sellers, offer)
		}

		g.Sources = appendUnique(g.Sources, r.Source)
		for _, v := range r.Variants {
			g.Variants = mergeVariant(g.Variants, v)
		}
		if g.ImageURL == "" {
			g.ImageURL = r.ImageURL
		}
	}

	out := make([]models.SearchResultGroup, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		if len(g.Sellers) == 0 {
			continue
		}
		sort.Slice(g.Sellers, func(i, j int) bool { return g.Sellers[i].Price < g.Sellers[j].Price })
		best := g.Sellers[0]
		g.BestPrice = best.Price
		g.BestURL = best.URL
		g.Source = best.Merchant
		out = append(out, *g)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].BestPrice < out[j].BestPrice })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// mergeSeller adiciona uma oferta deduplicando pelo par (lojista, preço).
// Preços são comparados ao centavo para float não duplicar vendedor.
func mergeSeller(sellers []models.Offer, offer models.Offer) []models.Offer {
	for _, s := range sellers {
		if s.Merchant == offer.Merchant && priceKey(s.Price) == priceKey(offer.Price) {
			return sellers
		}
	}
	return append(sellers, offer)
}

func priceKey(price float64) int64 {
	return int64(math.Round(price * 100))
}

func mergeVariant(variants []models.Variant, v models.Variant) []models.Variant {
	if v.Name == "" {
		return variants
	}
	for _, existing := range variants {
		if existing.Name == v.Name {
			return variants
		}
	}
	return append(variants, v)
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, item := range list {
		if item == value {
			return list
		}
	}
	return append(list, value)
}
