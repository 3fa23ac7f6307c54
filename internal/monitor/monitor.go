package monitor

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"rastreador-precos/internal/database"
	"rastreador-precos/internal/models"
	"rastreador-precos/internal/notifier"
	"rastreador-precos/internal/scraper"
)

// Snapshotter extrai o snapshot de uma URL de produto
type Snapshotter interface {
	ExtractResolved(ctx context.Context, url string) (*models.ProductSnapshot, error)
}

// Crawler minera uma página de listagem de catálogo
type Crawler interface {
	CrawlListing(ctx context.Context, target scraper.ListingTarget) ([]models.Product, error)
}

// Monitor executa as verificações periódicas de produtos e a mineração
// de catálogo, respeitando os limites de concorrência configurados.
type Monitor struct {
	db          *database.DB
	extractor   Snapshotter
	crawler     Crawler
	dispatcher  *notifier.Dispatcher
	checkLimit  int
	miningLimit int
	pause       func() // intervalo entre verificações de um mesmo worker
}

// New cria o monitor de produtos
func New(db *database.DB, ext *scraper.Extractor, dispatcher *notifier.Dispatcher, checkLimit, miningLimit int) *Monitor {
	return &Monitor{
		db:          db,
		extractor:   ext,
		crawler:     ext,
		dispatcher:  dispatcher,
		checkLimit:  checkLimit,
		miningLimit: miningLimit,
		pause:       jitterPause,
	}
}

// Pausa aleatória entre verificações para não martelar os lojistas
func jitterPause() {
	time.Sleep(time.Second + time.Duration(rand.Intn(2000))*time.Millisecond)
}

// CheckAll verifica todos os produtos rastreados da classe dada.
// Produtos são verificados em paralelo até o limite configurado; a falha
// de um produto é logada e não afeta os demais.
func (m *Monitor) CheckAll(ctx context.Context, premium bool) error {
	products, err := m.db.GetTrackedProducts(premium)
	if err != nil {
		return fmt.Errorf("buscar produtos: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	log.Printf("Verificando %d produtos (premium=%v, limite=%d)", len(products), premium, m.checkLimit)

	sem := make(chan struct{}, m.checkLimit)
	var wg sync.WaitGroup
	for _, product := range products {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(product models.Product) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := m.checkOne(ctx, product); err != nil {
				log.Printf("Erro ao verificar produto %d (%s): %v", product.ID, product.URL, err)
			}
			m.pause()
		}(product)
	}
	wg.Wait()
	return nil
}

// CheckProduct verifica um único produto sob demanda (comando /check).
// Devolve o preço atual encontrado.
func (m *Monitor) CheckProduct(ctx context.Context, product models.Product) (float64, error) {
	return m.checkOne(ctx, product)
}

func (m *Monitor) checkOne(ctx context.Context, product models.Product) (float64, error) {
	snap, err := m.extractor.ExtractResolved(ctx, product.URL)
	if err != nil {
		return 0, err
	}

	oldPrice := product.CurrentPrice
	oldStock := product.InStock

	// Preço zero é "não encontrado", nunca uma observação real
	if snap.CurrentPrice > 0 {
		product.CurrentPrice = snap.CurrentPrice
	}
	if snap.OriginalPrice > 0 {
		product.OriginalPrice = snap.OriginalPrice
	}
	product.InStock = snap.InStock
	product.RecomputeDiscount()

	// Histórico só recebe ponto quando o preço de fato mudou
	if snap.CurrentPrice > 0 && snap.CurrentPrice != oldPrice {
		if err := m.db.AppendPricePoint(product.ID, snap.CurrentPrice); err != nil {
			log.Printf("Erro ao gravar histórico do produto %d: %v", product.ID, err)
		}
	}

	if err := m.db.UpdateProductState(product.ID, product.CurrentPrice, product.OriginalPrice, product.Discount, product.InStock); err != nil {
		return product.CurrentPrice, fmt.Errorf("atualizar estado no banco: %w", err)
	}

	if m.dispatcher != nil {
		m.dispatcher.OnPriceObserved(ctx, &product, oldPrice, product.CurrentPrice, oldStock, product.InStock)
	}
	return product.CurrentPrice, nil
}

// MineCatalog minera os alvos de listagem em paralelo (até o limite) e
// aplica cada lote no banco com upsert.
func (m *Monitor) MineCatalog(ctx context.Context, targets []scraper.ListingTarget) error {
	sem := make(chan struct{}, m.miningLimit)
	var wg sync.WaitGroup
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(target scraper.ListingTarget) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := m.mineTarget(ctx, target); err != nil {
				log.Printf("Erro ao minerar %s (%s): %v", target.Merchant, target.URL, err)
			}
		}(target)
	}
	wg.Wait()
	return nil
}

func (m *Monitor) mineTarget(ctx context.Context, target scraper.ListingTarget) error {
	items, err := m.crawler.CrawlListing(ctx, target)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	existing, err := m.db.GetProductsByURLs(models.OwnerSystem, urls)
	if err != nil {
		return fmt.Errorf("consultar produtos existentes: %w", err)
	}

	inserted, updated, err := m.db.UpsertCatalogBatch(items, existing)
	if err != nil {
		return fmt.Errorf("aplicar lote de catálogo: %w", err)
	}
	log.Printf("Catálogo %s/%s: %d novos, %d atualizados", target.Merchant, target.DemographicTag, inserted, updated)
	return nil
}

// CollapseHistory compacta o histórico de preços mais antigo que o corte,
// mantendo o menor preço de cada produto por dia.
func (m *Monitor) CollapseHistory(afterDays, batchSize int) error {
	cutoff := time.Now().AddDate(0, 0, -afterDays)
	removed, err := m.db.CollapsePriceHistory(cutoff, batchSize)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Printf("Retenção: %d pontos de histórico compactados", removed)
	}
	return nil
}

// DefaultListingTargets são as páginas de categoria mineradas por padrão
func DefaultListingTargets() []scraper.ListingTarget {
	return []scraper.ListingTarget{
		{Merchant: "shein", URL: "https://br.shein.com/Women-Dresses-c-1727.html", DemographicTag: "feminino"},
		{Merchant: "shein", URL: "https://br.shein.com/Men-T-Shirts-c-1980.html", DemographicTag: "masculino"},
		{Merchant: "renner", URL: "https://www.lojasrenner.com.br/c/feminino", DemographicTag: "feminino"},
		{Merchant: "renner", URL: "https://www.lojasrenner.com.br/c/masculino", DemographicTag: "masculino"},
		{Merchant: "kabum", URL: "https://www.kabum.com.br/ofertas", DemographicTag: ""},
		{Merchant: "magazineluiza", URL: "https://www.magazineluiza.com.br/selecao/ofertasdodia/", DemographicTag: ""},
	}
}
