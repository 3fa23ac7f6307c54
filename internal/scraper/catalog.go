package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rastreador-precos/internal/browser"
	"rastreador-precos/internal/models"
)

// ListingTarget é um alvo de mineração de catálogo: uma página de
// categoria de um lojista com uma etiqueta demográfica.
type ListingTarget struct {
	Merchant       string
	URL            string
	DemographicTag string
}

const (
	// O scroll para quando a contagem de produtos não cresce por esse
	// número de sondagens consecutivas
	scrollStableProbes = 30
	scrollProbeDelay   = 250 * time.Millisecond
	scrollMaxProbes    = 600
	scrollMaxDuration  = 90 * time.Second
)

// CrawlListing navega até uma página de listagem, faz scroll incremental
// até a contagem de produtos estabilizar (ou estourar o teto de tempo ou
// distância) e extrai registros leves em lote do DOM final.
func (e *Extractor) CrawlListing(ctx context.Context, target ListingTarget) ([]models.Product, error) {
	// Processo isolado: o scroll longo não compete com as verificações e
	// sobrevive a um relançamento do navegador compartilhado
	sess, err := e.pool.NewIsolatedSession(browser.DefaultSessionOptions(target.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: sessão: %v", ErrExtractionFailed, err)
	}
	defer sess.Close()

	page := sess.Page.Context(ctx)

	if err := page.Timeout(e.navTimeout).Navigate(target.URL); err != nil {
		return nil, fmt.Errorf("%w: navegar: %v", ErrExtractionFailed, err)
	}
	if err := page.Timeout(e.navTimeout).WaitLoad(); err != nil {
		log.Printf("Timeout aguardando carga da listagem %s, prosseguindo", target.URL)
	}

	adapter := FindAdapter(target.URL)
	itemSel := adapter.ListingItemSelector
	if itemSel == "" {
		itemSel = genericAdapter.ListingItemSelector
	}

	// Scroll incremental até estabilizar
	deadline := time.Now().Add(scrollMaxDuration)
	lastCount := 0
	stable := 0
	for probe := 0; probe < scrollMaxProbes; probe++ {
		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}

		elements, err := page.Timeout(5 * time.Second).Elements(itemSel)
		if err != nil {
			break
		}
		count := len(elements)
		if count > lastCount {
			lastCount = count
			stable = 0
		} else {
			stable++
			if stable >= scrollStableProbes {
				break
			}
		}

		if _, err := page.Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
			break
		}
		time.Sleep(scrollProbeDelay)
	}

	html, err := page.Timeout(e.navTimeout).HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: ler DOM da listagem: %v", ErrExtractionFailed, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parsear listagem: %v", ErrExtractionFailed, err)
	}

	items := parseListing(doc, adapter, target)
	log.Printf("Mineração %s/%s: %d itens extraídos (%d células no DOM)",
		target.Merchant, target.DemographicTag, len(items), lastCount)
	return items, nil
}

// parseListing extrai os registros leves de uma grade de produtos já
// renderizada. Itens sem título ou sem URL são descartados; URLs repetidas
// (células duplicadas do lazy-load) também.
func parseListing(doc *goquery.Document, adapter Adapter, target ListingTarget) []models.Product {
	titleSel := adapter.ListingTitleSelector
	if titleSel == "" {
		titleSel = genericAdapter.ListingTitleSelector
	}
	priceSel := adapter.ListingPriceSelector
	if priceSel == "" {
		priceSel = genericAdapter.ListingPriceSelector
	}
	imageSel := adapter.ListingImageSelector
	if imageSel == "" {
		imageSel = genericAdapter.ListingImageSelector
	}
	itemSel := adapter.ListingItemSelector
	if itemSel == "" {
		itemSel = genericAdapter.ListingItemSelector
	}

	var items []models.Product
	seen := make(map[string]bool)

	doc.Find(itemSel).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a").First().Attr("href")
		if !ok || href == "" {
			if h, o := s.Attr("href"); o {
				href = h
			}
		}
		if href == "" {
			return
		}
		productURL := absolutize(target.URL, href)
		if seen[productURL] {
			return
		}

		title := strings.TrimSpace(s.Find(titleSel).First().Text())
		if title == "" {
			// alt da imagem costuma carregar o título nas grades
			title = strings.TrimSpace(s.Find("img").First().AttrOr("alt", ""))
		}
		if title == "" {
			return
		}

		price := ParsePrice(s.Find(priceSel).First().Text())
		oldPrice := 0.0
		if adapter.ListingOldPriceSelector != "" {
			oldPrice = ParsePrice(s.Find(adapter.ListingOldPriceSelector).First().Text())
		}
		if oldPrice > 0 && oldPrice <= price {
			oldPrice = 0
		}

		image := s.Find(imageSel).First().AttrOr("src", "")
		if image == "" {
			image = s.Find(imageSel).First().AttrOr("data-src", "")
		}

		seen[productURL] = true
		items = append(items, models.Product{
			OwnerID:        models.OwnerSystem,
			URL:            productURL,
			Title:          title,
			CurrentPrice:   price,
			OriginalPrice:  oldPrice,
			ImageURL:       image,
			Source:         target.Merchant,
			Category:       ClassifyCategory(target.URL, title),
			DemographicTag: target.DemographicTag,
			InStock:        true,
		})
	})

	return items
}
