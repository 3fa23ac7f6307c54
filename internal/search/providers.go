package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rastreador-precos/internal/browser"
	"rastreador-precos/internal/models"
	"rastreador-precos/internal/scraper"
)

// httpProvider carrega páginas de busca via HTTP simples (sem navegador).
// Serve para provedores que renderizam a listagem no servidor.
type httpProvider struct {
	client *http.Client
}

func (h *httpProvider) getClient() *http.Client {
	if h.client == nil {
		h.client = &http.Client{Timeout: 15 * time.Second}
	}
	return h.client
}

func (h *httpProvider) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := h.getClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// MercadoLivreProvider busca na listagem pública do Mercado Livre
type MercadoLivreProvider struct {
	httpProvider
}

func NewMercadoLivreProvider() *MercadoLivreProvider { return &MercadoLivreProvider{} }

func (p *MercadoLivreProvider) Name() string { return "mercadolivre" }

func (p *MercadoLivreProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	doc, err := p.fetchDocument(ctx, "https://lista.mercadolivre.com.br/"+url.PathEscape(query))
	if err != nil {
		return nil, err
	}
	return parseMercadoLivreSearch(doc), nil
}

func parseMercadoLivreSearch(doc *goquery.Document) []models.SearchResult {
	var results []models.SearchResult
	doc.Find("li.ui-search-layout__item").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h2.ui-search-item__title, .poly-component__title").First().Text())
		link := s.Find("a").First().AttrOr("href", "")
		price := scraper.ParsePrice(s.Find(".andes-money-amount__fraction").First().Text())
		image := s.Find("img").First().AttrOr("data-src", "")
		if image == "" {
			image = s.Find("img").First().AttrOr("src", "")
		}
		if title == "" || link == "" {
			return
		}
		results = append(results, models.SearchResult{
			Title:    title,
			Price:    price,
			ImageURL: image,
			URL:      link,
			Source:   "mercadolivre",
			Sellers:  []models.Offer{{Merchant: "mercadolivre", Price: price, URL: link}},
		})
	})
	return results
}

// comparisonProvider cobre os dois comparadores (Buscapé e Zoom), que
// compartilham o mesmo front-end e os mesmos data-testids.
type comparisonProvider struct {
	httpProvider
	name    string
	baseURL string
}

// NewBuscapeProvider cria o provedor do Buscapé
func NewBuscapeProvider() Provider {
	return &comparisonProvider{name: "buscape", baseURL: "https://www.buscape.com.br/search?q="}
}

// NewZoomProvider cria o provedor do Zoom
func NewZoomProvider() Provider {
	return &comparisonProvider{name: "zoom", baseURL: "https://www.zoom.com.br/search?q="}
}

func (p *comparisonProvider) Name() string { return p.name }

func (p *comparisonProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	doc, err := p.fetchDocument(ctx, p.baseURL+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	return parseComparisonSearch(doc, p.name), nil
}

func parseComparisonSearch(doc *goquery.Document, providerName string) []models.SearchResult {
	var results []models.SearchResult
	doc.Find("a[data-testid='product-card::card']").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h2[data-testid='product-card::name']").First().Text())
		price := scraper.ParsePrice(s.Find("p[data-testid='product-card::price']").First().Text())
		link := s.AttrOr("href", "")
		image := s.Find("img").First().AttrOr("src", "")
		if title == "" || link == "" {
			return
		}
		if strings.HasPrefix(link, "/") {
			link = "https://www." + providerName + ".com.br" + link
		}

		result := models.SearchResult{
			Title:    title,
			Price:    price,
			ImageURL: image,
			URL:      link,
			Source:   providerName,
			Sellers:  []models.Offer{{Merchant: providerName, Price: price, URL: link, Badge: "comparador"}},
		}
		// Variações aparecem como chips dentro do card
		s.Find("span[data-testid='product-card::variation']").Each(func(_ int, v *goquery.Selection) {
			name := strings.TrimSpace(v.Text())
			if name != "" {
				result.Variants = append(result.Variants, models.Variant{Name: name, URL: link})
			}
		})
		results = append(results, result)
	})
	return results
}

// ShopeeProvider usa uma sessão de página do pool: a listagem da Shopee
// só existe depois da renderização no cliente.
type ShopeeProvider struct {
	pool *browser.Pool
}

// NewShopeeProvider cria o provedor da Shopee sobre o pool de navegador
func NewShopeeProvider(pool *browser.Pool) *ShopeeProvider {
	return &ShopeeProvider{pool: pool}
}

func (p *ShopeeProvider) Name() string { return "shopee" }

func (p *ShopeeProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	searchURL := "https://shopee.com.br/search?keyword=" + url.QueryEscape(query)

	sess, err := p.pool.AcquireSession(browser.DefaultSessionOptions(searchURL))
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	page := sess.Page.Context(ctx)
	if err := page.Timeout(15 * time.Second).Navigate(searchURL); err != nil {
		return nil, err
	}
	if err := page.Timeout(15 * time.Second).WaitLoad(); err != nil {
		return nil, err
	}
	// Um scroll para disparar o lazy-load da primeira dobra
	_, _ = page.Eval(`() => window.scrollBy(0, window.innerHeight)`)
	time.Sleep(time.Second)

	html, err := page.Timeout(10 * time.Second).HTML()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return parseShopeeSearch(doc), nil
}

func parseShopeeSearch(doc *goquery.Document) []models.SearchResult {
	var results []models.SearchResult
	doc.Find("li.shopee-search-item-result__item, div[data-sqe='item']").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("div[data-sqe='name'], div[class*='line-clamp']").First().Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("img").First().AttrOr("alt", ""))
		}
		link := s.Find("a").First().AttrOr("href", "")
		price := scraper.ParsePrice(s.Find("span[class*='price'], div[class*='price']").First().Text())
		image := s.Find("img").First().AttrOr("src", "")
		if title == "" || link == "" {
			return
		}
		if strings.HasPrefix(link, "/") {
			link = "https://shopee.com.br" + link
		}
		results = append(results, models.SearchResult{
			Title:    title,
			Price:    price,
			ImageURL: image,
			URL:      link,
			Source:   "shopee",
			Sellers:  []models.Offer{{Merchant: "shopee", Price: price, URL: link}},
		})
	})
	return results
}
