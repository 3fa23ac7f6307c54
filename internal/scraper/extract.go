package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"rastreador-precos/internal/browser"
	"rastreador-precos/internal/models"
)

// ErrExtractionFailed indica que a página não pôde ser analisada.
// A causa fica no texto; chamadores decidem entre repetir, pular ou
// devolver um erro genérico ao usuário.
var ErrExtractionFailed = errors.New("falha na extração")

// RedirectRequiredError sinaliza que a URL resolveu para uma página de
// listagem; o chamador deve reextrair na URL do produto indicada.
type RedirectRequiredError struct {
	URL string
}

func (e *RedirectRequiredError) Error() string {
	return fmt.Sprintf("extração requer redirecionamento para %s", e.URL)
}

// Extractor transforma uma URL de produto em um ProductSnapshot usando
// uma sessão de navegador do pool.
type Extractor struct {
	pool        *browser.Pool
	navTimeout  time.Duration
	settleDelay time.Duration
}

// NewExtractor cria o pipeline de extração sobre um pool de navegador
func NewExtractor(pool *browser.Pool) *Extractor {
	return &Extractor{
		pool:        pool,
		navTimeout:  30 * time.Second,
		settleDelay: 2 * time.Second,
	}
}

// Extract navega até a URL e produz um snapshot canônico do produto.
// A sessão é sempre liberada, em todos os caminhos de saída.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*models.ProductSnapshot, error) {
	sess, err := e.pool.AcquireSession(browser.DefaultSessionOptions(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: sessão: %v", ErrExtractionFailed, err)
	}
	defer sess.Close()

	page := sess.Page.Context(ctx)

	navTimeout := e.navTimeout
	if IsShareLink(rawURL) {
		// Redirecionadores encadeiam navegações; dar mais folga
		navTimeout = 2 * e.navTimeout
	}

	if err := page.Timeout(navTimeout).Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("%w: navegar: %v", ErrExtractionFailed, err)
	}

	// Timeout de carga não é fatal: seguimos com o DOM parcial presente
	if err := page.Timeout(navTimeout).WaitLoad(); err != nil {
		log.Printf("Timeout aguardando carga de %s, prosseguindo com DOM parcial", rawURL)
	}

	if IsShareLink(rawURL) {
		time.Sleep(e.settleDelay)
		e.resolveShareRedirect(page.Timeout(navTimeout))
	}

	html, err := page.Timeout(e.navTimeout).HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: ler DOM: %v", ErrExtractionFailed, err)
	}

	finalURL := rawURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parsear HTML: %v", ErrExtractionFailed, err)
	}

	snap, redirect := parseSnapshot(doc, finalURL)
	if snap.Title == "" && redirect != "" {
		return nil, &RedirectRequiredError{URL: absolutize(finalURL, redirect)}
	}
	if snap.Title == "" && snap.CurrentPrice == 0 {
		return nil, fmt.Errorf("%w: nenhum dado de produto na página", ErrExtractionFailed)
	}

	return &snap, nil
}

// ExtractResolved extrai e segue no máximo um REDIRECT_REQUIRED.
// Conveniência para chamadores que não querem tratar o redirecionamento.
func (e *Extractor) ExtractResolved(ctx context.Context, rawURL string) (*models.ProductSnapshot, error) {
	snap, err := e.Extract(ctx, rawURL)
	var redirect *RedirectRequiredError
	if errors.As(err, &redirect) {
		log.Printf("Listagem detectada, reextraindo em %s", redirect.URL)
		return e.Extract(ctx, redirect.URL)
	}
	return snap, err
}

// resolveShareRedirect lida com share-links que caem numa listagem ou
// grade de busca: clica no primeiro link de produto e espera a navegação.
// Se a página já parece de produto (tem h1), não faz nada.
func (e *Extractor) resolveShareRedirect(page *rod.Page) {
	if _, err := page.Timeout(2 * time.Second).Element("h1"); err == nil {
		return
	}
	for _, sel := range listingLinkSelectors {
		el, err := page.Timeout(3 * time.Second).Element(sel)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			// Clique falhou (overlay, elemento fora da tela): navegar pelo href
			if href, aerr := el.Attribute("href"); aerr == nil && href != nil && *href != "" {
				base := ""
				if info, ierr := page.Info(); ierr == nil {
					base = info.URL
				}
				_ = page.Navigate(absolutize(base, *href))
			}
		}
		_ = page.Timeout(e.navTimeout).WaitLoad()
		return
	}
}

// absolutize resolve um href possivelmente relativo contra a URL base
func absolutize(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
