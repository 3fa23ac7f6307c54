package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rastreador-precos/internal/models"
)

// parseSnapshot aplica a estratégia de fallback em camadas sobre o HTML já
// renderizado: dados estruturados (JSON-LD) > meta tags > seletores do
// adaptador do lojista > fallback genérico. Cada camada só roda para os
// campos que as anteriores não preencheram.
//
// Retorna também o href do primeiro link de produto quando a página parece
// uma grade de listagem e não há título (sinal de REDIRECT necessário).
func parseSnapshot(doc *goquery.Document, pageURL string) (models.ProductSnapshot, string) {
	snap := models.ProductSnapshot{InStock: true, FinalURL: pageURL}
	adapter := FindAdapter(pageURL)

	// Camada 1: dados estruturados embutidos (maior confiança)
	if sd := parseStructuredData(doc); sd.found {
		snap.Title = sd.Name
		snap.CurrentPrice = sd.Price
		snap.OriginalPrice = sd.OriginalPrice
		snap.ImageURL = sd.ImageURL
		if sd.Availability != "" {
			snap.InStock = availabilityInStock(sd.Availability)
		}
	}

	// Camada 2: meta tags
	if snap.Title == "" {
		snap.Title = firstMetaContent(doc, "meta[property='og:title']", "meta[name='twitter:title']")
	}
	if snap.CurrentPrice == 0 {
		snap.CurrentPrice = ParsePrice(firstMetaContent(doc,
			"meta[property='product:price:amount']",
			"meta[itemprop='price']",
			"meta[name='twitter:data1']",
		))
	}
	if snap.ImageURL == "" {
		snap.ImageURL = firstMetaContent(doc, "meta[property='og:image']", "meta[name='twitter:image']")
	}
	if avail := firstMetaContent(doc, "meta[property='product:availability']", "meta[property='og:availability']"); avail != "" {
		snap.InStock = availabilityInStock(avail)
	}

	// Camada 3: seletores do adaptador do lojista, tentados em ordem
	if snap.Title == "" {
		snap.Title = firstText(doc, adapter.TitleSelectors)
	}
	if snap.CurrentPrice == 0 {
		snap.CurrentPrice = ParsePrice(firstText(doc, adapter.PriceSelectors))
	}
	if snap.OriginalPrice == 0 {
		snap.OriginalPrice = ParsePrice(firstText(doc, adapter.OriginalPriceSelectors))
	}
	if snap.ImageURL == "" {
		snap.ImageURL = firstAttr(doc, adapter.ImageSelectors, "src")
	}
	if len(adapter.OutOfStockSelectors) > 0 {
		for _, sel := range adapter.OutOfStockSelectors {
			if doc.Find(sel).Length() > 0 {
				snap.InStock = false
				break
			}
		}
	}

	// Camada 4: fallback genérico
	if snap.Title == "" {
		snap.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	// Preço original menor que o atual não é desconto, é ruído de seletor
	if snap.OriginalPrice > 0 && snap.OriginalPrice <= snap.CurrentPrice {
		snap.OriginalPrice = 0
	}

	snap.Source = SourceFromURL(pageURL)
	snap.Category = ClassifyCategory(pageURL, snap.Title)

	// Sem título e com cara de listagem: devolver o primeiro link de
	// produto para o chamador reextrair na URL certa
	redirect := ""
	if snap.Title == "" {
		for _, sel := range listingLinkSelectors {
			if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
				redirect = href
				break
			}
		}
	}

	return snap, redirect
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, selectors []string, attr string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstMetaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func availabilityInStock(availability string) bool {
	a := strings.ToLower(availability)
	if strings.Contains(a, "outofstock") || strings.Contains(a, "out_of_stock") ||
		strings.Contains(a, "soldout") || strings.Contains(a, "discontinued") {
		return false
	}
	return true
}

// structuredProduct é o resultado da leitura do JSON-LD de produto
type structuredProduct struct {
	Name          string
	ImageURL      string
	Price         float64
	OriginalPrice float64
	Availability  string
	found         bool
}

// parseStructuredData procura um objeto Product nos blocos
// script[type='application/ld+json'] da página.
func parseStructuredData(doc *goquery.Document) structuredProduct {
	var out structuredProduct
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value, err := decodeLoose([]byte(s.Text()), 0)
		if err != nil {
			return true
		}
		if product, ok := findProductNode(value, 0); ok {
			out = product
			return false
		}
		return true
	})
	return out
}

// maxDecodeDepth limita a decodificação de JSON que por sua vez é uma
// string JSON codificada (dado legado); acima do limite cai para vazio.
const maxDecodeDepth = 2

// decodeLoose decodifica JSON tolerando o caso em que o valor inteiro é
// uma string contendo JSON, com limite rígido de profundidade.
func decodeLoose(data []byte, depth int) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	if s, ok := value.(string); ok && depth < maxDecodeDepth {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if inner, err := decodeLoose([]byte(trimmed), depth+1); err == nil {
				return inner, nil
			}
		}
	}
	return value, nil
}

// findProductNode procura recursivamente (profundidade limitada) um nó
// com @type Product dentro de objetos, arrays e @graph.
func findProductNode(value any, depth int) (structuredProduct, bool) {
	if depth > 4 {
		return structuredProduct{}, false
	}
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if p, ok := findProductNode(item, depth+1); ok {
				return p, true
			}
		}
	case map[string]any:
		if typeIs(v["@type"], "Product") {
			return productFromNode(v), true
		}
		if graph, ok := v["@graph"]; ok {
			return findProductNode(graph, depth+1)
		}
	}
	return structuredProduct{}, false
}

func typeIs(raw any, want string) bool {
	switch t := raw.(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func productFromNode(node map[string]any) structuredProduct {
	p := structuredProduct{found: true}
	p.Name = stringField(node["name"])
	p.ImageURL = imageField(node["image"])

	offers := node["offers"]
	if list, ok := offers.([]any); ok && len(list) > 0 {
		offers = list[0]
	}
	if offer, ok := offers.(map[string]any); ok {
		p.Price = numberField(offer["price"])
		if p.Price == 0 {
			p.Price = numberField(offer["lowPrice"])
		}
		p.OriginalPrice = numberField(offer["highPrice"])
		if p.OriginalPrice == 0 {
			p.OriginalPrice = numberField(offer["listPrice"])
		}
		p.Availability = stringField(offer["availability"])
	}
	return p
}

func stringField(raw any) string {
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// imageField aceita string, lista de strings ou objeto ImageObject
func imageField(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if s := imageField(item); s != "" {
				return s
			}
		}
	case map[string]any:
		return stringField(v["url"])
	}
	return ""
}

func numberField(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return v
	case string:
		return ParsePrice(v)
	}
	return 0
}
