package scraper

import (
	"net/url"
	"strings"

	"rastreador-precos/internal/models"
)

// Adapter descreve como extrair campos das páginas de um lojista.
// O registro casa um predicado de domínio com listas de seletores CSS
// tentados em ordem até algum render texto não vazio.
type Adapter struct {
	Name    string
	Match   func(url string) bool
	Fashion bool // lojistas de moda classificam sempre como moda

	TitleSelectors         []string
	PriceSelectors         []string
	OriginalPriceSelectors []string
	ImageSelectors         []string
	OutOfStockSelectors    []string

	// Seletores usados na mineração de páginas de listagem
	ListingItemSelector  string
	ListingTitleSelector string
	ListingPriceSelector string
	ListingOldPriceSelector string
	ListingImageSelector string
}

func domainContains(sub string) func(string) bool {
	return func(u string) bool { return strings.Contains(u, sub) }
}

// registry é a tabela de adaptadores conhecidos. Novos lojistas entram
// aqui, sem tocar no despacho central.
var registry = []Adapter{
	{
		Name:  "mercadolivre",
		Match: domainContains("mercadoli"),
		TitleSelectors: []string{"h1.ui-pdp-title", "h1[data-testid='title']", ".ui-pdp-title"},
		PriceSelectors: []string{
			".ui-pdp-price__second-line .andes-money-amount__fraction",
			"[data-testid='price'] .andes-money-amount__fraction",
			".andes-money-amount__fraction",
			".price-tag-fraction",
		},
		OriginalPriceSelectors: []string{
			".andes-money-amount--previous-price .andes-money-amount__fraction",
			".ui-pdp-price__original .andes-money-amount__fraction",
		},
		ImageSelectors:      []string{".ui-pdp-gallery__figure img", "figure.ui-pdp-gallery__figure img"},
		OutOfStockSelectors: []string{".ui-pdp-stock-information__title--empty"},
		ListingItemSelector:  "li.ui-search-layout__item",
		ListingTitleSelector: "h2.ui-search-item__title, .poly-component__title",
		ListingPriceSelector: ".andes-money-amount__fraction",
		ListingImageSelector: "img",
	},
	{
		Name:  "amazon",
		Match: domainContains("amazon."),
		TitleSelectors: []string{"#productTitle", "h1#title span"},
		PriceSelectors: []string{
			"#corePrice_feature_div .a-price .a-offscreen",
			".a-price .a-offscreen",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
		},
		OriginalPriceSelectors: []string{
			".basisPrice .a-price .a-offscreen",
			"span[data-a-strike='true'] .a-offscreen",
		},
		ImageSelectors:      []string{"#landingImage", "#imgBlkFront"},
		OutOfStockSelectors: []string{"#outOfStock"},
		ListingItemSelector:  "div[data-component-type='s-search-result']",
		ListingTitleSelector: "h2 a span",
		ListingPriceSelector: ".a-price .a-offscreen",
		ListingImageSelector: "img.s-image",
	},
	{
		Name:  "magazineluiza",
		Match: func(u string) bool { return strings.Contains(u, "magazineluiza") || strings.Contains(u, "magalu") },
		TitleSelectors: []string{"h1[data-testid='heading-product-title']", "h1.header-product__title"},
		PriceSelectors: []string{
			"p[data-testid='price-value']",
			".price-template__text",
		},
		OriginalPriceSelectors: []string{"p[data-testid='price-original']"},
		ImageSelectors:         []string{"img[data-testid='image-selected-thumbnail']"},
		ListingItemSelector:  "li[data-testid='product-card-container'], div[data-testid='product-card-content']",
		ListingTitleSelector: "h2[data-testid='product-title']",
		ListingPriceSelector: "p[data-testid='price-value']",
		ListingOldPriceSelector: "p[data-testid='price-original']",
		ListingImageSelector: "img",
	},
	{
		Name:  "americanas",
		Match: domainContains("americanas"),
		TitleSelectors: []string{"h1[class*='product-title']", "h1"},
		PriceSelectors: []string{"div[class*='priceSales'], span[class*='price__SalesPrice']"},
		OriginalPriceSelectors: []string{"span[class*='price__ListPrice']"},
		ImageSelectors:         []string{"img[class*='image-zoom']", "picture img"},
		ListingItemSelector:  "div[class*='product-grid-item']",
		ListingTitleSelector: "h3",
		ListingPriceSelector: "span[class*='price']",
		ListingImageSelector: "img",
	},
	{
		Name:  "shopee",
		Match: domainContains("shopee"),
		TitleSelectors: []string{"div.pdp-mod-product-badge-title", "section h1", "div[class*='product-title']"},
		PriceSelectors: []string{"div[class*='product-price'] div", "section div[class*='price']"},
		OriginalPriceSelectors: []string{"div[class*='price-before-discount']"},
		ImageSelectors:         []string{"div[class*='gallery'] img", "picture img"},
		ListingItemSelector:  "li.shopee-search-item-result__item, div[data-sqe='item']",
		ListingTitleSelector: "div[data-sqe='name'], div[class*='line-clamp']",
		ListingPriceSelector: "span[class*='price'], div[data-sqe='name'] + div span",
		ListingImageSelector: "img",
	},
	{
		Name:  "aliexpress",
		Match: domainContains("aliexpress"),
		TitleSelectors: []string{"h1[data-pl='product-title']", "h1.product-title-text"},
		PriceSelectors: []string{"div.product-price-current span.product-price-value", "span[class*='price--current']"},
		OriginalPriceSelectors: []string{"span[class*='price--original']", ".product-price-del"},
		ImageSelectors:         []string{".image-view-magnifier-wrap img", "div[class*='slider--img'] img"},
		ListingItemSelector:  "div[class*='search-item-card-wrapper']",
		ListingTitleSelector: "h3, div[class*='multi--title']",
		ListingPriceSelector: "div[class*='multi--price-sale']",
		ListingImageSelector: "img",
	},
	{
		Name:    "shein",
		Match:   domainContains("shein"),
		Fashion: true,
		TitleSelectors: []string{"h1.product-intro__head-name", "h1[class*='goods-name']"},
		PriceSelectors: []string{"div.product-intro__head-mainprice span", "span[class*='from-price']"},
		OriginalPriceSelectors: []string{"del[class*='price']", "span.product-intro__head-delprice"},
		ImageSelectors:         []string{".product-intro__main-img img", ".crop-image-container img"},
		ListingItemSelector:  "section.product-card, div.product-card",
		ListingTitleSelector: "a.goods-title-link, .product-card__goods-title",
		ListingPriceSelector: "span.normal-price-ctn__sale-price, .product-card__price span",
		ListingImageSelector: "img",
	},
	{
		Name:    "renner",
		Match:   domainContains("lojasrenner"),
		Fashion: true,
		TitleSelectors: []string{"h1[class*='product-name']", "h1"},
		PriceSelectors: []string{"span[class*='best-price']", "div[class*='price'] span"},
		OriginalPriceSelectors: []string{"span[class*='list-price']"},
		ImageSelectors:         []string{"div[class*='gallery'] img"},
		ListingItemSelector:  "div[class*='shelf-item']",
		ListingTitleSelector: "h3, a[class*='product-name']",
		ListingPriceSelector: "span[class*='best-price']",
		ListingImageSelector: "img",
	},
	{
		Name:  "kabum",
		Match: domainContains("kabum"),
		TitleSelectors: []string{"h1#titulo_det", "h1"},
		PriceSelectors: []string{"h4#finalPrice", "b.regularPrice"},
		OriginalPriceSelectors: []string{"span#oldPrice", "span.oldPriceCard"},
		ImageSelectors:         []string{"img#imagem-produto", ".carouselDetails img"},
		ListingItemSelector:  "article.productCard",
		ListingTitleSelector: "span.nameCard",
		ListingPriceSelector: "span.priceCard",
		ListingOldPriceSelector: "span.oldPriceCard",
		ListingImageSelector: "img.imageCard",
	},
}

// genericAdapter cobre lojistas sem adaptador dedicado
var genericAdapter = Adapter{
	Name:                 "generico",
	Match:                func(string) bool { return true },
	TitleSelectors:       []string{"h1"},
	PriceSelectors:       []string{"[itemprop='price']", "[class*='price']"},
	ImageSelectors:       []string{"img[itemprop='image']"},
	ListingItemSelector:  "li[class*='product'], div[class*='product-card'], article[class*='product']",
	ListingTitleSelector: "h2, h3",
	ListingPriceSelector: "[class*='price']",
	ListingImageSelector: "img",
}

// FindAdapter retorna o adaptador do lojista da URL, ou o genérico
func FindAdapter(rawURL string) Adapter {
	for _, a := range registry {
		if a.Match(rawURL) {
			return a
		}
	}
	return genericAdapter
}

// RegisterAdapter adiciona um adaptador em tempo de inicialização.
// Adaptadores registrados têm prioridade sobre os embutidos.
func RegisterAdapter(a Adapter) {
	registry = append([]Adapter{a}, registry...)
}

// Padrões de links de compartilhamento que redirecionam para o produto
// (ou para uma grade de busca) em vez de servir a página diretamente.
var sharePatterns = []string{
	"shp.ee/",
	"s.shopee",
	"amzn.to/",
	"a.co/",
	"s.click.aliexpress",
	"mercadolivre.com/sec/",
	"divulgador.magalu",
	"onelink.me/",
}

// IsShareLink indica se a URL é um redirecionador de compartilhamento
func IsShareLink(rawURL string) bool {
	for _, p := range sharePatterns {
		if strings.Contains(rawURL, p) {
			return true
		}
	}
	return false
}

// Seletores genéricos de grade de produtos, usados para detectar que a
// navegação caiu numa listagem em vez de uma página de produto.
var listingLinkSelectors = []string{
	"li.ui-search-layout__item a.ui-search-link",
	"div[data-component-type='s-search-result'] h2 a",
	"li[data-testid='product-card-container'] a",
	"li.shopee-search-item-result__item a",
	"div[class*='search-item-card-wrapper'] a",
	"section.product-card a",
	"div[class*='product-card'] a",
	"li[class*='product'] a",
}

// Tabela de palavras-chave para classificação de categoria
var categoryKeywords = map[string][]string{
	models.CategoryElectronics: {
		"celular", "smartphone", "iphone", "notebook", "laptop", "macbook", "tablet",
		"monitor", "televis", "tv ", "console", "playstation", "xbox", "nintendo",
		"fone", "headphone", "headset", "camera", "câmera", "ssd", "placa de video",
		"processador", "smartwatch", "eletron",
	},
	models.CategoryFashion: {
		"camiseta", "camisa", "vestido", "calça", "calca", "jaqueta", "moletom",
		"tênis", "tenis", "sapato", "sandalia", "bolsa", "saia", "bermuda", "moda",
		"roupa", "blusa", "meia", "cueca", "lingerie",
	},
	models.CategoryCosmetics: {
		"perfume", "maquiagem", "batom", "shampoo", "hidratante", "skincare",
		"protetor solar", "serum", "sérum", "cosmetic", "beleza",
	},
	models.CategoryHome: {
		"panela", "sofa", "sofá", "mesa", "cadeira", "geladeira", "fogao", "fogão",
		"liquidificador", "air fryer", "aspirador", "colchao", "colchão", "cozinha",
		"decoracao", "decoração", "cama", "travesseiro",
	},
}

// ClassifyCategory classifica por palavras-chave na URL e no título.
// Lojistas de moda classificam sempre como moda.
func ClassifyCategory(rawURL, title string) string {
	if FindAdapter(rawURL).Fashion {
		return models.CategoryFashion
	}
	haystack := strings.ToLower(rawURL + " " + title)
	for _, category := range []string{
		models.CategoryFashion,
		models.CategoryElectronics,
		models.CategoryCosmetics,
		models.CategoryHome,
	} {
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(haystack, kw) {
				return category
			}
		}
	}
	return models.CategoryOther
}

// SourceFromURL deriva o identificador do lojista a partir do domínio
func SourceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "desconhecido"
	}
	host := strings.TrimPrefix(u.Host, "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "pt.")
	if idx := strings.Index(host, "."); idx > 0 {
		return host[:idx]
	}
	return host
}
