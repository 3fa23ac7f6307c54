package search

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseMercadoLivreSearch(t *testing.T) {
	html := `<html><body><ol>
		<li class="ui-search-layout__item">
			<a href="https://www.mercadolivre.com.br/p/MLB1"></a>
			<h2 class="ui-search-item__title">iPhone 14 128GB Preto</h2>
			<span class="andes-money-amount__fraction">3.899,90</span>
			<img data-src="https://img.ml/iphone.jpg"/>
		</li>
		<li class="ui-search-layout__item">
			<a href="https://www.mercadolivre.com.br/p/MLB2"></a>
			<h2 class="ui-search-item__title">iPhone 14 256GB</h2>
			<span class="andes-money-amount__fraction">4.399,00</span>
		</li>
		<li class="ui-search-layout__item">
			<h2 class="ui-search-item__title">Sem link, descartado</h2>
		</li>
	</ol></body></html>`

	results := parseMercadoLivreSearch(searchDoc(t, html))

	require.Len(t, results, 2)
	first := results[0]
	assert.Equal(t, "iPhone 14 128GB Preto", first.Title)
	assert.InDelta(t, 3899.90, first.Price, 0.001)
	assert.Equal(t, "https://www.mercadolivre.com.br/p/MLB1", first.URL)
	assert.Equal(t, "https://img.ml/iphone.jpg", first.ImageURL)
	assert.Equal(t, "mercadolivre", first.Source)
	require.Len(t, first.Sellers, 1)
	assert.Equal(t, "mercadolivre", first.Sellers[0].Merchant)
}

func TestParseComparisonSearch(t *testing.T) {
	html := `<html><body>
		<a data-testid="product-card::card" href="/produto/iphone-14">
			<h2 data-testid="product-card::name">iPhone 14 128GB</h2>
			<p data-testid="product-card::price">R$ 3.799,90</p>
			<img src="https://img.zoom/iphone.jpg"/>
			<span data-testid="product-card::variation">Preto</span>
			<span data-testid="product-card::variation">Estelar</span>
		</a>
	</body></html>`

	results := parseComparisonSearch(searchDoc(t, html), "zoom")

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "iPhone 14 128GB", r.Title)
	assert.InDelta(t, 3799.90, r.Price, 0.001)
	// Link relativo resolvido contra o domínio do comparador
	assert.Equal(t, "https://www.zoom.com.br/produto/iphone-14", r.URL)
	require.Len(t, r.Variants, 2)
	assert.Equal(t, "Preto", r.Variants[0].Name)
	require.Len(t, r.Sellers, 1)
	assert.Equal(t, "comparador", r.Sellers[0].Badge)
}

func TestParseShopeeSearch(t *testing.T) {
	html := `<html><body><ul>
		<li class="shopee-search-item-result__item">
			<a href="/produto-i.123.456"></a>
			<div data-sqe="name">Fone Bluetooth TWS</div>
			<span class="price-final">R$ 89,90</span>
			<img src="https://img.shopee/fone.jpg" alt="Fone Bluetooth TWS"/>
		</li>
	</ul></body></html>`

	results := parseShopeeSearch(searchDoc(t, html))

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "Fone Bluetooth TWS", r.Title)
	assert.InDelta(t, 89.90, r.Price, 0.001)
	assert.Equal(t, "https://shopee.com.br/produto-i.123.456", r.URL)
}
