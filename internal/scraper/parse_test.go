package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rastreador-precos/internal/models"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseSnapshotStructuredData(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">
		{
			"@context": "https://schema.org",
			"@type": "Product",
			"name": "Smartphone Galaxy S23 128GB",
			"image": "https://exemplo.com/galaxy.jpg",
			"offers": {
				"@type": "Offer",
				"price": "3499.90",
				"highPrice": "3999.90",
				"availability": "https://schema.org/InStock"
			}
		}
		</script>
	</head><body><h1>Outro título que deve ser ignorado</h1></body></html>`

	snap, redirect := parseSnapshot(docFromHTML(t, html), "https://www.amazon.com.br/dp/B0TESTE")

	assert.Empty(t, redirect)
	assert.Equal(t, "Smartphone Galaxy S23 128GB", snap.Title)
	assert.InDelta(t, 3499.90, snap.CurrentPrice, 0.001)
	assert.InDelta(t, 3999.90, snap.OriginalPrice, 0.001)
	assert.Equal(t, "https://exemplo.com/galaxy.jpg", snap.ImageURL)
	assert.True(t, snap.InStock)
	assert.Equal(t, "amazon", snap.Source)
	assert.Equal(t, models.CategoryElectronics, snap.Category)
}

func TestParseSnapshotStructuredDataDoubleEncoded(t *testing.T) {
	// Algumas páginas embutem o JSON-LD como string JSON codificada
	html := `<html><head>
		<script type="application/ld+json">"{\"@type\":\"Product\",\"name\":\"Air Fryer 4L\",\"offers\":{\"price\":\"399,90\"}}"</script>
	</head><body></body></html>`

	snap, _ := parseSnapshot(docFromHTML(t, html), "https://www.magazineluiza.com.br/produto")

	assert.Equal(t, "Air Fryer 4L", snap.Title)
	assert.InDelta(t, 399.90, snap.CurrentPrice, 0.001)
}

func TestParseSnapshotStructuredDataGraph(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">
		{"@graph":[
			{"@type":"WebPage","name":"ignorar"},
			{"@type":["Thing","Product"],"name":"Tênis Runner","offers":[{"price":249.99,"availability":"OutOfStock"}]}
		]}
		</script>
	</head><body></body></html>`

	snap, _ := parseSnapshot(docFromHTML(t, html), "https://www.exemplo.com.br/tenis")

	assert.Equal(t, "Tênis Runner", snap.Title)
	assert.InDelta(t, 249.99, snap.CurrentPrice, 0.001)
	assert.False(t, snap.InStock)
	assert.Equal(t, models.CategoryFashion, snap.Category)
}

func TestParseSnapshotMetaTagFallback(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Perfume Importado 100ml"/>
		<meta property="product:price:amount" content="289,90"/>
		<meta property="og:image" content="https://exemplo.com/perfume.jpg"/>
		<meta property="product:availability" content="out_of_stock"/>
	</head><body></body></html>`

	snap, _ := parseSnapshot(docFromHTML(t, html), "https://www.exemplo.com.br/p")

	assert.Equal(t, "Perfume Importado 100ml", snap.Title)
	assert.InDelta(t, 289.90, snap.CurrentPrice, 0.001)
	assert.False(t, snap.InStock)
	assert.Equal(t, models.CategoryCosmetics, snap.Category)
}

func TestParseSnapshotAdapterSelectors(t *testing.T) {
	html := `<html><body>
		<h1 class="ui-pdp-title">Notebook Gamer 16GB</h1>
		<div class="ui-pdp-price__second-line">
			<span class="andes-money-amount__fraction">4.599,00</span>
		</div>
	</body></html>`

	snap, _ := parseSnapshot(docFromHTML(t, html), "https://www.mercadolivre.com.br/notebook")

	assert.Equal(t, "Notebook Gamer 16GB", snap.Title)
	assert.InDelta(t, 4599, snap.CurrentPrice, 0.001)
	assert.Equal(t, "mercadolivre", snap.Source)
}

func TestParseSnapshotOriginalPriceNoise(t *testing.T) {
	// Preço "original" menor que o atual é ruído de seletor, não desconto
	html := `<html><head>
		<script type="application/ld+json">
		{"@type":"Product","name":"Fone Bluetooth","offers":{"price":"199.90","highPrice":"150.00"}}
		</script>
	</head><body></body></html>`

	snap, _ := parseSnapshot(docFromHTML(t, html), "https://www.exemplo.com.br/fone")

	assert.InDelta(t, 199.90, snap.CurrentPrice, 0.001)
	assert.Zero(t, snap.OriginalPrice)
}

func TestParseSnapshotListingRedirect(t *testing.T) {
	// Sem título e com grade de busca: devolve o href do primeiro produto
	html := `<html><body>
		<ul>
			<li class="ui-search-layout__item">
				<a class="ui-search-link" href="https://www.mercadolivre.com.br/produto-real">item</a>
			</li>
		</ul>
	</body></html>`

	snap, redirect := parseSnapshot(docFromHTML(t, html), "https://www.mercadolivre.com.br/sec/abc123")

	assert.Empty(t, snap.Title)
	assert.Equal(t, "https://www.mercadolivre.com.br/produto-real", redirect)
}
