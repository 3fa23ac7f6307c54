package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rastreador-precos/internal/models"
)

func TestParseListing(t *testing.T) {
	html := `<html><body>
		<article class="productCard">
			<a href="/produto/mouse-gamer-123"></a>
			<span class="nameCard">Mouse Gamer RGB</span>
			<span class="priceCard">R$ 149,90</span>
			<span class="oldPriceCard">R$ 199,90</span>
			<img class="imageCard" src="https://img.kabum.com.br/mouse.jpg"/>
		</article>
		<article class="productCard">
			<a href="/produto/teclado-456"></a>
			<span class="nameCard">Teclado Mecânico</span>
			<span class="priceCard">R$ 349,90</span>
			<img class="imageCard" src="https://img.kabum.com.br/teclado.jpg"/>
		</article>
		<article class="productCard">
			<a href="/produto/mouse-gamer-123"></a>
			<span class="nameCard">Mouse Gamer RGB duplicado</span>
			<span class="priceCard">R$ 149,90</span>
		</article>
		<article class="productCard">
			<a href="/produto/sem-titulo-789"></a>
			<span class="priceCard">R$ 99,90</span>
		</article>
	</body></html>`

	target := ListingTarget{Merchant: "kabum", URL: "https://www.kabum.com.br/ofertas", DemographicTag: ""}
	adapter := FindAdapter(target.URL)
	items := parseListing(docFromHTML(t, html), adapter, target)

	// Duplicado e item sem título ficam de fora
	require.Len(t, items, 2)

	mouse := items[0]
	assert.Equal(t, models.OwnerSystem, mouse.OwnerID)
	assert.Equal(t, "https://www.kabum.com.br/produto/mouse-gamer-123", mouse.URL)
	assert.Equal(t, "Mouse Gamer RGB", mouse.Title)
	assert.InDelta(t, 149.90, mouse.CurrentPrice, 0.001)
	assert.InDelta(t, 199.90, mouse.OriginalPrice, 0.001)
	assert.Equal(t, "https://img.kabum.com.br/mouse.jpg", mouse.ImageURL)
	assert.Equal(t, "kabum", mouse.Source)
	assert.True(t, mouse.InStock)

	teclado := items[1]
	assert.Equal(t, "Teclado Mecânico", teclado.Title)
	assert.Zero(t, teclado.OriginalPrice)
}

func TestParseListingOldPriceNoise(t *testing.T) {
	// Preço antigo menor ou igual ao atual é descartado
	html := `<html><body>
		<article class="productCard">
			<a href="/p/1"></a>
			<span class="nameCard">Headset</span>
			<span class="priceCard">R$ 200,00</span>
			<span class="oldPriceCard">R$ 180,00</span>
		</article>
	</body></html>`

	target := ListingTarget{Merchant: "kabum", URL: "https://www.kabum.com.br/ofertas"}
	items := parseListing(docFromHTML(t, html), FindAdapter(target.URL), target)

	require.Len(t, items, 1)
	assert.Zero(t, items[0].OriginalPrice)
}

func TestParseListingTitleFromImageAlt(t *testing.T) {
	html := `<html><body>
		<div class="product-card">
			<a href="https://br.shein.com/vestido-floral-p-123.html"></a>
			<span class="product-card__price"><span>R$ 89,90</span></span>
			<img src="https://img.shein.com/vestido.jpg" alt="Vestido Floral Midi"/>
		</div>
	</body></html>`

	target := ListingTarget{Merchant: "shein", URL: "https://br.shein.com/Women-Dresses-c-1727.html", DemographicTag: "feminino"}
	items := parseListing(docFromHTML(t, html), FindAdapter(target.URL), target)

	require.Len(t, items, 1)
	assert.Equal(t, "Vestido Floral Midi", items[0].Title)
	assert.Equal(t, "feminino", items[0].DemographicTag)
	assert.Equal(t, models.CategoryFashion, items[0].Category)
}
