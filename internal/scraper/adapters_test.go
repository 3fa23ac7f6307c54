package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rastreador-precos/internal/models"
)

func TestFindAdapter(t *testing.T) {
	assert.Equal(t, "mercadolivre", FindAdapter("https://www.mercadolivre.com.br/produto").Name)
	assert.Equal(t, "amazon", FindAdapter("https://www.amazon.com.br/dp/B0ABC").Name)
	assert.Equal(t, "magazineluiza", FindAdapter("https://www.magalu.com.br/p/x").Name)
	assert.Equal(t, "shein", FindAdapter("https://br.shein.com/vestido").Name)
	assert.Equal(t, "generico", FindAdapter("https://lojadesconhecida.com.br/p/1").Name)
}

func TestIsShareLink(t *testing.T) {
	assert.True(t, IsShareLink("https://shp.ee/abc123"))
	assert.True(t, IsShareLink("https://amzn.to/3xYz"))
	assert.True(t, IsShareLink("https://s.click.aliexpress.com/e/_abc"))
	assert.False(t, IsShareLink("https://www.mercadolivre.com.br/produto/p/MLB123"))
}

func TestClassifyCategory(t *testing.T) {
	// Lojista de moda classifica sempre como moda, mesmo sem palavra-chave
	assert.Equal(t, models.CategoryFashion, ClassifyCategory("https://br.shein.com/item-123", "Produto 123"))

	assert.Equal(t, models.CategoryElectronics, ClassifyCategory("https://ex.com/p", "Smartphone 128GB"))
	assert.Equal(t, models.CategoryFashion, ClassifyCategory("https://ex.com/p", "Camiseta básica algodão"))
	assert.Equal(t, models.CategoryCosmetics, ClassifyCategory("https://ex.com/p", "Kit maquiagem completo"))
	assert.Equal(t, models.CategoryHome, ClassifyCategory("https://ex.com/p", "Jogo de panela antiaderente"))
	assert.Equal(t, models.CategoryOther, ClassifyCategory("https://ex.com/p", "Ração para cães 15kg"))
}

func TestSourceFromURL(t *testing.T) {
	assert.Equal(t, "mercadolivre", SourceFromURL("https://www.mercadolivre.com.br/p/MLB1"))
	assert.Equal(t, "shein", SourceFromURL("https://m.shein.com/item"))
	assert.Equal(t, "aliexpress", SourceFromURL("https://pt.aliexpress.com/item/1.html"))
	assert.Equal(t, "desconhecido", SourceFromURL("isso não é uma url"))
}

func TestRegisterAdapterTakesPriority(t *testing.T) {
	original := registry
	defer func() { registry = original }()

	RegisterAdapter(Adapter{
		Name:  "lojaespecial",
		Match: domainContains("mercadolivre"),
	})
	assert.Equal(t, "lojaespecial", FindAdapter("https://www.mercadolivre.com.br/p").Name)
}
