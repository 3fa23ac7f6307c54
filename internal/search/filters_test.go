package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"iPhone 14 Pro Max 256GB", "iphone 14 pro max 256gb"},
		{"iPhone 14 Pro Max (Lacrado) 256GB", "iphone 14 pro max 256gb"},
		{`Smart TV 50" 4K [Novo]`, "smart tv 50 4k"},
		{"  Notebook   Gamer  ", "notebook gamer"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.raw))
	}
}

func TestIsAccessoryNoise(t *testing.T) {
	// Acessório não pedido na consulta é ruído
	assert.True(t, IsAccessoryNoise("Capa Silicone iPhone 14", "iphone 14"))
	assert.True(t, IsAccessoryNoise("iPhone 14 Kılıf Şeffaf", "iphone 14"))
	assert.True(t, IsAccessoryNoise("Película de Vidro Galaxy S23", "galaxy s23"))

	// Se o usuário pediu o acessório, não é ruído
	assert.False(t, IsAccessoryNoise("Capa Silicone iPhone 14", "capa iphone 14"))

	assert.False(t, IsAccessoryNoise("iPhone 14 128GB Preto", "iphone 14"))
}

func TestIsPriceAnomaly(t *testing.T) {
	// iPhone a R$ 140 é parse errado ou anúncio de peça
	assert.True(t, IsPriceAnomaly("iPhone 14 128GB", "iphone 14", 140))
	assert.True(t, IsPriceAnomaly("Console usado", "playstation 5", 300))

	assert.False(t, IsPriceAnomaly("iPhone 14 128GB", "iphone 14", 3500))
	assert.False(t, IsPriceAnomaly("Caneca personalizada", "caneca", 25))
	assert.False(t, IsPriceAnomaly("iPhone 14", "iphone 14", 0))
}
