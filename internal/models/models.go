package models

import "time"

// Tier do dono do produto; define a cadência de verificação.
const (
	OwnerSystem = "system"
)

// Categorias canônicas atribuídas pelo classificador.
const (
	CategoryElectronics = "eletronicos"
	CategoryFashion     = "moda"
	CategoryCosmetics   = "cosmeticos"
	CategoryHome        = "casa"
	CategoryOther       = "outros"
)

// Product representa um produto rastreado ou minerado do catálogo
type Product struct {
	ID            int64
	OwnerID       string // "system" para produtos de catálogo
	URL           string
	Title         string
	CurrentPrice  float64
	OriginalPrice float64 // Preço original (antes do desconto)
	Discount      float64 // Percentual de desconto atual (0-100), derivado
	TargetPrice   float64 // 0 = sem preço alvo
	ImageURL      string
	Source        string // identificador do lojista, derivado do domínio
	Category      string
	DemographicTag string // preenchido pela mineração de catálogo ("feminino", "masculino", ...)
	InStock       bool
	Premium       bool // classe de conta do dono (denormalizada pela camada de cadastro)
	LastChecked   time.Time
	Active        bool
	CreatedAt     time.Time
}

// PricePoint é uma observação de preço em um instante (append-only)
type PricePoint struct {
	ID         int64
	ProductID  int64
	Price      float64
	ObservedAt time.Time
}

// ProductSnapshot é o resultado de uma extração de página de produto
type ProductSnapshot struct {
	Title         string
	CurrentPrice  float64
	OriginalPrice float64
	ImageURL      string
	Source        string
	Category      string
	InStock       bool
	FinalURL      string // URL após redirecionamentos
}

// Offer é o preço de um vendedor dentro de um resultado agregado
type Offer struct {
	Merchant string
	Price    float64
	URL      string
	Badge    string
}

// Variant é uma variação (cor, tamanho, capacidade) de um resultado
type Variant struct {
	Name string
	URL  string
}

// SearchResult é o resultado bruto normalizado de um provedor de busca
type SearchResult struct {
	Title    string
	Price    float64
	ImageURL string
	URL      string
	Source   string
	Sellers  []Offer
	Variants []Variant
}

// SearchResultGroup é um produto deduplicado entre provedores
type SearchResultGroup struct {
	Key       string // título normalizado usado na mesclagem
	Title     string
	BestPrice float64
	BestURL   string
	ImageURL  string
	Source    string   // lojista do vendedor mais barato
	Sources   []string // provedores que contribuíram
	Sellers   []Offer  // ordenados por preço crescente
	Variants  []Variant
}

// Tipos de evento de alerta
const (
	AlertPriceDrop   = "PRICE_DROP"
	AlertStockBack   = "STOCK_ALERT"
	AlertTargetPrice = "TARGET_PRICE"
)

// AlertEvent registra uma transição notável de estado de um produto
type AlertEvent struct {
	ID        string // uuid
	ProductID int64
	OwnerID   string
	Kind      string
	Message   string
	CreatedAt time.Time
}

// Device é um destino de notificação push registrado por um usuário
type Device struct {
	Token        string
	OwnerID      string
	LastActiveAt time.Time
}

// RecomputeDiscount recalcula o percentual de desconto derivado.
// Só há desconto quando o preço original é maior que o atual.
func (p *Product) RecomputeDiscount() {
	if p.OriginalPrice > p.CurrentPrice && p.OriginalPrice > 0 {
		p.Discount = ((p.OriginalPrice - p.CurrentPrice) / p.OriginalPrice) * 100
	} else {
		p.Discount = 0
	}
}
