package search

import (
	"regexp"
	"strings"
)

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	quotesReplacer  = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "", "’", "", "`", "")
)

// NormalizeKey gera a chave de mesclagem de um título: minúsculas, sem
// aspas nem trechos entre parênteses/colchetes, espaços colapsados.
func NormalizeKey(title string) string {
	key := strings.ToLower(title)
	key = parentheticalRe.ReplaceAllString(key, " ")
	key = quotesReplacer.Replace(key)
	key = whitespaceRe.ReplaceAllString(key, " ")
	return strings.TrimSpace(key)
}

// Palavras de acessório/peça que poluem buscas por produtos principais.
// Os marketplaces misturam idiomas nos anúncios, então a lista também.
var accessoryKeywords = []string{
	"capa", "capinha", "case", "cover", "kılıf",
	"película", "pelicula", "screen protector",
	"cabo", "cable", "carregador", "charger",
	"suporte", "adaptador", "adapter",
	"pulseira", "strap", "bumper", "skin adesiv",
	"filtro", "filter",
}

// IsAccessoryNoise indica se o título contém uma palavra de acessório que
// o usuário não pediu na consulta.
func IsAccessoryNoise(title, query string) bool {
	t := strings.ToLower(title)
	q := strings.ToLower(query)
	for _, kw := range accessoryKeywords {
		if strings.Contains(t, kw) && !strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// Termos de produtos de alto valor: um preço abaixo do piso com um desses
// termos é quase sempre parse errado ou anúncio de peça.
var highValueKeywords = []string{
	"iphone", "galaxy s", "galaxy z", "macbook", "notebook", "laptop",
	"playstation", "ps5", "ps4", "xbox", "nintendo switch",
	"ipad", "airpods", "rtx", "geforce", "radeon", "smart tv",
}

// priceAnomalyFloor é o piso (em unidades de moeda) abaixo do qual um
// produto de alto valor é tratado como anomalia de preço.
const priceAnomalyFloor = 500.0

// IsPriceAnomaly indica se o preço é implausivelmente baixo para um
// produto de alto valor citado no título ou na consulta.
func IsPriceAnomaly(title, query string, price float64) bool {
	if price <= 0 || price >= priceAnomalyFloor {
		return false
	}
	haystack := strings.ToLower(title + " " + query)
	for _, kw := range highValueKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
