package scraper

import (
	"strconv"
	"strings"
)

// ParsePrice converte texto bruto de preço em número.
//
// Mantém apenas dígitos e separadores e decide qual separador é o decimal
// pela posição: o que aparece mais à direita é o decimal, o outro é
// separador de milhar. Com isso "1.299,90" (BR/EU) e "1,299.90" (US) são
// interpretados sem ambiguidade.
//
// Retorna 0 para entrada não parseável; nunca gera pânico.
func ParsePrice(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma > lastDot:
		// vírgula decimal: pontos são milhar, vírgulas anteriores também
		s = strings.ReplaceAll(s, ".", "")
		s = removeAllButLast(s, ",")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma:
		// ponto decimal: vírgulas são milhar, pontos anteriores também
		s = strings.ReplaceAll(s, ",", "")
		s = removeAllButLast(s, ".")
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}

// removeAllButLast remove todas as ocorrências de sep, exceto a última
func removeAllButLast(s, sep string) string {
	last := strings.LastIndex(s, sep)
	if last < 0 {
		return s
	}
	head := strings.ReplaceAll(s[:last], sep, "")
	return head + s[last:]
}
