package stores

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tabela de sinônimos: rótulos históricos e variações de escrita que os
// sistemas antigos gravavam como nome da loja. Cada alias precisa estar
// enumerado aqui; é dado de configuração, não lógica.
var synonyms = map[string]Code{
	"CASA_DO_CIGANO_INDIANOPOLIS": Indianopolis,

	"CASA_DO_CIGANO_LOJA_VL_MASCOTE": Mascote,
	"LOJA_VL_MASCOTE":                Mascote,
	"VILA_MASCOTE":                   Mascote,
	"VL_MASCOTE":                     Mascote,

	"CASA_DO_CIGANO_MEGA_LOJA": Jabaquara,
	"MEGA_LOJA":                Jabaquara,

	"CASA_DO_CIGANO_PRAIA_GRANDE": PraiaGrande,

	"CASA_DO_CIGANO_TATUAPE": Tatuape,
}

// Decompõe acentos (NFKD) e remove as marcas combinantes, reduzindo o
// texto a ASCII puro: "Tatuapé" -> "Tatuape".
var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var separators = regexp.MustCompile(`[\s\-]+`)

func foldKey(raw string) string {
	s := strings.TrimSpace(raw)
	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}
	s = strings.ReplaceAll(s, ".", "")
	s = separators.ReplaceAllString(s, "_")
	return strings.ToUpper(s)
}

// Normalize converte um rótulo livre de loja no código canônico.
// É insensível a caixa, acento e separador: "Loja Vl. Mascote",
// "vila-mascote" e "MASCOTE" resolvem todos para a mesma loja.
// Retorna false quando o texto não corresponde a nenhuma loja conhecida.
func Normalize(raw string) (Code, bool) {
	key := foldKey(raw)
	if key == "" {
		return "", false
	}
	if code, ok := synonyms[key]; ok {
		return code, true
	}
	if code := Code(key); Valid(code) {
		return code, true
	}
	return "", false
}
