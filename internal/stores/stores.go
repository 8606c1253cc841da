package stores

// Code identifica uma loja física da rede. O conjunto é fechado:
// qualquer valor fora das constantes abaixo é inválido.
type Code string

const (
	Indianopolis Code = "INDIANOPOLIS"
	Jabaquara    Code = "JABAQUARA"
	Mascote      Code = "MASCOTE"
	Osasco       Code = "OSASCO"
	PraiaGrande  Code = "PRAIA_GRANDE"
	Tatuape      Code = "TATUAPE"
)

var all = []Code{
	Indianopolis,
	Jabaquara,
	Mascote,
	Osasco,
	PraiaGrande,
	Tatuape,
}

var valid = map[Code]bool{
	Indianopolis: true,
	Jabaquara:    true,
	Mascote:      true,
	Osasco:       true,
	PraiaGrande:  true,
	Tatuape:      true,
}

// All retorna as lojas válidas em ordem alfabética.
func All() []Code {
	out := make([]Code, len(all))
	copy(out, all)
	return out
}

// Valid informa se o código pertence ao conjunto fechado de lojas.
func Valid(c Code) bool {
	return valid[c]
}
