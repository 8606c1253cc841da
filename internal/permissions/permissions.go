package permissions

import (
	"sort"

	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/stores"

	"gorm.io/gorm"
)

// Action é a categoria de operação autorizada por loja.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
)

// Identity carrega o estado de autorização do usuário autenticado.
// É sempre passada explicitamente para as checagens; nenhuma função
// deste pacote lê estado global de sessão.
type Identity struct {
	UserID uint
	Name   string
	Role   models.UserRole
	Perms  models.PermissionSet
}

// AllowedStores calcula o conjunto de lojas permitidas para a ação.
// Sem identidade o conjunto é vazio; ADMIN recebe todas as lojas,
// independente do mapa gravado. Entradas do mapa com loja desconhecida
// ou malformada são descartadas em silêncio.
func AllowedStores(id *Identity, action Action) map[stores.Code]bool {
	allowed := make(map[stores.Code]bool)
	if id == nil {
		return allowed
	}
	if id.Role == models.RoleAdmin {
		for _, code := range stores.All() {
			allowed[code] = true
		}
		return allowed
	}
	for raw, flags := range id.Perms.Lojas {
		code, ok := stores.Normalize(string(raw))
		if !ok {
			continue
		}
		var granted bool
		switch action {
		case ActionView:
			granted = flags.View
		case ActionCreate:
			granted = flags.Create
		case ActionEdit:
			granted = flags.Edit
		}
		if granted {
			allowed[code] = true
		}
	}
	return allowed
}

// AllowedList é AllowedStores em ordem estável, para payloads de erro.
func AllowedList(id *Identity, action Action) []stores.Code {
	set := AllowedStores(id, action)
	out := make([]stores.Code, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EnsureAllowed checa se a loja está liberada para a ação. O conjunto
// permitido retornado serve apenas como diagnóstico na resposta 403;
// nunca como material de bypass.
func EnsureAllowed(id *Identity, code stores.Code, action Action) (bool, []stores.Code) {
	allowed := AllowedStores(id, action)
	list := make([]stores.Code, 0, len(allowed))
	for c := range allowed {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return allowed[code], list
}

// RestrictByStores limita a query às lojas permitidas para a ação.
// ADMIN passa sem filtro. Conjunto vazio produz resultado provadamente
// vazio: ausência de permissão nunca vira visibilidade total.
func RestrictByStores(q *gorm.DB, column string, action Action, id *Identity) *gorm.DB {
	if id != nil && id.Role == models.RoleAdmin {
		return q
	}
	allowed := AllowedList(id, action)
	if len(allowed) == 0 {
		return q.Where("1 = 0")
	}
	return q.Where(column+" IN ?", allowed)
}
