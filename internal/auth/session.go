package auth

import (
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
)

const sessionUserIDKey = "user_id"

// Store guarda as sessões no servidor; o cookie carrega só o ID.
var Store *session.Store

// InitSessionStore configura o armazenamento de sessão em memória.
func InitSessionStore() {
	Store = session.New(session.Config{
		Expiration:     24 * time.Hour,
		KeyLookup:      "cookie:fidelidade_session",
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})
}
