package auth

import (
	"fmt"
	"strings"

	"fidelidade-backend/internal/config"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/permissions"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const CtxIdentityKey = "identity"

// IdentityMiddleware resolve o usuário da sessão (ou de um bearer token
// JWT, para clientes de API) e injeta a Identity explícita que as
// checagens de permissão recebem como argumento.
func IdentityMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user, ok := userFromSession(c); ok {
			c.Locals(CtxIdentityKey, identityOf(user))
			return c.Next()
		}
		if user, ok := userFromBearer(c, cfg.JWTSecret); ok {
			c.Locals(CtxIdentityKey, identityOf(user))
			return c.Next()
		}
		return fiber.NewError(fiber.StatusUnauthorized, "Não autenticado")
	}
}

// CurrentIdentity recupera a Identity injetada pelo middleware.
func CurrentIdentity(c *fiber.Ctx) *permissions.Identity {
	if id, ok := c.Locals(CtxIdentityKey).(*permissions.Identity); ok {
		return id
	}
	return nil
}

// RequireRole restringe a rota aos papéis informados.
func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := CurrentIdentity(c)
		if id == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Não autenticado")
		}
		for _, r := range allowedRoles {
			if r == id.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Sem permissão para esta operação")
	}
}

func identityOf(u *models.User) *permissions.Identity {
	return &permissions.Identity{
		UserID: u.ID,
		Name:   u.Name,
		Role:   u.Role,
		Perms:  u.Permissions,
	}
}

func userFromSession(c *fiber.Ctx) (*models.User, bool) {
	sess, err := Store.Get(c)
	if err != nil {
		return nil, false
	}
	uid, ok := sess.Get(sessionUserIDKey).(uint)
	if !ok || uid == 0 {
		return nil, false
	}

	var user models.User
	if err := database.DB.First(&user, uid).Error; err != nil {
		// sessão aponta para usuário removido: volta a anônimo
		_ = sess.Destroy()
		return nil, false
	}
	if !user.Active {
		return nil, false
	}
	return &user, true
}

func userFromBearer(c *fiber.Ctx, secret string) (*models.User, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, false
	}

	token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de assinatura inválido")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok {
		return nil, false
	}

	var user models.User
	if err := database.DB.First(&user, claims.UserID).Error; err != nil {
		return nil, false
	}
	if !user.Active {
		return nil, false
	}
	return &user, true
}
