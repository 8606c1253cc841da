package auth

import (
	"strings"

	"fidelidade-backend/internal/config"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		body.Username = strings.TrimSpace(body.Username)
		if body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Informe usuário e senha")
		}

		var user models.User
		if err := database.DB.Where("LOWER(username) = LOWER(?)", body.Username).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Credenciais inválidas")
		}

		// Senha errada e conta inativa respondem igual, para não vazar
		// o estado da conta.
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil || !user.Active {
			return fiber.NewError(fiber.StatusUnauthorized, "Credenciais inválidas")
		}

		sess, err := Store.Get(c)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível iniciar a sessão")
		}
		if err := sess.Regenerate(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível iniciar a sessão")
		}
		sess.Set(sessionUserIDKey, user.ID)
		if err := sess.Save(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível iniciar a sessão")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token não pôde ser gerado")
		}

		return c.JSON(fiber.Map{
			"ok":    true,
			"token": token,
			"user":  userPayload(&user),
		})
	}
}

func LogoutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sess, err := Store.Get(c); err == nil {
			_ = sess.Destroy()
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

// MeHandler é público: responde {authenticated:false} com 200 para
// anônimos. Sessão apontando para usuário removido é limpa e tratada
// como anônima.
func MeHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := userFromSession(c)
		if !ok {
			user, ok = userFromBearer(c, cfg.JWTSecret)
		}
		if !ok {
			return c.JSON(fiber.Map{"authenticated": false})
		}

		return c.JSON(fiber.Map{
			"authenticated": true,
			"user":          userPayload(user),
			"role":          user.Role,
			"permissoes":    user.Permissions.Public(),
		})
	}
}

func userPayload(u *models.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"nome":       u.Name,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"permissoes": u.Permissions.Public(),
		"ativo":      u.Active,
		"created_at": u.CreatedAt,
	}
}
