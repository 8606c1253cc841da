package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = 15 * time.Minute

// Token curto para digitação manual, ex.: "A1B2C3".
func newResetToken() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

type ForgotRequest struct {
	Username string `json:"username"`
}

// ForgotPasswordHandler sempre responde 200, exista a conta ou não,
// para não permitir enumeração de usuários.
func ForgotPasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ForgotRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}
		username := strings.TrimSpace(body.Username)
		if username == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username obrigatório")
		}

		var user models.User
		if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
			return c.JSON(fiber.Map{"ok": true})
		}

		token, err := newResetToken()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível gerar o token")
		}

		user.Permissions.Reset = &models.ResetToken{
			Token:     token,
			ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
		}
		if err := database.DB.Model(&user).Update("permissoes", user.Permissions).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível gravar o token")
		}

		// Sem serviço de email: o token volta na resposta para teste manual.
		return c.JSON(fiber.Map{"ok": true, "token": token, "exp_minutes": 15})
	}
}

type ResetRequest struct {
	Username    string `json:"username"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPasswordHandler troca a senha mediante token pendente válido.
// Qualquer falha (usuário inexistente, sem token pendente, token errado
// ou vencido) responde o mesmo erro genérico.
func ResetPasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ResetRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		username := strings.TrimSpace(body.Username)
		token := strings.TrimSpace(body.Token)
		if username == "" || token == "" || body.NewPassword == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username, token e new_password são obrigatórios")
		}

		invalid := fiber.NewError(fiber.StatusBadRequest, "Token inválido ou expirado")

		var user models.User
		if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
			return invalid
		}

		pending := user.Permissions.Reset
		if pending == nil {
			return invalid
		}
		if !strings.EqualFold(pending.Token, token) {
			return invalid
		}
		if time.Now().UTC().After(pending.ExpiresAt) {
			return invalid
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível gravar a senha")
		}

		// Token é de uso único: sai do blob junto com a troca da senha.
		user.Permissions.Reset = nil
		updates := map[string]any{
			"password_hash": string(hash),
			"permissoes":    user.Permissions,
		}
		if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível gravar a senha")
		}

		return c.JSON(fiber.Map{"ok": true})
	}
}
