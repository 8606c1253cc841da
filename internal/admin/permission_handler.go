package admin

import (
	"fidelidade-backend/internal/audit"
	"fidelidade-backend/internal/auth"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/stores"

	"github.com/gofiber/fiber/v2"
)

// StorePermission é o formato amigável ao front: um item por loja.
type StorePermission struct {
	Label  string `json:"label"`
	View   bool   `json:"view"`
	Create bool   `json:"create"`
	Edit   bool   `json:"edit"`
}

type SetPermissionsRequest struct {
	Lojas []StorePermission `json:"lojas"`
}

// sanitizePermissions normaliza cada rótulo para o código canônico e
// descarta em silêncio os que não correspondem a nenhuma loja.
func sanitizePermissions(items []StorePermission) map[stores.Code]models.ActionFlags {
	lojas := make(map[stores.Code]models.ActionFlags)
	for _, item := range items {
		code, ok := stores.Normalize(item.Label)
		if !ok {
			continue
		}
		lojas[code] = models.ActionFlags{
			View:   item.View,
			Create: item.Create,
			Edit:   item.Edit,
		}
	}
	return lojas
}

func GetUserPermissionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Usuário não encontrado")
		}

		out := make([]StorePermission, 0, len(user.Permissions.Lojas))
		for _, code := range stores.All() {
			flags, ok := user.Permissions.Lojas[code]
			if !ok {
				continue
			}
			out = append(out, StorePermission{
				Label:  string(code),
				View:   flags.View,
				Create: flags.Create,
				Edit:   flags.Edit,
			})
		}

		return c.JSON(fiber.Map{
			"lojas":          out,
			"allowed_labels": stores.All(),
		})
	}
}

func SetUserPermissionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Usuário não encontrado")
		}

		var body SetPermissionsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		before := user.Permissions.Public()

		// Um token de reset pendente sobrevive à edição de permissões.
		user.Permissions.Lojas = sanitizePermissions(body.Lojas)
		if err := database.DB.Model(&user).Update("permissoes", user.Permissions).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Permissões não puderam ser gravadas")
		}

		writeAudit(audit.LogOptions{
			Identity:    auth.CurrentIdentity(c),
			EntityType:  "permissoes",
			EntityID:    user.ID,
			Action:      models.AuditActionUpdate,
			Description: "Permissões alteradas: " + user.Username,
			Before:      before,
			After:       user.Permissions.Public(),
		})

		return c.JSON(userResponse(&user))
	}
}
