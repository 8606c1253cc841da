package admin

import (
	"log"
	"strings"

	"fidelidade-backend/internal/audit"
	"fidelidade-backend/internal/auth"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type UserResponse struct {
	ID         uint                 `json:"id"`
	Name       string               `json:"nome"`
	Username   string               `json:"username"`
	Email      string               `json:"email"`
	Role       models.UserRole      `json:"role"`
	Permissoes models.PermissionSet `json:"permissoes"`
	Active     bool                 `json:"ativo"`
	CreatedAt  string               `json:"created_at"`
}

type CreateUserRequest struct {
	Name     string `json:"nome"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"senha"`
}

type UpdateUserRequest struct {
	Name     *string `json:"nome"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Active   *bool   `json:"ativo"`
	Password *string `json:"senha"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		Permissoes: u.Permissions.Public(),
		Active:     u.Active,
		CreatedAt:  u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func writeAudit(opts audit.LogOptions) {
	if err := audit.WriteLog(opts); err != nil {
		log.Println("Falha ao gravar auditoria:", err)
	}
}

func ListRolesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(models.AllRoles())
	}
}

func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("per_page", 20)
		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		qry := database.DB.Model(&models.User{})
		if q != "" {
			like := "%" + strings.ToLower(q) + "%"
			qry = qry.Where(
				"LOWER(nome) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?",
				like, like, like,
			)
		}

		var total int64
		if err := qry.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Usuários não puderam ser listados")
		}

		var users []models.User
		if err := qry.Order("id DESC").
			Offset((page - 1) * perPage).
			Limit(perPage).
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Usuários não puderam ser listados")
		}

		res := make([]UserResponse, 0, len(users))
		for i := range users {
			res = append(res, userResponse(&users[i]))
		}

		pages := int((total + int64(perPage) - 1) / int64(perPage))
		return c.JSON(fiber.Map{
			"users":        res,
			"total":        total,
			"pages":        pages,
			"current_page": page,
		})
	}
}

func GetUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Usuário não encontrado")
		}
		return c.JSON(userResponse(&user))
	}
}

func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Username = strings.TrimSpace(body.Username)
		body.Email = strings.TrimSpace(body.Email)

		if body.Name == "" || body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "nome, username e senha são obrigatórios")
		}

		role := models.UserRole(strings.ToUpper(strings.TrimSpace(body.Role)))
		if role == "" {
			role = models.RoleAtendente
		}
		if !models.ValidRole(role) {
			return fiber.NewError(fiber.StatusBadRequest, "role inválido. Use: ADMIN, ATENDENTE ou GERENTE")
		}

		var exists models.User
		if err := database.DB.Where("username = ?", body.Username).First(&exists).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "username já existe")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Senha não pôde ser processada")
		}

		user := models.User{
			Name:         body.Name,
			Username:     body.Username,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         role,
			Active:       true,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Usuário não pôde ser criado")
		}

		writeAudit(audit.LogOptions{
			Identity:    auth.CurrentIdentity(c),
			EntityType:  "usuario",
			EntityID:    user.ID,
			Action:      models.AuditActionCreate,
			Description: "Usuário criado: " + user.Username,
			After:       userResponse(&user),
		})

		return c.Status(fiber.StatusCreated).JSON(userResponse(&user))
	}
}

func UpdateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Usuário não encontrado")
		}
		before := userResponse(&user)

		var body UpdateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		if body.Name != nil {
			if v := strings.TrimSpace(*body.Name); v != "" {
				user.Name = v
			}
		}

		if body.Username != nil {
			newUsername := strings.TrimSpace(*body.Username)
			if newUsername != "" && newUsername != user.Username {
				var exists models.User
				if err := database.DB.Where("username = ?", newUsername).First(&exists).Error; err == nil {
					return fiber.NewError(fiber.StatusBadRequest, "username já existe")
				}
				user.Username = newUsername
			}
		}

		if body.Email != nil {
			user.Email = strings.TrimSpace(*body.Email)
		}

		if body.Role != nil {
			role := models.UserRole(strings.ToUpper(strings.TrimSpace(*body.Role)))
			if models.ValidRole(role) {
				user.Role = role
			}
		}

		if body.Active != nil {
			user.Active = *body.Active
		}

		if body.Password != nil && *body.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Senha não pôde ser processada")
			}
			user.PasswordHash = string(hash)
		}

		if err := database.DB.Save(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Usuário não pôde ser atualizado")
		}

		writeAudit(audit.LogOptions{
			Identity:    auth.CurrentIdentity(c),
			EntityType:  "usuario",
			EntityID:    user.ID,
			Action:      models.AuditActionUpdate,
			Description: "Usuário atualizado: " + user.Username,
			Before:      before,
			After:       userResponse(&user),
		})

		return c.JSON(userResponse(&user))
	}
}

// DeleteUserHandler remove o registro de vez. A regra de negócio normal
// desativa via ativo=false; a exclusão física é operação exclusiva de
// ADMIN.
func DeleteUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Usuário não encontrado")
		}

		if err := database.DB.Delete(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Usuário não pôde ser removido")
		}

		writeAudit(audit.LogOptions{
			Identity:    auth.CurrentIdentity(c),
			EntityType:  "usuario",
			EntityID:    user.ID,
			Action:      models.AuditActionDelete,
			Description: "Usuário removido: " + user.Username,
			Before:      userResponse(&user),
		})

		return c.JSON(fiber.Map{"ok": true})
	}
}
