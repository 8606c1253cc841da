package audit

import (
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListAuditLogsHandler lista o rastro administrativo, mais recente
// primeiro. Filtros opcionais: entity_type e entity_id.
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("per_page", 20)
		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		q := database.DB.Model(&models.AuditLog{})
		if et := c.Query("entity_type"); et != "" {
			q = q.Where("entity_type = ?", et)
		}
		if eid := c.QueryInt("entity_id", 0); eid > 0 {
			q = q.Where("entity_id = ?", eid)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Auditoria não pôde ser consultada")
		}

		var logs []models.AuditLog
		if err := q.Order("created_at DESC").
			Offset((page - 1) * perPage).
			Limit(perPage).
			Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Auditoria não pôde ser consultada")
		}

		pages := int((total + int64(perPage) - 1) / int64(perPage))
		return c.JSON(fiber.Map{
			"logs":         logs,
			"total":        total,
			"pages":        pages,
			"current_page": page,
		})
	}
}
