package visits

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"fidelidade-backend/internal/auth"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/permissions"
	"fidelidade-backend/internal/points"
	"fidelidade-backend/internal/stores"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var nonDigits = regexp.MustCompile(`\D`)

func onlyDigits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// Aceita JSON ou form, como o front antigo enviava.
type CreateVisitRequest struct {
	ClienteID   *uint    `json:"cliente_id" form:"cliente_id"`
	ValorCompra *float64 `json:"valor_compra" form:"valor_compra"`
	Loja        string   `json:"loja" form:"loja"`
	CPF         string   `json:"cpf" form:"cpf"`
}

type UpdateVisitRequest struct {
	Loja        *string  `json:"loja"`
	ValorCompra *float64 `json:"valor_compra"`
}

// CreateVisitHandler registra a visita e credita os pontos na mesma
// transação: ou os dois commits acontecem, ou nenhum.
func CreateVisitHandler(engine *points.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateVisitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		// Resolve o cliente por id ou pelo CPF digitado
		var customer models.Customer
		switch {
		case body.ClienteID != nil && *body.ClienteID != 0:
			if err := database.DB.First(&customer, *body.ClienteID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Cliente não encontrado")
			}
		case strings.TrimSpace(body.CPF) != "":
			if err := database.DB.Where("cpf = ?", onlyDigits(body.CPF)).First(&customer).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Cliente não encontrado")
			}
		default:
			return fiber.NewError(fiber.StatusBadRequest, "cliente_id e valor_compra são obrigatórios")
		}

		if body.ValorCompra == nil {
			return fiber.NewError(fiber.StatusBadRequest, "cliente_id e valor_compra são obrigatórios")
		}
		amount := *body.ValorCompra
		if amount <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Valor da compra deve ser maior que zero")
		}

		identity := auth.CurrentIdentity(c)

		var storeCode *stores.Code
		if strings.TrimSpace(body.Loja) != "" {
			code, ok := stores.Normalize(body.Loja)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("Loja inválida (recebido: %s). Aceitas: %v", body.Loja, stores.All()))
			}
			okPerm, allowed := permissions.EnsureAllowed(identity, code, permissions.ActionCreate)
			if !okPerm {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":      fmt.Sprintf("Usuário não tem permissão de CRIAR para a loja %s", code),
					"permitidas": allowed,
				})
			}
			storeCode = &code
		}

		visit := models.Visit{
			CustomerID:     customer.ID,
			PurchaseAmount: amount,
			Store:          storeCode,
			VisitedAt:      time.Now().UTC(),
		}

		var gained int
		var pts *models.Points
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&visit).Error; err != nil {
				return err
			}
			var err error
			gained, pts, err = engine.ApplyDelta(tx, customer.ID, amount)
			return err
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível registrar a visita")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"visita":        visit,
			"pontos_ganhos": gained,
			"pontos_totais": pts.AccumulatedPoints,
			"nivel_atual":   pts.CurrentTier,
		})
	}
}

// ListCustomerVisitsHandler lista as visitas do cliente, restritas às
// lojas onde o usuário tem permissão de visualização.
func ListCustomerVisitsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("per_page", 10)
		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 10
		}

		var customer models.Customer
		if err := database.DB.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Cliente não encontrado")
		}

		identity := auth.CurrentIdentity(c)
		q := database.DB.Model(&models.Visit{}).Where("customer_id = ?", customer.ID)
		q = permissions.RestrictByStores(q, "store", permissions.ActionView, identity)

		var total int64
		if err := q.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Visitas não puderam ser listadas")
		}

		var visits []models.Visit
		if err := q.Order("visited_at DESC").
			Offset((page - 1) * perPage).
			Limit(perPage).
			Find(&visits).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Visitas não puderam ser listadas")
		}

		pages := int((total + int64(perPage) - 1) / int64(perPage))
		return c.JSON(fiber.Map{
			"visitas":      visits,
			"total":        total,
			"pages":        pages,
			"current_page": page,
			"cliente":      customer,
		})
	}
}

func GetVisitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var visit models.Visit
		if err := database.DB.First(&visit, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Visita não encontrada")
		}
		return c.JSON(visit)
	}
}

// UpdateVisitHandler altera loja e/ou valor. Troca de loja exige
// permissão de edição na loja nova; mudança de valor dispara o ajuste
// de pontos pela diferença líquida, na mesma transação.
func UpdateVisitHandler(engine *points.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var visit models.Visit
		if err := database.DB.First(&visit, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Visita não encontrada")
		}

		var body UpdateVisitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		identity := auth.CurrentIdentity(c)

		if body.Loja != nil && strings.TrimSpace(*body.Loja) != "" {
			code, ok := stores.Normalize(*body.Loja)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "Loja inválida")
			}
			okPerm, allowed := permissions.EnsureAllowed(identity, code, permissions.ActionEdit)
			if !okPerm {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":      fmt.Sprintf("Sem permissão de EDITAR na loja %s", code),
					"permitidas": allowed,
				})
			}
			visit.Store = &code
		}

		oldAmount := visit.PurchaseAmount
		if body.ValorCompra != nil {
			if *body.ValorCompra <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Valor da compra deve ser maior que zero")
			}
			visit.PurchaseAmount = *body.ValorCompra
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&visit).Error; err != nil {
				return err
			}
			if visit.PurchaseAmount != oldAmount {
				_, _, err := engine.ApplyDelta(tx, visit.CustomerID, visit.PurchaseAmount-oldAmount)
				return err
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível atualizar a visita")
		}

		return c.JSON(visit)
	}
}

// DeleteVisitHandler exige permissão de edição na loja da visita e
// estorna os pontos (-valor) junto com a exclusão. Visita sem loja cai
// na negação padrão: nenhuma loja vazia pertence ao conjunto permitido.
func DeleteVisitHandler(engine *points.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var visit models.Visit
		if err := database.DB.First(&visit, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Visita não encontrada")
		}

		identity := auth.CurrentIdentity(c)

		var code stores.Code
		if visit.Store != nil {
			code = *visit.Store
		}
		okPerm, allowed := permissions.EnsureAllowed(identity, code, permissions.ActionEdit)
		if !okPerm {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":      "Sem permissão para excluir nesta loja",
				"permitidas": allowed,
			})
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if _, _, err := engine.ApplyDelta(tx, visit.CustomerID, -visit.PurchaseAmount); err != nil {
				return err
			}
			return tx.Delete(&visit).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Não foi possível excluir a visita")
		}

		return c.JSON(fiber.Map{"message": "Visita excluída com sucesso"})
	}
}

// GetCustomerPointsHandler devolve o agregado de fidelidade do cliente.
// Sem filtro de loja: o saldo é do cliente, não da loja.
func GetCustomerPointsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var customer models.Customer
		if err := database.DB.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Cliente não encontrado")
		}

		pts, err := points.Lookup(database.DB, customer.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Pontos não puderam ser consultados")
		}

		var totalVisits int64
		if err := database.DB.Model(&models.Visit{}).
			Where("customer_id = ?", customer.ID).
			Count(&totalVisits).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Pontos não puderam ser consultados")
		}

		var totalAmount float64
		if err := database.DB.Model(&models.Visit{}).
			Where("customer_id = ?", customer.ID).
			Select("COALESCE(SUM(purchase_amount), 0)").
			Scan(&totalAmount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Pontos não puderam ser consultados")
		}

		return c.JSON(fiber.Map{
			"pontos":              pts,
			"total_visitas":       totalVisits,
			"valor_total_compras": totalAmount,
			"cliente":             customer,
		})
	}
}
