package visits

import (
	"time"

	"fidelidade-backend/internal/auth"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/permissions"
	"fidelidade-backend/internal/stores"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func parseReportDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// buildReportQuery monta a query do relatório: filtros opcionais de
// data e loja, sempre restrita às lojas com permissão de visualização.
func buildReportQuery(c *fiber.Ctx) (*gorm.DB, error) {
	q := database.DB.Model(&models.Visit{})

	if raw := c.Query("data_inicio"); raw != "" {
		di, err := parseReportDate(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "data_inicio inválida")
		}
		q = q.Where("visited_at >= ?", di)
	}

	if raw := c.Query("data_fim"); raw != "" {
		df, err := parseReportDate(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "data_fim inválida")
		}
		q = q.Where("visited_at <= ?", df)
	}

	if raw := c.Query("loja"); raw != "" {
		code, ok := stores.Normalize(raw)
		if !ok {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Loja inválida")
		}
		q = q.Where("store = ?", code)
	}

	identity := auth.CurrentIdentity(c)
	return permissions.RestrictByStores(q, "store", permissions.ActionView, identity), nil
}

func VisitReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := buildReportQuery(c)
		if err != nil {
			return err
		}

		var visits []models.Visit
		if err := q.Order("visited_at DESC").Find(&visits).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Relatório não pôde ser gerado")
		}

		total := len(visits)
		var totalAmount float64
		for _, v := range visits {
			totalAmount += v.PurchaseAmount
		}
		var avgAmount float64
		if total > 0 {
			avgAmount = totalAmount / float64(total)
		}

		return c.JSON(fiber.Map{
			"visitas": visits,
			"estatisticas": fiber.Map{
				"total_visitas": total,
				"valor_total":   totalAmount,
				"valor_medio":   avgAmount,
			},
		})
	}
}

// ExportVisitReportHandler gera o mesmo relatório em XLSX, uma linha
// por visita mais a linha de totais no fim.
func ExportVisitReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := buildReportQuery(c)
		if err != nil {
			return err
		}

		var visits []models.Visit
		if err := q.Preload("Customer").Order("visited_at DESC").Find(&visits).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Relatório não pôde ser gerado")
		}

		f := excelize.NewFile()
		defer f.Close()

		const sheet = "Visitas"
		f.SetSheetName("Sheet1", sheet)

		headers := []string{"ID", "Cliente", "CPF", "Loja", "Valor da compra", "Data da visita"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}

		var totalAmount float64
		for i, v := range visits {
			row := i + 2
			name, cpf := "", ""
			if v.Customer != nil {
				name, cpf = v.Customer.Name, v.Customer.CPF
			}
			store := ""
			if v.Store != nil {
				store = string(*v.Store)
			}
			values := []any{
				v.ID,
				name,
				cpf,
				store,
				v.PurchaseAmount,
				v.VisitedAt.Format("2006-01-02 15:04:05"),
			}
			for col, val := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(sheet, cell, val)
			}
			totalAmount += v.PurchaseAmount
		}

		totalRow := len(visits) + 2
		cell, _ := excelize.CoordinatesToCellName(1, totalRow)
		f.SetCellValue(sheet, cell, "TOTAL")
		cell, _ = excelize.CoordinatesToCellName(5, totalRow)
		f.SetCellValue(sheet, cell, totalAmount)

		buf, err := f.WriteToBuffer()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Planilha não pôde ser gerada")
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="relatorio-visitas.xlsx"`)
		return c.Send(buf.Bytes())
	}
}
