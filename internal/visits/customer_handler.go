package visits

import (
	"strings"

	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateCustomerRequest struct {
	Name string `json:"nome"`
	CPF  string `json:"cpf"`
}

func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
		}

		body.Name = strings.TrimSpace(body.Name)
		cpf := onlyDigits(body.CPF)

		if body.Name == "" || cpf == "" {
			return fiber.NewError(fiber.StatusBadRequest, "nome e cpf são obrigatórios")
		}
		if len(cpf) != 11 {
			return fiber.NewError(fiber.StatusBadRequest, "CPF deve ter 11 dígitos")
		}

		var exists models.Customer
		if err := database.DB.Where("cpf = ?", cpf).First(&exists).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "CPF já cadastrado")
		}

		customer := models.Customer{Name: body.Name, CPF: cpf}
		if err := database.DB.Create(&customer).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Cliente não pôde ser criado")
		}

		return c.Status(fiber.StatusCreated).JSON(customer)
	}
}

func GetCustomerByCPFHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cpf := onlyDigits(c.Params("cpf"))

		var customer models.Customer
		if err := database.DB.Where("cpf = ?", cpf).First(&customer).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Cliente não encontrado")
		}
		return c.JSON(customer)
	}
}

// SearchCustomersHandler busca por nome ou CPF (parcial), limitada a
// 15 resultados para o autocomplete do front.
func SearchCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		term := strings.TrimSpace(c.Query("q"))
		if term == "" {
			return c.JSON([]models.Customer{})
		}

		like := "%" + strings.ToLower(term) + "%"
		var customers []models.Customer
		if err := database.DB.
			Where("LOWER(nome) LIKE ? OR cpf LIKE ?", like, like).
			Limit(15).
			Find(&customers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Busca não pôde ser executada")
		}

		return c.JSON(customers)
	}
}
