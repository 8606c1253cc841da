package main

import (
	"log"
	"strings"

	"fidelidade-backend/internal/admin"
	"fidelidade-backend/internal/audit"
	"fidelidade-backend/internal/auth"
	"fidelidade-backend/internal/config"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/points"
	"fidelidade-backend/internal/visits"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)
	database.SeedAdmin(cfg)
	auth.InitSessionStore()

	engine := points.NewEngine(cfg.AccrualFactor)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Erro inesperado:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Erro inesperado no servidor",
			})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(corsOrigins, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// Autenticação (rotas públicas; /auth/me responde 200 para anônimo)
	api.Post("/auth/login", auth.LoginHandler(cfg))
	api.Post("/auth/logout", auth.LogoutHandler())
	api.Get("/auth/me", auth.MeHandler(cfg))
	api.Post("/auth/forgot", auth.ForgotPasswordHandler())
	api.Post("/auth/reset", auth.ResetPasswordHandler())

	// Protegidas: sessão ou bearer token
	protected := api.Group("")
	protected.Use(auth.IdentityMiddleware(cfg))

	// Administração de usuários e permissões (só ADMIN)
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Get("/roles", admin.ListRolesHandler())
	adminRoutes.Get("/users", admin.ListUsersHandler())
	adminRoutes.Post("/users", admin.CreateUserHandler())
	adminRoutes.Get("/users/:id", admin.GetUserHandler())
	adminRoutes.Put("/users/:id", admin.UpdateUserHandler())
	adminRoutes.Delete("/users/:id", admin.DeleteUserHandler())
	adminRoutes.Get("/users/:id/permissoes", admin.GetUserPermissionsHandler())
	adminRoutes.Put("/users/:id/permissoes", admin.SetUserPermissionsHandler())
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())

	// Visitas e pontos
	protected.Post("/visitas", visits.CreateVisitHandler(engine))
	protected.Get("/visitas/cliente/:id", visits.ListCustomerVisitsHandler())
	protected.Get("/visitas/:id", visits.GetVisitHandler())
	protected.Put("/visitas/:id", visits.UpdateVisitHandler(engine))
	protected.Delete("/visitas/:id", visits.DeleteVisitHandler(engine))
	protected.Get("/pontos/cliente/:id", visits.GetCustomerPointsHandler())

	// Relatórios
	protected.Get("/relatorio/visitas", visits.VisitReportHandler())
	protected.Get("/relatorio/visitas/export", visits.ExportVisitReportHandler())

	// Clientes
	protected.Post("/clientes", visits.CreateCustomerHandler())
	protected.Get("/clientes/cpf/:cpf", visits.GetCustomerByCPFHandler())
	protected.Get("/clientes/buscar", visits.SearchCustomersHandler())

	log.Println("Servidor rodando na porta:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
