package visits

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fidelidade-backend/internal/auth"
	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/permissions"
	"fidelidade-backend/internal/points"
	"fidelidade-backend/internal/stores"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// identityHolder permite trocar o usuário corrente entre requisições
// do mesmo teste.
type identityHolder struct {
	current *permissions.Identity
}

func adminIdentity() *permissions.Identity {
	return &permissions.Identity{UserID: 1, Name: "Admin", Role: models.RoleAdmin}
}

func attendantIdentity(lojas map[stores.Code]models.ActionFlags) *permissions.Identity {
	return &permissions.Identity{
		UserID: 2,
		Name:   "Atendente",
		Role:   models.RoleAtendente,
		Perms:  models.PermissionSet{Lojas: lojas},
	}
}

func setupVisitsApp(t *testing.T) (*fiber.App, *identityHolder) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("abrir banco: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db

	holder := &identityHolder{current: adminIdentity()}
	engine := points.NewEngine(0)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxIdentityKey, holder.current)
		return c.Next()
	})

	app.Post("/visitas", CreateVisitHandler(engine))
	app.Get("/visitas/cliente/:id", ListCustomerVisitsHandler())
	app.Get("/visitas/:id", GetVisitHandler())
	app.Put("/visitas/:id", UpdateVisitHandler(engine))
	app.Delete("/visitas/:id", DeleteVisitHandler(engine))
	app.Get("/pontos/cliente/:id", GetCustomerPointsHandler())
	app.Get("/relatorio/visitas", VisitReportHandler())
	app.Get("/relatorio/visitas/export", ExportVisitReportHandler())
	app.Post("/clientes", CreateCustomerHandler())
	app.Get("/clientes/cpf/:cpf", GetCustomerByCPFHandler())
	app.Get("/clientes/buscar", SearchCustomersHandler())
	return app, holder
}

func request(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("requisição %s %s: %v", method, path, err)
	}
	return resp
}

func parseBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ler corpo: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decodificar %q: %v", raw, err)
	}
	return out
}

func seedCustomer(t *testing.T, name, cpf string) *models.Customer {
	t.Helper()
	customer := models.Customer{Name: name, CPF: cpf}
	if err := database.DB.Create(&customer).Error; err != nil {
		t.Fatalf("cliente: %v", err)
	}
	return &customer
}

func seedVisit(t *testing.T, customerID uint, amount float64, code stores.Code) *models.Visit {
	t.Helper()
	visit := models.Visit{
		CustomerID:     customerID,
		PurchaseAmount: amount,
		Store:          &code,
		VisitedAt:      time.Now().UTC(),
	}
	if err := database.DB.Create(&visit).Error; err != nil {
		t.Fatalf("visita: %v", err)
	}
	return &visit
}

func customerPoints(t *testing.T, customerID uint) *models.Points {
	t.Helper()
	pts, err := points.Lookup(database.DB, customerID)
	if err != nil {
		t.Fatalf("consultar pontos: %v", err)
	}
	return pts
}

func TestCreateVisit_AccruesPoints(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")

	body := fmt.Sprintf(`{"cliente_id":%d,"valor_compra":750.40,"loja":"Tatuapé"}`, customer.ID)
	resp := request(t, app, http.MethodPost, "/visitas", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, esperado 201", resp.StatusCode)
	}
	out := parseBody(t, resp)
	if out["pontos_ganhos"].(float64) != 750 {
		t.Errorf("pontos_ganhos = %v, esperado 750 (trunca)", out["pontos_ganhos"])
	}
	if out["pontos_totais"].(float64) != 750 {
		t.Errorf("pontos_totais = %v, esperado 750", out["pontos_totais"])
	}
	if out["nivel_atual"] != string(models.TierPrata) {
		t.Errorf("nivel_atual = %v, esperado PRATA", out["nivel_atual"])
	}

	visita := out["visita"].(map[string]any)
	if visita["loja"] != "TATUAPE" {
		t.Errorf("loja = %v, esperado TATUAPE normalizado", visita["loja"])
	}
}

func TestCreateVisit_ByCPF(t *testing.T) {
	app, _ := setupVisitsApp(t)
	seedCustomer(t, "Joana", "11122233344")

	resp := request(t, app, http.MethodPost, "/visitas",
		`{"cpf":"111.222.333-44","valor_compra":10}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, esperado 201", resp.StatusCode)
	}
}

func TestCreateVisit_Validation(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"cliente inexistente", `{"cliente_id":9999,"valor_compra":10}`, http.StatusNotFound},
		{"sem valor", fmt.Sprintf(`{"cliente_id":%d}`, customer.ID), http.StatusBadRequest},
		{"valor zero", fmt.Sprintf(`{"cliente_id":%d,"valor_compra":0}`, customer.ID), http.StatusBadRequest},
		{"valor negativo", fmt.Sprintf(`{"cliente_id":%d,"valor_compra":-5}`, customer.ID), http.StatusBadRequest},
		{"loja desconhecida", fmt.Sprintf(`{"cliente_id":%d,"valor_compra":10,"loja":"Loja Fantasma"}`, customer.ID), http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := request(t, app, http.MethodPost, "/visitas", tc.body)
		if resp.StatusCode != tc.status {
			t.Errorf("%s: status = %d, esperado %d", tc.name, resp.StatusCode, tc.status)
		}
	}
}

func TestCreateVisit_ViewOnlyAttendantForbidden(t *testing.T) {
	app, holder := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")

	// só visualização no Tatuapé: criar lá é negado
	holder.current = attendantIdentity(map[stores.Code]models.ActionFlags{
		stores.Tatuape: {View: true},
	})

	body := fmt.Sprintf(`{"cliente_id":%d,"valor_compra":10,"loja":"TATUAPE"}`, customer.ID)
	resp := request(t, app, http.MethodPost, "/visitas", body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, esperado 403", resp.StatusCode)
	}
	out := parseBody(t, resp)
	if out["error"] == nil {
		t.Error("resposta 403 sem mensagem de erro")
	}
	if _, ok := out["permitidas"]; !ok {
		t.Error("resposta 403 deveria listar as lojas permitidas")
	}

	// nenhum ponto pode ter sido creditado
	if pts := customerPoints(t, customer.ID); pts.AccumulatedPoints != 0 {
		t.Errorf("pontos = %d, esperado 0 após a negação", pts.AccumulatedPoints)
	}
}

func TestListCustomerVisits_FilteredByViewPermission(t *testing.T) {
	app, holder := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")
	seedVisit(t, customer.ID, 10, stores.Jabaquara)
	seedVisit(t, customer.ID, 20, stores.Mascote)
	seedVisit(t, customer.ID, 30, stores.Tatuape)

	holder.current = attendantIdentity(map[stores.Code]models.ActionFlags{
		stores.Jabaquara: {View: true},
		stores.Mascote:   {View: true, Create: true},
	})

	path := fmt.Sprintf("/visitas/cliente/%d", customer.ID)
	out := parseBody(t, request(t, app, http.MethodGet, path, ""))
	if out["total"].(float64) != 2 {
		t.Errorf("total = %v, esperado 2 (Tatuapé fica de fora)", out["total"])
	}

	// sem nenhuma permissão a lista é vazia, não um erro
	holder.current = attendantIdentity(nil)
	out = parseBody(t, request(t, app, http.MethodGet, path, ""))
	if out["total"].(float64) != 0 {
		t.Errorf("total = %v, esperado 0 para usuário sem lojas", out["total"])
	}

	// admin vê tudo
	holder.current = adminIdentity()
	out = parseBody(t, request(t, app, http.MethodGet, path, ""))
	if out["total"].(float64) != 3 {
		t.Errorf("total = %v, esperado 3 para admin", out["total"])
	}
}

func TestUpdateVisit_AmountDeltaAdjustsPoints(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")

	created := parseBody(t, request(t, app, http.MethodPost, "/visitas",
		fmt.Sprintf(`{"cliente_id":%d,"valor_compra":600,"loja":"OSASCO"}`, customer.ID)))
	visitID := created["visita"].(map[string]any)["id"].(float64)

	// 600 -> 200: estorna a diferença
	resp := request(t, app, http.MethodPut, fmt.Sprintf("/visitas/%v", visitID),
		`{"valor_compra":200}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, esperado 200", resp.StatusCode)
	}

	pts := customerPoints(t, customer.ID)
	if pts.AccumulatedPoints != 200 {
		t.Errorf("pontos = %d, esperado 200 após o ajuste", pts.AccumulatedPoints)
	}
	if pts.CurrentTier != models.TierBronze {
		t.Errorf("nível = %s, esperado BRONZE após cair de 600", pts.CurrentTier)
	}
}

func TestUpdateVisit_StoreChangeNeedsEditPermission(t *testing.T) {
	app, holder := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")
	visit := seedVisit(t, customer.ID, 50, stores.Jabaquara)

	holder.current = attendantIdentity(map[stores.Code]models.ActionFlags{
		stores.Jabaquara: {View: true, Edit: true},
		stores.Osasco:    {View: true},
	})

	// mover para loja sem permissão de edição
	resp := request(t, app, http.MethodPut, fmt.Sprintf("/visitas/%d", visit.ID),
		`{"loja":"OSASCO"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, esperado 403", resp.StatusCode)
	}

	// mover para loja com permissão
	resp = request(t, app, http.MethodPut, fmt.Sprintf("/visitas/%d", visit.ID),
		`{"loja":"jabaquara"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, esperado 200", resp.StatusCode)
	}
}

func TestDeleteVisit_RefundsPoints(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")

	created := parseBody(t, request(t, app, http.MethodPost, "/visitas",
		fmt.Sprintf(`{"cliente_id":%d,"valor_compra":550,"loja":"MASCOTE"}`, customer.ID)))
	visitID := created["visita"].(map[string]any)["id"].(float64)

	if pts := customerPoints(t, customer.ID); pts.CurrentTier != models.TierPrata {
		t.Fatalf("nível = %s antes da exclusão, esperado PRATA", pts.CurrentTier)
	}

	resp := request(t, app, http.MethodDelete, fmt.Sprintf("/visitas/%v", visitID), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, esperado 200", resp.StatusCode)
	}

	pts := customerPoints(t, customer.ID)
	if pts.AccumulatedPoints != 0 {
		t.Errorf("pontos = %d, esperado estorno completo", pts.AccumulatedPoints)
	}
	if pts.CurrentTier != models.TierBronze {
		t.Errorf("nível = %s, esperado BRONZE após o estorno", pts.CurrentTier)
	}

	var count int64
	database.DB.Model(&models.Visit{}).Where("customer_id = ?", customer.ID).Count(&count)
	if count != 0 {
		t.Errorf("visitas restantes = %d, esperado 0", count)
	}
}

func TestDeleteVisit_WithoutStoreAlwaysForbidden(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")

	visit := models.Visit{CustomerID: customer.ID, PurchaseAmount: 10, VisitedAt: time.Now().UTC()}
	if err := database.DB.Create(&visit).Error; err != nil {
		t.Fatalf("visita sem loja: %v", err)
	}

	// nem admin exclui visita sem loja: loja vazia nunca está no
	// conjunto permitido
	resp := request(t, app, http.MethodDelete, fmt.Sprintf("/visitas/%d", visit.ID), "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, esperado 403", resp.StatusCode)
	}
}

func TestVisitReport_StatsAndFilters(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")
	seedVisit(t, customer.ID, 100, stores.Jabaquara)
	seedVisit(t, customer.ID, 300, stores.Jabaquara)
	seedVisit(t, customer.ID, 50, stores.Osasco)

	out := parseBody(t, request(t, app, http.MethodGet, "/relatorio/visitas", ""))
	stats := out["estatisticas"].(map[string]any)
	if stats["total_visitas"].(float64) != 3 {
		t.Errorf("total_visitas = %v, esperado 3", stats["total_visitas"])
	}
	if stats["valor_total"].(float64) != 450 {
		t.Errorf("valor_total = %v, esperado 450", stats["valor_total"])
	}
	if stats["valor_medio"].(float64) != 150 {
		t.Errorf("valor_medio = %v, esperado 150", stats["valor_medio"])
	}

	out = parseBody(t, request(t, app, http.MethodGet, "/relatorio/visitas?loja=jabaquara", ""))
	stats = out["estatisticas"].(map[string]any)
	if stats["total_visitas"].(float64) != 2 {
		t.Errorf("filtro por loja: total = %v, esperado 2", stats["total_visitas"])
	}

	resp := request(t, app, http.MethodGet, "/relatorio/visitas?data_inicio=not-a-date", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("data inválida: status = %d, esperado 400", resp.StatusCode)
	}
}

func TestExportVisitReport_XLSX(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")
	seedVisit(t, customer.ID, 100, stores.Jabaquara)

	resp := request(t, app, http.MethodGet, "/relatorio/visitas/export", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, esperado 200", resp.StatusCode)
	}
	ct := resp.Header.Get(fiber.HeaderContentType)
	if !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content-type = %q, esperado planilha xlsx", ct)
	}
	if cd := resp.Header.Get(fiber.HeaderContentDisposition); !strings.Contains(cd, ".xlsx") {
		t.Errorf("content-disposition = %q, esperado anexo .xlsx", cd)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ler corpo: %v", err)
	}
	if len(raw) == 0 {
		t.Error("planilha vazia")
	}
}

func TestGetCustomerPoints_Aggregate(t *testing.T) {
	app, _ := setupVisitsApp(t)
	customer := seedCustomer(t, "Joana", "11122233344")

	request(t, app, http.MethodPost, "/visitas",
		fmt.Sprintf(`{"cliente_id":%d,"valor_compra":400,"loja":"OSASCO"}`, customer.ID))
	request(t, app, http.MethodPost, "/visitas",
		fmt.Sprintf(`{"cliente_id":%d,"valor_compra":700,"loja":"OSASCO"}`, customer.ID))

	out := parseBody(t, request(t, app, http.MethodGet,
		fmt.Sprintf("/pontos/cliente/%d", customer.ID), ""))

	if out["total_visitas"].(float64) != 2 {
		t.Errorf("total_visitas = %v, esperado 2", out["total_visitas"])
	}
	if out["valor_total_compras"].(float64) != 1100 {
		t.Errorf("valor_total_compras = %v, esperado 1100", out["valor_total_compras"])
	}
	pts := out["pontos"].(map[string]any)
	if pts["pontos_acumulados"].(float64) != 1100 {
		t.Errorf("pontos_acumulados = %v, esperado 1100", pts["pontos_acumulados"])
	}
	if pts["nivel_atual"] != string(models.TierOuro) {
		t.Errorf("nivel_atual = %v, esperado OURO", pts["nivel_atual"])
	}
}

func TestCustomerEndpoints(t *testing.T) {
	app, _ := setupVisitsApp(t)

	resp := request(t, app, http.MethodPost, "/clientes",
		`{"nome":"Joana Silva","cpf":"111.222.333-44"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, esperado 201", resp.StatusCode)
	}
	created := parseBody(t, resp)
	if created["cpf"] != "11122233344" {
		t.Errorf("cpf = %v, esperado só dígitos", created["cpf"])
	}

	// CPF duplicado
	resp = request(t, app, http.MethodPost, "/clientes",
		`{"nome":"Outra","cpf":"11122233344"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cpf duplicado: status = %d, esperado 400", resp.StatusCode)
	}

	// CPF curto
	resp = request(t, app, http.MethodPost, "/clientes", `{"nome":"X","cpf":"123"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cpf curto: status = %d, esperado 400", resp.StatusCode)
	}

	// busca por CPF formatado
	resp = request(t, app, http.MethodGet, "/clientes/cpf/111.222.333-44", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("busca por cpf: status = %d, esperado 200", resp.StatusCode)
	}

	// autocomplete por nome
	raw, _ := io.ReadAll(request(t, app, http.MethodGet, "/clientes/buscar?q=joana", "").Body)
	var results []map[string]any
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("decodificar busca: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("busca = %d resultados, esperado 1", len(results))
	}

	// termo vazio devolve lista vazia
	raw, _ = io.ReadAll(request(t, app, http.MethodGet, "/clientes/buscar", "").Body)
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("decodificar busca vazia: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("busca vazia = %d resultados, esperado 0", len(results))
	}
}
