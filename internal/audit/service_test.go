package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/permissions"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuditDB(t *testing.T) {
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
}

func TestWriteLog(t *testing.T) {
	setupAuditDB(t)

	err := WriteLog(LogOptions{
		Identity:    &permissions.Identity{UserID: 7, Name: "Admin"},
		EntityType:  "usuario",
		EntityID:    3,
		Action:      models.AuditActionUpdate,
		Description: "Usuário atualizado: carla",
		Before:      map[string]any{"ativo": true},
		After:       map[string]any{"ativo": false},
	})
	if err != nil {
		t.Fatalf("WriteLog: %v", err)
	}

	var entry models.AuditLog
	if err := database.DB.First(&entry).Error; err != nil {
		t.Fatalf("carregar entrada: %v", err)
	}
	if entry.UserID != 7 || entry.UserName != "Admin" {
		t.Errorf("autor = %d/%q, esperado 7/Admin", entry.UserID, entry.UserName)
	}
	if entry.BeforeData != `{"ativo":true}` {
		t.Errorf("before = %q", entry.BeforeData)
	}
}

func TestWriteLog_NilIdentityAndPayloads(t *testing.T) {
	setupAuditDB(t)

	err := WriteLog(LogOptions{
		EntityType:  "usuario",
		EntityID:    1,
		Action:      models.AuditActionCreate,
		Description: "Seed inicial",
	})
	if err != nil {
		t.Fatalf("WriteLog: %v", err)
	}

	var entry models.AuditLog
	if err := database.DB.First(&entry).Error; err != nil {
		t.Fatalf("carregar entrada: %v", err)
	}
	if entry.BeforeData != "null" || entry.AfterData != "null" {
		t.Errorf("payloads nulos devem virar o literal null: %q / %q", entry.BeforeData, entry.AfterData)
	}
	if entry.UserID != 0 {
		t.Errorf("UserID = %d, esperado 0 sem identidade", entry.UserID)
	}
}

func TestListAuditLogs_Filters(t *testing.T) {
	setupAuditDB(t)

	seed := []models.AuditLog{
		{EntityType: "usuario", EntityID: 1, Action: models.AuditActionCreate, BeforeData: "null", AfterData: "null"},
		{EntityType: "usuario", EntityID: 2, Action: models.AuditActionDelete, BeforeData: "null", AfterData: "null"},
		{EntityType: "permissoes", EntityID: 1, Action: models.AuditActionUpdate, BeforeData: "null", AfterData: "null"},
	}
	for i := range seed {
		if err := database.DB.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	app := fiber.New()
	app.Get("/audit-logs", ListAuditLogsHandler())

	get := func(path string) map[string]any {
		t.Helper()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		if err != nil {
			t.Fatalf("requisição: %v", err)
		}
		raw, _ := io.ReadAll(resp.Body)
		var out map[string]any
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decodificar %q: %v", raw, err)
		}
		return out
	}

	if out := get("/audit-logs"); out["total"].(float64) != 3 {
		t.Errorf("sem filtro: total = %v, esperado 3", out["total"])
	}
	if out := get("/audit-logs?entity_type=usuario"); out["total"].(float64) != 2 {
		t.Errorf("entity_type: total = %v, esperado 2", out["total"])
	}
	if out := get("/audit-logs?entity_type=usuario&entity_id=2"); out["total"].(float64) != 1 {
		t.Errorf("entity_id: total = %v, esperado 1", out["total"])
	}
}
