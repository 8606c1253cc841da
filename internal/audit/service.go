package audit

import (
	"encoding/json"
	"fmt"

	"fidelidade-backend/internal/database"
	"fidelidade-backend/internal/models"
	"fidelidade-backend/internal/permissions"
)

type LogOptions struct {
	Identity    *permissions.Identity
	EntityType  string // ex.: "usuario", "permissoes"
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog grava uma entrada de auditoria. Before/After são
// serializados como JSON; nil vira o literal "null" (jsonb não aceita
// string vazia).
func WriteLog(opts LogOptions) error {
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}
	if opts.Identity != nil {
		entry.UserID = opts.Identity.UserID
		entry.UserName = opts.Identity.Name
	}

	if err := database.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("auditoria não pôde ser gravada: %w", err)
	}
	return nil
}
