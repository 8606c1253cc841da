package models

import (
	"time"

	"fidelidade-backend/internal/stores"
)

// Visit registra uma compra do cliente. Store é o código canônico da
// loja, ou nil quando a visita foi lançada sem loja.
type Visit struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	CustomerID     uint         `gorm:"index;not null" json:"cliente_id"`
	Customer       *Customer    `json:"-"`
	PurchaseAmount float64      `gorm:"not null" json:"valor_compra"`
	Store          *stores.Code `gorm:"size:20;index" json:"loja"`
	VisitedAt      time.Time    `gorm:"index;not null" json:"data_visita"`
	CreatedAt      time.Time    `json:"-"`
	UpdatedAt      time.Time    `json:"-"`
}
