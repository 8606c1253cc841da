package models

import "time"

type Tier string

const (
	TierBronze Tier = "BRONZE"
	TierPrata  Tier = "PRATA"
	TierOuro   Tier = "OURO"
)

// Points é o saldo de fidelidade do cliente (um registro por cliente,
// criado na primeira visita ou consulta). CurrentTier é sempre derivado
// de AccumulatedPoints; nunca é gravado de forma independente.
type Points struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CustomerID        uint      `gorm:"uniqueIndex;not null" json:"cliente_id"`
	AccumulatedPoints int       `gorm:"not null;default:0" json:"pontos_acumulados"`
	CurrentTier       Tier      `gorm:"size:10;not null;default:'BRONZE'" json:"nivel_atual"`
	UpdatedAt         time.Time `json:"data_atualizacao"`
}
