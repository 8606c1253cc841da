package points

import (
	"errors"
	"time"

	"fidelidade-backend/internal/models"

	"gorm.io/gorm"
)

// Fator padrão: 1 ponto por unidade monetária gasta.
const DefaultFactor = 1.0

const (
	ouroThreshold  = 1000
	prataThreshold = 500
)

// Engine aplica a regra de acúmulo sobre o saldo de pontos do cliente.
type Engine struct {
	Factor float64
}

func NewEngine(factor float64) *Engine {
	if factor <= 0 {
		factor = DefaultFactor
	}
	return &Engine{Factor: factor}
}

// TierFor devolve o nível implícito pelo total de pontos.
func TierFor(pts int) models.Tier {
	switch {
	case pts >= ouroThreshold:
		return models.TierOuro
	case pts >= prataThreshold:
		return models.TierPrata
	default:
		return models.TierBronze
	}
}

// ApplyDelta soma um delta assinado ao saldo do cliente e recalcula o
// nível. Os três pontos de chamada usam a mesma operação: criação de
// visita passa +valor, edição passa (novo - antigo) e exclusão passa
// -valor. Deve rodar dentro da transação que grava a visita.
//
// O saldo é um razão contábil: deltas negativos repetidos podem levá-lo
// abaixo de zero, sem piso.
func (e *Engine) ApplyDelta(tx *gorm.DB, customerID uint, amountDelta float64) (int, *models.Points, error) {
	gained := int(amountDelta * e.Factor)

	var pts models.Points
	err := tx.Where("customer_id = ?", customerID).First(&pts).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pts = models.Points{CustomerID: customerID, CurrentTier: models.TierBronze}
	} else if err != nil {
		return 0, nil, err
	}

	pts.AccumulatedPoints += gained
	pts.CurrentTier = TierFor(pts.AccumulatedPoints)
	pts.UpdatedAt = time.Now().UTC()

	if err := tx.Save(&pts).Error; err != nil {
		return 0, nil, err
	}
	return gained, &pts, nil
}

// Lookup devolve o registro de pontos do cliente, criando-o zerado na
// primeira consulta.
func Lookup(tx *gorm.DB, customerID uint) (*models.Points, error) {
	var pts models.Points
	err := tx.Where("customer_id = ?", customerID).First(&pts).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pts = models.Points{CustomerID: customerID, CurrentTier: models.TierBronze, UpdatedAt: time.Now().UTC()}
		if err := tx.Create(&pts).Error; err != nil {
			return nil, err
		}
		return &pts, nil
	}
	if err != nil {
		return nil, err
	}
	return &pts, nil
}
