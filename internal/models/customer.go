package models

import "time"

type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:nome;size:120;not null" json:"nome"`
	CPF       string    `gorm:"size:11;uniqueIndex;not null" json:"cpf"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Visits []Visit `json:"-"`
	Points *Points `json:"-"`
}
