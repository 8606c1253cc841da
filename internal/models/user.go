package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"fidelidade-backend/internal/stores"
)

type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleGerente   UserRole = "GERENTE"
	RoleAtendente UserRole = "ATENDENTE"
)

// AllRoles retorna os papéis válidos em ordem alfabética.
func AllRoles() []UserRole {
	return []UserRole{RoleAdmin, RoleAtendente, RoleGerente}
}

func ValidRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleGerente, RoleAtendente:
		return true
	}
	return false
}

// ActionFlags guarda o que o usuário pode fazer em uma loja.
type ActionFlags struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
}

// ResetToken é a entrada de recuperação de senha gravada dentro do blob
// de permissões, sob a chave reservada "reset". Uso único, com validade.
type ResetToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"exp"`
}

// PermissionSet é a forma tipada da coluna jsonb "permissoes".
// Chaves desconhecidas do JSON são descartadas na leitura; as chaves de
// loja são revalidadas contra o conjunto fechado na hora da checagem.
type PermissionSet struct {
	Lojas map[stores.Code]ActionFlags `json:"lojas,omitempty"`
	Reset *ResetToken                 `json:"reset,omitempty"`
}

// Public devolve só a parte exposta a clientes (sem o token de reset).
func (p PermissionSet) Public() PermissionSet {
	return PermissionSet{Lojas: p.Lojas}
}

func (p PermissionSet) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PermissionSet) Scan(value any) error {
	if value == nil {
		*p = PermissionSet{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("permissoes: tipo de coluna inesperado")
	}
	if len(raw) == 0 {
		*p = PermissionSet{}
		return nil
	}
	return json.Unmarshal(raw, p)
}

type User struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Name         string        `gorm:"column:nome;size:120;not null" json:"nome"`
	Username     string        `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email        string        `gorm:"size:255" json:"email"`
	PasswordHash string        `gorm:"size:255;not null" json:"-"`
	Role         UserRole      `gorm:"size:20;not null;default:'ATENDENTE'" json:"role"`
	Permissions  PermissionSet `gorm:"type:jsonb;column:permissoes" json:"-"`
	Active       bool          `gorm:"not null" json:"ativo"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
