package database

import (
	"errors"
	"log"

	"fidelidade-backend/internal/config"
	"fidelidade-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdmin garante o usuário ADMIN inicial. Idempotente: só cria
// quando ainda não existe um usuário "admin".
func SeedAdmin(cfg *config.Config) {
	var user models.User
	err := DB.Where("username = ?", "admin").First(&user).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("Falha ao consultar usuário admin: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Falha ao gerar hash da senha do admin: %v", err)
	}

	admin := models.User{
		Name:         "Administrador",
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Fatalf("Falha ao criar o usuário admin: %v", err)
	}
	log.Println("Usuário admin criado.")
}
