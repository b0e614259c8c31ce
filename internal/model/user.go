package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an operator of the loading workflow.
// Papel: "proprietario" | "gerente" | "administrador" | "operador" | "balanceiro"
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null"`
	// Permissions only matter for non-elevated roles
	Permissions []string `gorm:"type:jsonb;serializer:json"`
	Active      bool     `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string { return "usuarios" }
