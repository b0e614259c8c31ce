package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Farm is an issuing establishment. Its Party is mirrored verbatim into the
// issuer block of a shipment whenever the farm selection changes.
type Farm struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name string    `gorm:"not null" json:"nome"`

	Party `gorm:"embedded"`

	Active bool `gorm:"not null;default:true" json:"ativa"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Farm) TableName() string { return "fazendas" }

// Warehouse is a storage recipient with its own discount triplet.
type Warehouse struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name string    `gorm:"not null" json:"nome"`

	Party `gorm:"embedded"`

	Email string `json:"email"`

	RefMoisture   decimal.Decimal `gorm:"type:numeric;not null" json:"umidade_referencia"`
	ShrinkFactor  decimal.Decimal `gorm:"type:numeric;not null" json:"fator_quebra"`
	RefImpurities decimal.Decimal `gorm:"type:numeric;not null" json:"impureza_referencia"`

	Active    bool      `gorm:"not null;default:true" json:"ativo"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Warehouse) TableName() string { return "armazens" }
