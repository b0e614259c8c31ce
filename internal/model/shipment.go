package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shipment is one truck loading, from scheduling to the optional NF-e.
// Modo: "interno" | "transferencia" | "venda"
// Derived columns (net and discounted weights, CFOP) are stored as computed
// by the reducer; nothing recomputes them on read.
type Shipment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ScheduledAt time.Time `gorm:"not null;index" json:"agendado_em"`
	Mode        string    `gorm:"type:varchar(20);not null;default:'interno'" json:"modo"`

	Plate          string `gorm:"type:varchar(10)" json:"placa"`
	DriverName     string `json:"motorista"`
	DriverDocument string `gorm:"type:varchar(14)" json:"documento_motorista"`

	FarmID          *uuid.UUID          `gorm:"type:uuid;index" json:"fazenda_id"`
	FarmName        string              `json:"fazenda"`
	FieldName       string              `json:"talhao"`
	Product         string              `json:"produto"`
	Variety         string              `json:"variedade"`
	Quantity        decimal.NullDecimal `gorm:"type:numeric" json:"quantidade"`
	Unit            string              `gorm:"type:varchar(10)" json:"unidade"`
	WarehouseID     *uuid.UUID          `gorm:"type:uuid;index" json:"armazem_id"`
	DestinationName string              `json:"destino"`
	Notes           string              `json:"observacoes"`

	Weighing Weighing       `gorm:"embedded;embeddedPrefix:pesagem_" json:"pesagem"`
	Fiscal   FiscalData     `gorm:"embedded;embeddedPrefix:fiscal_" json:"fiscal"`
	Document FiscalDocument `gorm:"embedded;embeddedPrefix:documento_" json:"documento"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"criado_por,omitempty"`
	CreatedAt time.Time  `json:"criado_em"`
	UpdatedAt time.Time  `json:"atualizado_em"`
}

func (Shipment) TableName() string { return "carregamentos" }

// Weighing holds scale readings, lab measurements and the three discount
// outcomes (farm policy, warehouse policy, comparison policy).
type Weighing struct {
	Gross decimal.NullDecimal `gorm:"type:numeric" json:"peso_bruto"`
	Tare  decimal.NullDecimal `gorm:"type:numeric" json:"tara"`
	Net   decimal.NullDecimal `gorm:"type:numeric" json:"peso_liquido"`

	Moisture   decimal.NullDecimal `gorm:"type:numeric" json:"umidade"`
	Impurities decimal.NullDecimal `gorm:"type:numeric" json:"impureza"`

	// farm's own triplet, editable
	RefMoisture    decimal.Decimal     `gorm:"type:numeric;not null" json:"umidade_referencia"`
	ShrinkFactor   decimal.Decimal     `gorm:"type:numeric;not null" json:"fator_quebra"`
	RefImpurities  decimal.Decimal     `gorm:"type:numeric;not null" json:"impureza_referencia"`
	FarmDiscounted decimal.NullDecimal `gorm:"type:numeric" json:"peso_descontado_fazenda"`

	// snapshot of the selected warehouse's triplet
	WarehouseRefMoisture   decimal.NullDecimal `gorm:"type:numeric" json:"armazem_umidade_referencia"`
	WarehouseShrinkFactor  decimal.NullDecimal `gorm:"type:numeric" json:"armazem_fator_quebra"`
	WarehouseRefImpurities decimal.NullDecimal `gorm:"type:numeric" json:"armazem_impureza_referencia"`
	WarehouseDiscounted    decimal.NullDecimal `gorm:"type:numeric" json:"peso_descontado_armazem"`

	// comparison measurement and triplet, transfer only
	CompanyMoisture      decimal.NullDecimal `gorm:"type:numeric" json:"empresa_umidade"`
	CompanyImpurities    decimal.NullDecimal `gorm:"type:numeric" json:"empresa_impureza"`
	CompanyRefMoisture   decimal.NullDecimal `gorm:"type:numeric" json:"empresa_umidade_referencia"`
	CompanyShrinkFactor  decimal.NullDecimal `gorm:"type:numeric" json:"empresa_fator_quebra"`
	CompanyRefImpurities decimal.NullDecimal `gorm:"type:numeric" json:"empresa_impureza_referencia"`
	CompanyDiscounted    decimal.NullDecimal `gorm:"type:numeric" json:"peso_descontado_empresa"`

	FinalWeight decimal.NullDecimal `gorm:"type:numeric" json:"peso_final"`
}

// FiscalData is the NF-e payload prepared on the shipment.
type FiscalData struct {
	Nature               string    `json:"natureza_operacao"`
	CFOP                 string    `gorm:"column:cfop;type:varchar(4)" json:"cfop"`
	Issuer               Party     `gorm:"embedded;embeddedPrefix:emitente_" json:"emitente"`
	Recipient            Recipient `gorm:"embedded;embeddedPrefix:destinatario_" json:"destinatario"`
	Carrier              Carrier   `gorm:"embedded;embeddedPrefix:transportador_" json:"transportador"`
	FreightPayer         string    `gorm:"type:varchar(1)" json:"modalidade_frete"`
	PaymentCode          string    `gorm:"type:varchar(2)" json:"forma_pagamento"`
	HasTransportDocument bool      `gorm:"not null;default:false" json:"possui_cte"`
}

// Recipient adds the state-registration indicator to a Party.
// IndicadorIE: "1" contribuinte | "2" isento | "9" nao contribuinte
type Recipient struct {
	Party
	IEIndicator   string `gorm:"type:varchar(1)" json:"indicador_ie"`
	FinalConsumer bool   `gorm:"not null;default:false" json:"consumidor_final"`
	Email         string `json:"email"`
}

type Carrier struct {
	Name  string `json:"nome"`
	TaxID string `gorm:"type:varchar(14)" json:"cnpj_cpf"`
	Plate string `gorm:"type:varchar(10)" json:"placa"`
	UF    string `gorm:"type:char(2)" json:"uf"`
}

// FiscalDocument mirrors the external NF-e.
// Status: "nenhum" | "pendente" | "autorizado" | "erro"
type FiscalDocument struct {
	ExternalID string     `json:"referencia_externa"`
	Status     string     `gorm:"type:varchar(20);not null;default:'nenhum';index" json:"status"`
	AccessKey  string     `gorm:"type:varchar(44)" json:"chave_acesso"`
	Protocol   string     `json:"protocolo"`
	PDFURL     string     `gorm:"column:pdf_url" json:"pdf_url"`
	XMLURL     string     `gorm:"column:xml_url" json:"xml_url"`
	LastSyncAt *time.Time `json:"ultima_sincronizacao"`
	// retry fields used by the sync cron
	LastError   *string    `json:"ultimo_erro"`
	RetryCount  int        `gorm:"not null;default:0" json:"-"`
	NextRetryAt *time.Time `json:"-"`
}
