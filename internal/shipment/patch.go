package shipment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Patch is a partial update of a loading record. Nil fields are untouched.
// JSON names follow the persisted payload so clients can send back what they
// received.
type Patch struct {
	Mode *string `json:"modo,omitempty"`

	ScheduledAt     *time.Time       `json:"agendado_em,omitempty"`
	Plate           *string          `json:"placa,omitempty"`
	DriverName      *string          `json:"motorista,omitempty"`
	DriverDocument  *string          `json:"documento_motorista,omitempty"`
	FarmID          *uuid.UUID       `json:"fazenda_id,omitempty"`
	FieldName       *string          `json:"talhao,omitempty"`
	Product         *string          `json:"produto,omitempty"`
	Variety         *string          `json:"variedade,omitempty"`
	Quantity        *decimal.Decimal `json:"quantidade,omitempty"`
	Unit            *string          `json:"unidade,omitempty"`
	WarehouseID     *uuid.UUID       `json:"armazem_id,omitempty"`
	DestinationName *string          `json:"destino,omitempty"`
	Notes           *string          `json:"observacoes,omitempty"`

	Weighing *WeighingPatch `json:"pesagem,omitempty"`
	Fiscal   *FiscalPatch   `json:"fiscal,omitempty"`
}

type WeighingPatch struct {
	Gross       *decimal.Decimal `json:"peso_bruto,omitempty"`
	Tare        *decimal.Decimal `json:"tara,omitempty"`
	FinalWeight *decimal.Decimal `json:"peso_final,omitempty"`

	Moisture          *decimal.Decimal `json:"umidade,omitempty"`
	Impurities        *decimal.Decimal `json:"impureza,omitempty"`
	CompanyMoisture   *decimal.Decimal `json:"empresa_umidade,omitempty"`
	CompanyImpurities *decimal.Decimal `json:"empresa_impureza,omitempty"`

	RefMoisture          *decimal.Decimal `json:"umidade_referencia,omitempty"`
	ShrinkFactor         *decimal.Decimal `json:"fator_quebra,omitempty"`
	RefImpurities        *decimal.Decimal `json:"impureza_referencia,omitempty"`
	CompanyRefMoisture   *decimal.Decimal `json:"empresa_umidade_referencia,omitempty"`
	CompanyShrinkFactor  *decimal.Decimal `json:"empresa_fator_quebra,omitempty"`
	CompanyRefImpurities *decimal.Decimal `json:"empresa_impureza_referencia,omitempty"`
}

type FiscalPatch struct {
	Nature       *string `json:"natureza_operacao,omitempty"`
	CFOP         *string `json:"cfop,omitempty"`
	FreightPayer *string `json:"modalidade_frete,omitempty"`
	PaymentCode  *string `json:"forma_pagamento,omitempty"`

	HasTransportDocument *bool           `json:"possui_cte,omitempty"`
	Recipient            *RecipientPatch `json:"destinatario,omitempty"`
	Carrier              *CarrierPatch   `json:"transportador,omitempty"`
}

type RecipientPatch struct {
	TaxID             *string `json:"cnpj,omitempty"`
	LegalName         *string `json:"razao_social,omitempty"`
	TradeName         *string `json:"nome_fantasia,omitempty"`
	StateRegistration *string `json:"inscricao_estadual,omitempty"`
	Street            *string `json:"logradouro,omitempty"`
	Number            *string `json:"numero,omitempty"`
	Complement        *string `json:"complemento,omitempty"`
	District          *string `json:"bairro,omitempty"`
	City              *string `json:"municipio,omitempty"`
	UF                *string `json:"uf,omitempty"`
	PostalCode        *string `json:"cep,omitempty"`
	IEIndicator       *string `json:"indicador_ie,omitempty"`
	FinalConsumer     *bool   `json:"consumidor_final,omitempty"`
	Email             *string `json:"email,omitempty"`
}

type CarrierPatch struct {
	Name  *string `json:"nome,omitempty"`
	TaxID *string `json:"cnpj_cpf,omitempty"`
	Plate *string `json:"placa,omitempty"`
	UF    *string `json:"uf,omitempty"`
}

// Outcome reports what Apply did. Denied lists the paths silently dropped
// because their section is locked for the caller.
type Outcome struct {
	Changed bool     `json:"alterado"`
	Denied  []string `json:"negados,omitempty"`
}
