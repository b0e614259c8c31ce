package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by lookups when the registry has no entry.
	ErrNotFound = errors.New("registro nao encontrado")
	// ErrIncomplete is a 200 answer missing the fields a record needs. It
	// wraps ErrNotFound: callers treat it as a miss, not an outage.
	ErrIncomplete = fmt.Errorf("%w: resposta incompleta", ErrNotFound)
)

// Address as returned by CNPJ and CEP registries.
type Address struct {
	Street     string `json:"logradouro"`
	Number     string `json:"numero"`
	Complement string `json:"complemento"`
	District   string `json:"bairro"`
	City       string `json:"municipio"`
	UF         string `json:"uf"`
	PostalCode string `json:"cep"`
}

// Complete reports whether the answer carries a city and UF.
func (a *Address) Complete() bool {
	return a != nil && strings.TrimSpace(a.City) != "" && strings.TrimSpace(a.UF) != ""
}

// LegalEntity is the CNPJ registry answer.
type LegalEntity struct {
	TaxID     string  `json:"cnpj"`
	LegalName string  `json:"razao_social"`
	TradeName string  `json:"nome_fantasia"`
	Address   Address `json:"endereco"`
}

// Complete reports whether the answer names the company.
func (e *LegalEntity) Complete() bool {
	return e != nil && strings.TrimSpace(e.LegalName) != ""
}

type TaxIDLookup interface {
	LookupCNPJ(ctx context.Context, cnpj string) (*LegalEntity, error)
}

type PostalCodeLookup interface {
	LookupCEP(ctx context.Context, cep string) (*Address, error)
}

// Notice is a non-blocking advisory shown next to a field, typically
// "preencha manualmente" after a failed lookup.
type Notice struct {
	Field   string    `json:"campo"`
	Message string    `json:"mensagem"`
	At      time.Time `json:"em"`
}

const (
	FieldRecipientTaxID      = "destinatario.cnpj"
	FieldRecipientPostalCode = "destinatario.endereco.cep"
)

// NoticeFor builds the advisory for a failed lookup.
func NoticeFor(field string, err error) Notice {
	msg := "Consulta indisponivel no momento, preencha os dados manualmente"
	switch {
	case errors.Is(err, ErrIncomplete):
		msg = "Cadastro incompleto na consulta, preencha os dados manualmente"
	case errors.Is(err, ErrNotFound):
		msg = "Cadastro nao encontrado, preencha os dados manualmente"
	}
	return Notice{Field: field, Message: msg, At: time.Now()}
}
