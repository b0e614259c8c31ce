package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
)

// brasilAPICompany mirrors the fields we read from /api/cnpj/v1/{cnpj}.
type brasilAPICompany struct {
	CNPJ         string `json:"cnpj"`
	RazaoSocial  string `json:"razao_social"`
	NomeFantasia string `json:"nome_fantasia"`
	TipoLogr     string `json:"descricao_tipo_de_logradouro"`
	Logradouro   string `json:"logradouro"`
	Numero       string `json:"numero"`
	Complemento  string `json:"complemento"`
	Bairro       string `json:"bairro"`
	Municipio    string `json:"municipio"`
	UF           string `json:"uf"`
	CEP          string `json:"cep"`
}

// BrasilAPIClient resolves CNPJs against BrasilAPI.
type BrasilAPIClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewBrasilAPIClient(baseURL string, cb *CircuitBreaker) *BrasilAPIClient {
	return &BrasilAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}
}

func (c *BrasilAPIClient) Breaker() *CircuitBreaker { return c.cb }

// LookupCNPJ implements enrichment.TaxIDLookup. Unknown or malformed CNPJs
// yield enrichment.ErrNotFound, an answer without razao_social
// enrichment.ErrIncomplete.
func (c *BrasilAPIClient) LookupCNPJ(ctx context.Context, cnpj string) (*enrichment.LegalEntity, error) {
	cnpj = fiscal.OnlyDigits(cnpj)
	if len(cnpj) != fiscal.CNPJLength {
		return nil, enrichment.ErrNotFound
	}
	if c.cb == nil {
		return c.lookup(ctx, cnpj)
	}
	return Run(c.cb, func() (*enrichment.LegalEntity, error) { return c.lookup(ctx, cnpj) })
}

func (c *BrasilAPIClient) lookup(ctx context.Context, cnpj string) (*enrichment.LegalEntity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/cnpj/v1/"+cnpj, nil)
	if err != nil {
		return nil, fmt.Errorf("brasilapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brasilapi: unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, enrichment.ErrNotFound
	default:
		return nil, fmt.Errorf("brasilapi: returned %d", resp.StatusCode)
	}

	var co brasilAPICompany
	if err := json.NewDecoder(resp.Body).Decode(&co); err != nil {
		return nil, fmt.Errorf("brasilapi: decode response: %w", err)
	}

	street := strings.TrimSpace(co.Logradouro)
	if t := strings.TrimSpace(co.TipoLogr); t != "" && !strings.HasPrefix(strings.ToUpper(street), strings.ToUpper(t)) {
		street = t + " " + street
	}
	e := &enrichment.LegalEntity{
		TaxID:     cnpj,
		LegalName: strings.TrimSpace(co.RazaoSocial),
		TradeName: strings.TrimSpace(co.NomeFantasia),
		Address: enrichment.Address{
			Street:     street,
			Number:     strings.TrimSpace(co.Numero),
			Complement: strings.TrimSpace(co.Complemento),
			District:   strings.TrimSpace(co.Bairro),
			City:       strings.TrimSpace(co.Municipio),
			UF:         strings.ToUpper(strings.TrimSpace(co.UF)),
			PostalCode: fiscal.OnlyDigits(co.CEP),
		},
	}
	if !e.Complete() {
		return nil, enrichment.ErrIncomplete
	}
	return e, nil
}
