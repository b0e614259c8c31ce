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

type viaCEPAddress struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	// ViaCEP answers {"erro": true} (older) or {"erro": "true"} for unknown CEPs.
	Erro any `json:"erro"`
}

func (a viaCEPAddress) missing() bool {
	switch v := a.Erro.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// ViaCEPClient resolves postal codes against ViaCEP.
type ViaCEPClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewViaCEPClient(baseURL string, cb *CircuitBreaker) *ViaCEPClient {
	return &ViaCEPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}
}

func (c *ViaCEPClient) Breaker() *CircuitBreaker { return c.cb }

// LookupCEP implements enrichment.PostalCodeLookup. An answer without city
// or UF yields enrichment.ErrIncomplete.
func (c *ViaCEPClient) LookupCEP(ctx context.Context, cep string) (*enrichment.Address, error) {
	cep = fiscal.OnlyDigits(cep)
	if len(cep) != fiscal.CEPLength {
		return nil, enrichment.ErrNotFound
	}
	if c.cb == nil {
		return c.lookup(ctx, cep)
	}
	return Run(c.cb, func() (*enrichment.Address, error) { return c.lookup(ctx, cep) })
}

func (c *ViaCEPClient) lookup(ctx context.Context, cep string) (*enrichment.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ws/"+cep+"/json/", nil)
	if err != nil {
		return nil, fmt.Errorf("viacep: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viacep: unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusNotFound:
		return nil, enrichment.ErrNotFound
	default:
		return nil, fmt.Errorf("viacep: returned %d", resp.StatusCode)
	}

	var a viaCEPAddress
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, fmt.Errorf("viacep: decode response: %w", err)
	}
	if a.missing() {
		return nil, enrichment.ErrNotFound
	}
	addr := &enrichment.Address{
		Street:     strings.TrimSpace(a.Logradouro),
		Complement: strings.TrimSpace(a.Complemento),
		District:   strings.TrimSpace(a.Bairro),
		City:       strings.TrimSpace(a.Localidade),
		UF:         strings.ToUpper(strings.TrimSpace(a.UF)),
		PostalCode: cep,
	}
	if !addr.Complete() {
		return nil, enrichment.ErrIncomplete
	}
	return addr, nil
}
