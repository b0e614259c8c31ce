package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/lifecycle"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
)

// ErrArtifactNotFound is returned when the sidecar has no artifact of the
// requested kind for a shipment yet.
var ErrArtifactNotFound = errors.New("nfe: artefato nao encontrado")

// Artifact kinds served by the sidecar.
const (
	ArtifactPDF = "pdf"
	ArtifactXML = "xml"
)

// NFeRequest is sent to the NF-e sidecar. The shipment travels with every
// derived field already computed; the sidecar issues the document on the
// first call and reports its status on the following ones.
type NFeRequest struct {
	Shipment *model.Shipment `json:"carregamento"`
}

// NFeResponse is the sidecar's view of the document.
type NFeResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Chave     string `json:"chave"`
	Protocolo string `json:"protocolo"`
	PDFURL    string `json:"pdf_url"`
	XMLURL    string `json:"xml_url"`
	Mensagem  string `json:"mensagem"`
}

// Artifact is an opaque rendered document streamed from the sidecar. The
// caller must close Body.
type Artifact struct {
	ContentType string
	Body        io.ReadCloser
}

// NFeClient is an HTTP client that delegates SEFAZ communication to the NF-e
// sidecar. Calls go through the breaker when one is set.
type NFeClient struct {
	sidecarURL string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewNFeClient(sidecarURL string, cb *CircuitBreaker) *NFeClient {
	return &NFeClient{
		sidecarURL: sidecarURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cb:         cb,
	}
}

// Breaker exposes the client's breaker for health reporting and the retry cron.
func (c *NFeClient) Breaker() *CircuitBreaker { return c.cb }

// Sync implements lifecycle.FiscalClient.
func (c *NFeClient) Sync(ctx context.Context, s *model.Shipment) (*lifecycle.Result, error) {
	if c.cb == nil {
		return c.sync(ctx, s)
	}
	return Run(c.cb, func() (*lifecycle.Result, error) { return c.sync(ctx, s) })
}

func (c *NFeClient) sync(ctx context.Context, s *model.Shipment) (*lifecycle.Result, error) {
	body, err := json.Marshal(NFeRequest{Shipment: s})
	if err != nil {
		return nil, fmt.Errorf("nfe: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/carregamentos/%s/nfe/sincronizar", c.sidecarURL, s.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("nfe: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nfe: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nfe: sidecar returned %d", resp.StatusCode)
	}

	var out NFeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("nfe: decode response: %w", err)
	}
	return &lifecycle.Result{
		ExternalID: out.ID,
		Status:     out.Status,
		AccessKey:  out.Chave,
		Protocol:   out.Protocolo,
		PDFURL:     out.PDFURL,
		XMLURL:     out.XMLURL,
		Message:    out.Mensagem,
	}, nil
}

// Artifact opens the rendered document of the given kind for streaming.
func (c *NFeClient) Artifact(ctx context.Context, id uuid.UUID, kind string) (*Artifact, error) {
	if kind != ArtifactPDF && kind != ArtifactXML {
		return nil, fmt.Errorf("nfe: tipo de artefato invalido %q", kind)
	}
	open := func() (*Artifact, error) { return c.artifact(ctx, id, kind) }
	if c.cb == nil {
		return open()
	}
	return Run(c.cb, open)
}

func (c *NFeClient) artifact(ctx context.Context, id uuid.UUID, kind string) (*Artifact, error) {
	url := fmt.Sprintf("%s/carregamentos/%s/nfe/%s", c.sidecarURL, id, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("nfe: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nfe: sidecar unreachable: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrArtifactNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("nfe: sidecar returned %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Artifact{ContentType: ct, Body: resp.Body}, nil
}
