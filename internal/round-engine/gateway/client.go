package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
)

// TransferStatus é o estado de uma transferência na rede externa.
type TransferStatus string

const (
	StatusPending   TransferStatus = "pending"
	StatusConfirmed TransferStatus = "confirmed"
	StatusFailed    TransferStatus = "failed"
)

// Client fala com o gateway de transferência de valor (chain-simulator em
// local). Verificação na admissão, submissão e poll no disbursement.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

type verifyResponse struct {
	Confirmed bool   `json:"confirmed"`
	Amount    int64  `json:"amount"`
	To        string `json:"to"`
}

// VerifyTransfer consulta a prova de uma transferência de entrada.
// Timeout do client vale como o timeout de verificação: estourou, a aposta
// é rejeitada sem admissão parcial.
func (c *Client) VerifyTransfer(ctx context.Context, proof string) (engine.TransferInfo, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/transfers/"+proof+"/verify", nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return engine.TransferInfo{}, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return engine.TransferInfo{}, fmt.Errorf("gateway verify http %d", res.StatusCode)
	}
	var out verifyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return engine.TransferInfo{}, err
	}
	return engine.TransferInfo{Confirmed: out.Confirmed, Amount: out.Amount, To: out.To}, nil
}

type submitRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type submitResponse struct {
	Proof  string `json:"proof"`
	Status string `json:"status"`
}

// SubmitTransfer pede a transferência do pool custodial pra conta destino e
// retorna a prova; a liquidação é assíncrona (poll com QueryStatus).
func (c *Client) SubmitTransfer(ctx context.Context, account string, amount int64) (string, error) {
	body, _ := json.Marshal(submitRequest{Account: account, Amount: amount})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transfers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("gateway submit http %d", res.StatusCode)
	}
	var out submitResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Proof, nil
}

type statusResponse struct {
	Proof  string `json:"proof"`
	Status string `json:"status"`
}

func (c *Client) QueryStatus(ctx context.Context, proof string) (TransferStatus, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/transfers/"+proof, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("gateway status http %d", res.StatusCode)
	}
	var out statusResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return TransferStatus(out.Status), nil
}
