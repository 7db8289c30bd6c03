// Package ledger is the REST client for the external Ledger service, the
// authoritative balance and transaction store.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
)

// Client implements domain.Ledger over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a ledger client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.With().Str("client", "ledger").Logger(),
	}
}

func (c *Client) GetBalance(ctx context.Context, userID string) (domain.Balance, error) {
	var balance domain.Balance
	err := c.get(ctx, fmt.Sprintf("/users/%s/balance", userID), &balance)
	return balance, err
}

func (c *Client) GetPortfolio(ctx context.Context, userID string) (domain.Portfolio, error) {
	var portfolio domain.Portfolio
	err := c.get(ctx, fmt.Sprintf("/users/%s/portfolio", userID), &portfolio)
	return portfolio, err
}

func (c *Client) CreditAvailable(ctx context.Context, userID string, amount float64, reason string) error {
	body := map[string]interface{}{"amount": amount, "reason": reason}
	return c.post(ctx, fmt.Sprintf("/users/%s/credit", userID), body, nil)
}

func (c *Client) CreditStrategy(ctx context.Context, userID, strategyID string, amount float64, meta map[string]string) error {
	body := map[string]interface{}{"amount": amount, "meta": meta}
	return c.post(ctx, fmt.Sprintf("/users/%s/strategies/%s/credit", userID, strategyID), body, nil)
}

func (c *Client) DebitStrategy(ctx context.Context, userID, strategyID string, amount float64) error {
	body := map[string]interface{}{"amount": amount}
	return c.post(ctx, fmt.Sprintf("/users/%s/strategies/%s/debit", userID, strategyID), body, nil)
}

func (c *Client) Harvest(ctx context.Context, userID, strategyID string) (float64, error) {
	var resp struct {
		Harvested float64 `json:"harvested"`
	}
	err := c.post(ctx, fmt.Sprintf("/users/%s/strategies/%s/harvest", userID, strategyID), nil, &resp)
	return resp.Harvested, err
}

func (c *Client) AddTransaction(ctx context.Context, tx domain.Transaction) error {
	return c.post(ctx, fmt.Sprintf("/users/%s/transactions", tx.UserID), tx, nil)
}

func (c *Client) GetActiveStrategies(ctx context.Context, userID string) ([]domain.Strategy, error) {
	var strategies []domain.Strategy
	err := c.get(ctx, fmt.Sprintf("/users/%s/strategies", userID), &strategies)
	return strategies, err
}

func (c *Client) GetTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	err := c.get(ctx, fmt.Sprintf("/users/%s/transactions", userID), &transactions)
	return transactions, err
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.WrapExecutionError(domain.ErrKindInternal, "request build failed", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return domain.WrapExecutionError(domain.ErrKindInternal, "request encode failed", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return domain.WrapExecutionError(domain.ErrKindInternal, "request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "ledger unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ledgerError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "response decode failed", err)
		}
	}
	return nil
}

// ledgerError maps ledger HTTP failures to execution error kinds so the
// scheduler's retry machinery can classify them.
func ledgerError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := fmt.Sprintf("ledger returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))

	switch resp.StatusCode {
	case http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return domain.NewExecutionError(domain.ErrKindInsufficientFunds, message)
	case http.StatusNotFound:
		return domain.NewExecutionError(domain.ErrKindUnknownStrategy, message)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.NewExecutionError(domain.ErrKindLedgerUnavailable, message)
	default:
		return domain.NewExecutionError(domain.ErrKindInternal, message)
	}
}
