// Package alpaca is a thin client for the Alpaca paper-trading API.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://paper-api.alpaca.markets"
	defaultTimeout = 30 * time.Second
)

// Client communicates with the Alpaca trading API. All endpoints are scoped
// to the paper-trading account identified by the key pair.
type Client struct {
	keyID      string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given API key pair.
func NewClient(keyID, secretKey string) *Client {
	return &Client{
		keyID:     keyID,
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(keyID, secretKey, baseURL string) *Client {
	c := NewClient(keyID, secretKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Account is a snapshot of the trading account.
// Alpaca returns monetary values as decimal strings; they are kept as-is.
type Account struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	Cash           string `json:"cash"`
	PortfolioValue string `json:"portfolio_value"`
	BuyingPower    string `json:"buying_power"`
	Equity         string `json:"equity"`
}

// Position is one open position.
type Position struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	Side           string `json:"side"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	MarketValue    string `json:"market_value"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

// Order is an order descriptor as returned by the API.
type Order struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	TimeInForce    string `json:"time_in_force"`
	LimitPrice     string `json:"limit_price,omitempty"`
	StopPrice      string `json:"stop_price,omitempty"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price,omitempty"`
	SubmittedAt    string `json:"submitted_at"`
}

// OrderRequest is the body for POST /v2/orders.
type OrderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`          // "buy" or "sell"
	Type        string `json:"type"`          // "market", "limit", "stop", "stop_limit"
	TimeInForce string `json:"time_in_force"` // "day", "gtc", ...
	LimitPrice  string `json:"limit_price,omitempty"`
	StopPrice   string `json:"stop_price,omitempty"`
}

// apiError mirrors the API's error body.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PlaceOrder submits an order and returns its descriptor.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/v2/orders", req, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// GetAccount returns the account snapshot.
func (c *Client) GetAccount(ctx context.Context) (Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, "/v2/account", nil, &acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// GetPositions returns all open positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var positions []Position
	if err := c.do(ctx, http.MethodGet, "/v2/positions", nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// ListOrders returns orders filtered by status ("open", "closed", "all").
func (c *Client) ListOrders(ctx context.Context, status string, limit int) ([]Order, error) {
	if status == "" {
		status = "open"
	}
	if limit <= 0 {
		limit = 50
	}
	path := "/v2/orders?status=" + url.QueryEscape(status) + "&limit=" + strconv.Itoa(limit)
	var orders []Order
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CancelOrder cancels an order by id.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v2/orders/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.Message != "" {
			return fmt.Errorf("alpaca: HTTP %d: %s", resp.StatusCode, ae.Message)
		}
		return fmt.Errorf("alpaca: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
