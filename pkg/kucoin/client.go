// Package kucoin is a minimal KuCoin spot REST binding covering the
// endpoints the trading engine consumes: symbol list, 24h statistics,
// candles, market orders, and the order book of the account.
//
// Requests are signed per the KC-API v2 scheme: the signature is the
// base64 HMAC-SHA256 of timestamp+method+endpoint+body, and the
// passphrase header is itself HMAC-signed.
package kucoin

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"reversal-traderv1/internal/model"
)

const defaultBaseURL = "https://api.kucoin.com"

// Config holds API credentials and client options.
type Config struct {
	Key        string
	Secret     string
	Passphrase string
	BaseURL    string        // default: https://api.kucoin.com
	Timeout    time.Duration // default: 10s
}

// Client implements model.Exchange against the KuCoin spot REST API.
type Client struct {
	key        string
	secret     string
	passphrase string
	baseURL    string
	httpClient *http.Client
}

var _ model.Exchange = (*Client)(nil)

// New creates a client. Credentials are only required for the private
// endpoints (orders); market data works without them.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		key:        cfg.Key,
		secret:     cfg.Secret,
		passphrase: cfg.Passphrase,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the common KuCoin response wrapper.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// do performs one signed request and decodes the data payload into out.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	path := endpoint
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, method, path, bodyBytes)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s %s: status %d: decode envelope: %w", method, endpoint, resp.StatusCode, err)
	}
	if env.Code != "200000" {
		return &model.ExchangeError{Code: env.Code, Message: env.Msg}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, endpoint, err)
		}
	}
	return nil
}

// sign attaches the KC-API v2 authentication headers.
func (c *Client) sign(req *http.Request, method, path string, body []byte) {
	if c.key == "" {
		return
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	payload := ts + method + path + string(body)

	req.Header.Set("KC-API-KEY", c.key)
	req.Header.Set("KC-API-SIGN", hmacB64(c.secret, payload))
	req.Header.Set("KC-API-TIMESTAMP", ts)
	req.Header.Set("KC-API-PASSPHRASE", hmacB64(c.secret, c.passphrase))
	req.Header.Set("KC-API-KEY-VERSION", "2")
}

func hmacB64(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ListSymbols returns the tradable instruments for a market group.
func (c *Client) ListSymbols(ctx context.Context, market string) ([]model.SymbolDescriptor, error) {
	query := url.Values{}
	if market != "" {
		query.Set("market", market)
	}
	var data []struct {
		Symbol        string `json:"symbol"`
		BaseCurrency  string `json:"baseCurrency"`
		QuoteCurrency string `json:"quoteCurrency"`
		EnableTrading bool   `json:"enableTrading"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/symbols", query, nil, &data); err != nil {
		return nil, err
	}
	out := make([]model.SymbolDescriptor, len(data))
	for i, d := range data {
		out[i] = model.SymbolDescriptor{
			Symbol:         d.Symbol,
			BaseCurrency:   d.BaseCurrency,
			QuoteCurrency:  d.QuoteCurrency,
			TradingEnabled: d.EnableTrading,
		}
	}
	return out, nil
}

// Get24hStats returns the rolling 24h statistics for one symbol.
func (c *Client) Get24hStats(ctx context.Context, symbol string) (model.Stats, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	var data struct {
		Time       int64  `json:"time"` // ms
		Symbol     string `json:"symbol"`
		Last       string `json:"last"`
		VolValue   string `json:"volValue"`
		ChangeRate string `json:"changeRate"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/stats", query, nil, &data); err != nil {
		return model.Stats{}, err
	}
	st := model.Stats{
		Symbol:      symbol,
		LastPrice:   parseDecimal(data.Last),
		VolumeQuote: parseDecimal(data.VolValue),
		ChangeRate:  parseDecimal(data.ChangeRate),
	}
	if data.Time > 0 {
		st.CapturedAt = time.UnixMilli(data.Time)
	}
	return st, nil
}

// GetCandles returns candles ascending by time. The API delivers newest
// first, so the result is reversed before returning.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf model.Timeframe, startAt int64) ([]model.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("type", string(tf))
	if startAt > 0 {
		query.Set("startAt", strconv.FormatInt(startAt, 10))
	}
	// Rows are [time, open, close, high, low, volume, turnover] strings.
	var data [][]string
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/candles", query, nil, &data); err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(data))
	for i := len(data) - 1; i >= 0; i-- {
		row := data[i]
		if len(row) < 5 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, model.Candle{
			Time:  ts,
			Open:  parseFloat(row[1]),
			Close: parseFloat(row[2]),
			High:  parseFloat(row[3]),
			Low:   parseFloat(row[4]),
		})
	}
	return out, nil
}

// PlaceMarketOrder submits a market order. Buys are sized in quote funds,
// sells in base size, matching the spec carried in OrderSpec.
func (c *Client) PlaceMarketOrder(ctx context.Context, clientOid string, side model.Side, symbol string, spec model.OrderSpec) (string, error) {
	body := map[string]string{
		"clientOid": clientOid,
		"side":      string(side),
		"symbol":    symbol,
		"type":      "market",
	}
	if !spec.Funds.IsZero() {
		body["funds"] = spec.Funds.String()
	} else {
		body["size"] = spec.Size.String()
	}

	var data struct {
		OrderID string `json:"orderId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", nil, body, &data); err != nil {
		return "", err
	}
	return data.OrderID, nil
}

// ListOrders returns active and recently done orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	active, err := c.listOrders(ctx, "active")
	if err != nil {
		return nil, err
	}
	done, err := c.listOrders(ctx, "done")
	if err != nil {
		return nil, err
	}
	return append(active, done...), nil
}

func (c *Client) listOrders(ctx context.Context, status string) ([]model.Order, error) {
	query := url.Values{}
	query.Set("status", status)
	var data struct {
		Items []struct {
			ID        string `json:"id"`
			Symbol    string `json:"symbol"`
			Side      string `json:"side"`
			DealSize  string `json:"dealSize"`
			IsActive  bool   `json:"isActive"`
			CreatedAt int64  `json:"createdAt"` // ms
		} `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders", query, nil, &data); err != nil {
		return nil, err
	}

	out := make([]model.Order, len(data.Items))
	for i, it := range data.Items {
		out[i] = model.Order{
			ID:        it.ID,
			Symbol:    it.Symbol,
			Side:      model.Side(it.Side),
			IsActive:  it.IsActive,
			DealSize:  parseDecimal(it.DealSize),
			CreatedAt: time.UnixMilli(it.CreatedAt),
		}
	}
	return out, nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
