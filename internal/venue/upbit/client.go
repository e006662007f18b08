// Package upbit implements the Upbit exchange REST API for order placement
// and account queries. Requests are authenticated with a JWT carrying the
// access key and a SHA512 hash of the query string.
package upbit

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/seoulquant/kimparb/internal/domain"
)

// Client is the REST client for the Upbit exchange API. It implements
// domain.OrderPlacer.
type Client struct {
	baseURL    string
	accessKey  string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a new Upbit REST client.
//
// baseURL is the API root, e.g. "https://api.upbit.com".
func NewClient(baseURL, accessKey, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ domain.OrderPlacer = (*Client)(nil)

// Place submits an order. Upbit market buys are quoted in KRW notional
// (ord_type "price"); market sells and all limit orders are quoted in volume.
func (c *Client) Place(ctx context.Context, req domain.OrderRequest) (domain.OrderOutcome, error) {
	params := url.Values{}
	params.Set("market", req.Symbol)
	params.Set("side", toUpbitSide(req.Side))
	if req.ClientOrderID != "" {
		params.Set("identifier", req.ClientOrderID)
	}

	switch {
	case req.Type == domain.OrderTypeLimit:
		params.Set("ord_type", "limit")
		params.Set("volume", formatFloat(req.Quantity))
		params.Set("price", formatFloat(req.Price))
	case req.Side == domain.OrderSideBuy:
		// Market buy spends a KRW amount; approximate from the last known
		// price carried on the request.
		if req.Price <= 0 {
			return domain.OrderOutcome{}, fmt.Errorf("upbit: market buy needs a reference price: %w",
				domain.ErrInvalidRequest)
		}
		params.Set("ord_type", "price")
		params.Set("price", formatFloat(req.Quantity*req.Price))
	default:
		params.Set("ord_type", "market")
		params.Set("volume", formatFloat(req.Quantity))
	}

	body, err := c.doSignedRequest(ctx, http.MethodPost, "/v1/orders", params)
	if err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("upbit: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("upbit: decode order: %w", err)
	}
	return resp.toOutcome(), nil
}

// Cancel cancels an open order by its Upbit UUID.
func (c *Client) Cancel(ctx context.Context, orderID string) error {
	params := url.Values{}
	params.Set("uuid", orderID)

	if _, err := c.doSignedRequest(ctx, http.MethodDelete, "/v1/order", params); err != nil {
		return fmt.Errorf("upbit: cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetOrder fetches the current state of an order, including its fills.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.OrderOutcome, error) {
	params := url.Values{}
	params.Set("uuid", orderID)

	body, err := c.doSignedRequest(ctx, http.MethodGet, "/v1/order", params)
	if err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("upbit: get order %s: %w", orderID, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("upbit: decode order: %w", err)
	}
	return resp.toOutcome(), nil
}

// GetBalance returns the balance for one currency, e.g. "KRW" or "XRP".
func (c *Client) GetBalance(ctx context.Context, currency string) (domain.Balance, error) {
	body, err := c.doSignedRequest(ctx, http.MethodGet, "/v1/accounts", nil)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("upbit: get accounts: %w", err)
	}

	var accounts []accountEntry
	if err := json.Unmarshal(body, &accounts); err != nil {
		return domain.Balance{}, fmt.Errorf("upbit: decode accounts: %w", err)
	}

	for _, a := range accounts {
		if strings.EqualFold(a.Currency, currency) {
			return domain.Balance{
				Currency:  currency,
				Available: parseFloat(a.Balance),
				Locked:    parseFloat(a.Locked),
			}, nil
		}
	}
	return domain.Balance{Currency: currency}, nil
}

// doSignedRequest builds, signs (JWT), sends, and reads an HTTP request
// against the Upbit API. Query parameters ride in the URL for GET/DELETE and
// as a JSON body for POST; in both cases their SHA512 hash is embedded in the
// token claims.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	var bodyReader io.Reader

	query := ""
	if params != nil {
		query = params.Encode()
	}

	if method == http.MethodPost {
		payload := make(map[string]string, len(params))
		for k := range params {
			payload[k] = params.Get(k)
		}
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	} else if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.authToken(query)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// authToken builds the per-request JWT. The query hash is omitted for
// requests without parameters.
func (c *Client) authToken(query string) (string, error) {
	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}
	if query != "" {
		sum := sha512.Sum512([]byte(query))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var e apiError
	msg := string(body)
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		msg = e.Error.Name + ": " + e.Error.Message
	}

	if status == http.StatusTooManyRequests {
		return fmt.Errorf("status %d: %s: %w", status, msg, domain.ErrRateLimited)
	}
	return fmt.Errorf("status %d: %s: %w", status, msg, domain.ErrOrderRejected)
}

// toOutcome converts the venue order object into the engine's outcome shape.
// Upbit has no single average-price field; it is recomputed from the fills.
func (r orderResponse) toOutcome() domain.OrderOutcome {
	out := domain.OrderOutcome{
		OrderID:    r.UUID,
		Status:     toStatus(r.State, parseFloat(r.ExecutedVolume)),
		FilledQty:  parseFloat(r.ExecutedVolume),
		Commission: parseFloat(r.PaidFee),
		Timestamp:  time.Now(),
	}

	var funds, volume float64
	for _, t := range r.Trades {
		funds += parseFloat(t.Funds)
		volume += parseFloat(t.Volume)
	}
	switch {
	case volume > 0:
		out.AvgPrice = funds / volume
	case out.FilledQty > 0:
		out.AvgPrice = parseFloat(r.Price)
	}
	return out
}

func toStatus(state string, executed float64) domain.OrderStatus {
	switch state {
	case "done":
		return domain.OrderStatusFilled
	case "cancel":
		return domain.OrderStatusCancelled
	case "wait", "watch":
		if executed > 0 {
			return domain.OrderStatusPartiallyFilled
		}
		return domain.OrderStatusOpen
	default:
		return domain.OrderStatusPending
	}
}

func toUpbitSide(side domain.OrderSide) string {
	if side == domain.OrderSideBuy {
		return "bid"
	}
	return "ask"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
