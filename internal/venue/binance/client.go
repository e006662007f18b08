// Package binance implements the Binance spot REST API for order placement
// and account queries. Signed endpoints carry an HMAC-SHA256 signature of the
// query string plus a millisecond timestamp.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// Client is the REST client for the Binance spot API. It implements
// domain.OrderPlacer.
type Client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
	recvWindow int64
}

// NewClient creates a new Binance REST client.
//
// baseURL is the API root, e.g. "https://api.binance.com".
func NewClient(baseURL, apiKey, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		recvWindow: 5000,
	}
}

var _ domain.OrderPlacer = (*Client)(nil)

// Place submits an order. Limit orders are GTC; quantities and prices are
// formatted with full float precision and rely on the venue's lot filters.
func (c *Client) Place(ctx context.Context, req domain.OrderRequest) (domain.OrderOutcome, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("quantity", formatFloat(req.Quantity))
	params.Set("newOrderRespType", "FULL")
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	if req.Type == domain.OrderTypeLimit {
		params.Set("type", "LIMIT")
		params.Set("timeInForce", "GTC")
		params.Set("price", formatFloat(req.Price))
	} else {
		params.Set("type", "MARKET")
	}

	body, err := c.doSignedRequest(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("binance: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("binance: decode order: %w", err)
	}
	return resp.toOutcome(), nil
}

// Cancel cancels an open order. The symbol prefix on the ID is required
// because Binance scopes order IDs per symbol; IDs produced by this client
// are "SYMBOL:orderId".
func (c *Client) Cancel(ctx context.Context, orderID string) error {
	symbol, id, err := splitOrderID(orderID)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)

	if _, err := c.doSignedRequest(ctx, http.MethodDelete, "/api/v3/order", params); err != nil {
		return fmt.Errorf("binance: cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetOrder fetches the current state of an order by its "SYMBOL:orderId" ID.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.OrderOutcome, error) {
	symbol, id, err := splitOrderID(orderID)
	if err != nil {
		return domain.OrderOutcome{}, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)

	body, err := c.doSignedRequest(ctx, http.MethodGet, "/api/v3/order", params)
	if err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("binance: get order %s: %w", orderID, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("binance: decode order: %w", err)
	}
	return resp.toOutcome(), nil
}

// GetBalance returns the balance for one asset, e.g. "USDT" or "XRP".
func (c *Client) GetBalance(ctx context.Context, currency string) (domain.Balance, error) {
	body, err := c.doSignedRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return domain.Balance{}, fmt.Errorf("binance: get account: %w", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Balance{}, fmt.Errorf("binance: decode account: %w", err)
	}

	for _, b := range resp.Balances {
		if strings.EqualFold(b.Asset, currency) {
			return domain.Balance{
				Currency:  currency,
				Available: parseFloat(b.Free),
				Locked:    parseFloat(b.Locked),
			}, nil
		}
	}
	return domain.Balance{Currency: currency}, nil
}

// doSignedRequest appends the timestamp and HMAC signature to the query,
// sends the request, and reads the response. Binance signs the raw query
// string; parameters always ride in the URL, never in a body.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

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

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var e apiError
	msg := string(body)
	if json.Unmarshal(body, &e) == nil && e.Msg != "" {
		msg = fmt.Sprintf("code %d: %s", e.Code, e.Msg)
	}

	if status == http.StatusTooManyRequests || status == http.StatusTeapot {
		return fmt.Errorf("status %d: %s: %w", status, msg, domain.ErrRateLimited)
	}
	return fmt.Errorf("status %d: %s: %w", status, msg, domain.ErrOrderRejected)
}

func (r orderResponse) toOutcome() domain.OrderOutcome {
	out := domain.OrderOutcome{
		OrderID:   r.Symbol + ":" + strconv.FormatInt(r.OrderID, 10),
		Status:    toStatus(r.Status),
		FilledQty: parseFloat(r.ExecutedQty),
		Timestamp: time.Now(),
	}

	if out.FilledQty > 0 {
		if quote := parseFloat(r.CummulativeQuoteQty); quote > 0 {
			out.AvgPrice = quote / out.FilledQty
		} else {
			out.AvgPrice = parseFloat(r.Price)
		}
	}
	for _, f := range r.Fills {
		out.Commission += parseFloat(f.Commission)
	}
	return out
}

func toStatus(s string) domain.OrderStatus {
	switch s {
	case "FILLED":
		return domain.OrderStatusFilled
	case "PARTIALLY_FILLED":
		return domain.OrderStatusPartiallyFilled
	case "NEW":
		return domain.OrderStatusOpen
	case "CANCELED", "EXPIRED":
		return domain.OrderStatusCancelled
	case "REJECTED":
		return domain.OrderStatusFailed
	default:
		return domain.OrderStatusPending
	}
}

func splitOrderID(orderID string) (symbol, id string, err error) {
	symbol, id, ok := strings.Cut(orderID, ":")
	if !ok || symbol == "" || id == "" {
		return "", "", fmt.Errorf("binance: order ID %q is not SYMBOL:orderId: %w",
			orderID, domain.ErrInvalidRequest)
	}
	return symbol, id, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
