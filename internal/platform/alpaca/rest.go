package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

// CreateOrder submits an order. A missing ClientOrderID is filled with a
// random UUID so the submission can be traced on the brokerage side.
func (c *Client) CreateOrder(ctx context.Context, order domain.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("alpaca/rest: create order: %w", err)
	}

	typ := order.Type
	if typ == "" {
		typ = domain.OrderTypeMarket
	}
	tif := order.TimeInForce
	if tif == "" {
		tif = domain.TimeInForceDay
	}
	clientID := order.ClientOrderID
	if clientID == "" {
		clientID = c.newOrderID()
	}

	body := apiOrderRequest{
		Symbol:        order.Symbol,
		Qty:           strconv.FormatUint(uint64(order.Quantity), 10),
		Side:          string(order.Side),
		Type:          string(typ),
		TimeInForce:   string(tif),
		ClientOrderID: clientID,
	}
	if typ == domain.OrderTypeLimit {
		body.LimitPrice = strconv.FormatFloat(order.LimitPrice, 'f', -1, 64)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/v2/orders", body)
	if err != nil {
		return fmt.Errorf("alpaca/rest: create order %s: %w", order.Symbol, err)
	}

	var placed apiOrder
	if err := json.Unmarshal(respBody, &placed); err != nil {
		return fmt.Errorf("alpaca/rest: decode order response: %w", err)
	}

	c.logger.InfoContext(ctx, "order submitted",
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Uint64("qty", uint64(order.Quantity)),
		slog.String("order_id", placed.ID),
		slog.String("client_order_id", clientID),
		slog.String("status", placed.Status),
	)
	return nil
}

// GetAsset looks up a single asset by symbol.
func (c *Client) GetAsset(ctx context.Context, symbol string) (domain.Asset, error) {
	path := "/v2/assets/" + url.PathEscape(symbol)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("alpaca/rest: get asset %s: %w", symbol, err)
	}

	var asset apiAsset
	if err := json.Unmarshal(respBody, &asset); err != nil {
		return domain.Asset{}, fmt.Errorf("alpaca/rest: decode asset: %w", err)
	}
	return asset.toDomain(), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest sends an authenticated JSON request and returns the body of a
// 2xx response.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.settings.BaseURL()+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	creds := c.settings.Credentials()
	req.Header.Set("APCA-API-KEY-ID", creds.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", creds.SecretKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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

// checkStatus maps non-2xx HTTP status codes to domain errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidOrder, msg)
	default:
		return fmt.Errorf("HTTP %d: %s (code %d)", statusCode, msg, apiErr.Code)
	}
}
