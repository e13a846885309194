// Package ordersclient talks to the orders API over HTTP on behalf of the
// storefront checkout.
package ordersclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-prompt-market/internal/checkout"
)

const maxErrorBody = 4 << 10

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Log:     log,
	}
}

// CreateOrder posts the cart snapshot to {BaseURL}/orders. Anything other
// than a 2xx carrying a non-empty id is an error.
func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest, token string) (checkout.CreatedOrder, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return checkout.CreatedOrder{}, fmt.Errorf("encode order request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return checkout.CreatedOrder{}, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if id := middleware.GetReqID(ctx); id != "" {
		httpReq.Header.Set("X-Request-Id", id)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return checkout.CreatedOrder{}, fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.Log.Warn("orders api rejected order",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", bytes.TrimSpace(msg)))
		return checkout.CreatedOrder{}, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	var out checkout.CreatedOrder
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return checkout.CreatedOrder{}, fmt.Errorf("decode order response: %w", err)
	}
	if out.ID == "" {
		return checkout.CreatedOrder{}, fmt.Errorf("decode order response: missing id")
	}
	return out, nil
}

// StatusError is a non-2xx answer from the orders API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("orders api returned %d: %s", e.Code, e.Body)
}
