// Package stripe is the HTTP client for the external checkout provider.
package stripe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/dispatchly/payments/internal/config"
)

// API is the outbound capability set the external gateway consumes. The
// retry decorator wraps it; tests substitute it.
type API interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
}

type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.StripeConfig) API {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *HTTPClient) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	url := fmt.Sprintf("%s/v1/checkout/sessions", c.baseURL)
	return sendRequest[CheckoutSessionRequest, CheckoutSession](c, ctx, http.MethodPost, url, &req)
}

func (c *HTTPClient) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	url := fmt.Sprintf("%s/v1/checkout/sessions/%s", c.baseURL, sessionID)
	return sendRequest[any, CheckoutSession](c, ctx, http.MethodGet, url, nil)
}

func (c *HTTPClient) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	url := fmt.Sprintf("%s/v1/payment_intents/%s", c.baseURL, intentID)
	return sendRequest[any, PaymentIntent](c, ctx, http.MethodGet, url, nil)
}

func (c *HTTPClient) CapturePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	url := fmt.Sprintf("%s/v1/payment_intents/%s/capture", c.baseURL, intentID)
	return sendRequest[any, PaymentIntent](c, ctx, http.MethodPost, url, nil)
}

func (c *HTTPClient) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	url := fmt.Sprintf("%s/v1/payment_intents/%s/cancel", c.baseURL, intentID)
	return sendRequest[any, PaymentIntent](c, ctx, http.MethodPost, url, nil)
}

func (c *HTTPClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	url := fmt.Sprintf("%s/v1/refunds", c.baseURL)
	resp, err := sendRequest[RefundRequest, RefundResponse](c, ctx, http.MethodPost, url, &req)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(resp)
	resp.Raw = raw
	return resp, nil
}

func sendRequest[Req any, Resp any](c *HTTPClient, ctx context.Context, method, url string, reqBody *Req) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection/timeout failures are transient by definition.
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, &APIError{
				Type:       "connection_error",
				Message:    netErr.Error(),
				StatusCode: http.StatusServiceUnavailable,
			}
		}
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var errResp apiErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, &APIError{
				Type:       "api_error",
				Message:    string(body),
				StatusCode: resp.StatusCode,
			}
		}
		return nil, &APIError{
			Type:       errResp.Error.Type,
			Code:       errResp.Error.Code,
			Message:    errResp.Error.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &out, nil
}
