package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError is returned for any non-2xx answer from the provider.
type StatusError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *StatusError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("gateway returned %d", e.StatusCode)
}

type Observer interface {
	Observe(float64)
}

type HTTPGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*Intent]
	latency   Observer
}

type Option func(*HTTPGateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGateway) { g.client = client }
}

func WithLatencyObserver(o Observer) Option {
	return func(g *HTTPGateway) { g.latency = o }
}

func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(g *HTTPGateway) { g.breaker = newBreaker(st) }
}

// NewHTTPGateway builds a client for a Razorpay-compatible orders API.
func NewHTTPGateway(baseURL, keyID, keySecret string, opts ...Option) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		breaker: newBreaker(gobreaker.Settings{
			Name:        "payment-gateway",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker[*Intent] {
	// rejections the provider answered deliberately say nothing about its health
	st.IsSuccessful = func(err error) bool {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return statusErr.StatusCode < http.StatusInternalServerError
		}
		return err == nil
	}
	return gobreaker.NewCircuitBreaker[*Intent](st)
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, amount int64, currency, reference string) (*Intent, error) {
	start := time.Now()
	intent, err := g.breaker.Execute(func() (*Intent, error) {
		return g.createOrder(ctx, createOrderRequest{
			Amount:   amount,
			Currency: currency,
			Receipt:  reference,
			Notes:    map[string]string{"reference": reference},
		})
	})
	if g.latency != nil {
		g.latency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}
	return intent, nil
}

func (g *HTTPGateway) createOrder(ctx context.Context, body createOrderRequest) (*Intent, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errBody errorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); readErr == nil && json.Unmarshal(data, &errBody) == nil {
			statusErr.Code = errBody.Error.Code
			statusErr.Description = errBody.Error.Description
		}
		return nil, statusErr
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if intent.ID == "" {
		return nil, errors.New("gateway response has no order id")
	}
	return &intent, nil
}
