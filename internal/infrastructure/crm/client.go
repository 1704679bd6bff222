// Package crm is the JSON-over-HTTP client for the CRM REST endpoint.
package crm

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

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockbridge/internal/core/apperror"
	"stockbridge/pkg/logger"
)

// Remote error codes produced locally, when the remote side gave none.
const (
	CodeTransport       = "TRANSPORT_ERROR"
	CodeInvalidResponse = "INVALID_RESPONSE"
	CodeCircuitOpen     = "CIRCUIT_OPEN"
)

const maxResponseBytes = 16 << 20

// errTransport marks failures that count against the circuit breaker.
var errTransport = errors.New("crm transport failure")

// EndpointSource yields the base URL calls are sent to.
type EndpointSource interface {
	BaseURL(ctx context.Context) (string, error)
}

// Envelope is a decoded CRM response.
type Envelope struct {
	Result           json.RawMessage `json:"result"`
	Next             json.Number     `json:"next,omitempty"`
	Total            json.Number     `json:"total,omitempty"`
	Error            json.RawMessage `json:"error,omitempty"`
	ErrorDescription string          `json:"error_description,omitempty"`
}

// HasError reports whether the response carries an application-level error.
func (e *Envelope) HasError() bool {
	return len(e.Error) > 0 && string(e.Error) != "null"
}

// ErrorCode renders the error field; remote codes are usually strings.
func (e *Envelope) ErrorCode() string {
	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		return s
	}
	return string(e.Error)
}

// CallRecorder observes every remote call.
type CallRecorder interface {
	CRMCall(method, outcome string, elapsed time.Duration)
}

type nopCallRecorder struct{}

func (nopCallRecorder) CRMCall(string, string, time.Duration) {}

// ClientConfig configures the client.
type ClientConfig struct {
	Timeout time.Duration

	BreakerEnabled  bool
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         30 * time.Second,
		BreakerEnabled:  true,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRecorder attaches a call recorder.
func WithRecorder(r CallRecorder) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Client sends RPC calls as POST {base}/{method} with a JSON body.
// No call is ever retried.
type Client struct {
	endpoints EndpointSource
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	recorder  CallRecorder
	tracer    trace.Tracer
}

// NewClient creates a new CRM client.
func NewClient(endpoints EndpointSource, cfg ClientConfig, opts ...ClientOption) *Client {
	c := &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: cfg.Timeout},
		recorder:  nopCallRecorder{},
		tracer:    otel.Tracer("stockbridge/crm"),
	}
	if cfg.BreakerEnabled {
		failures := cfg.BreakerFailures
		if failures == 0 {
			failures = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "crm",
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, errTransport)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn(context.Background(), "circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String())
			},
		})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes method and returns its result field.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	env, err := c.Do(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return env.Result, nil
}

// Do invokes method and returns the whole envelope, including paging fields.
func (c *Client) Do(ctx context.Context, method string, params map[string]any) (*Envelope, error) {
	ctx, span := c.tracer.Start(ctx, "crm."+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("crm.method", method))

	started := time.Now()
	env, err := c.execute(ctx, method, params)
	elapsed := time.Since(started)

	outcome := "ok"
	if err != nil {
		outcome = failureOutcome(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.Debug(ctx, "crm call failed", "method", method, "outcome", outcome, "error", err)
	}
	c.recorder.CRMCall(method, outcome, elapsed)
	return env, err
}

func (c *Client) execute(ctx context.Context, method string, params map[string]any) (*Envelope, error) {
	base, err := c.endpoints.BaseURL(ctx)
	if err != nil {
		return nil, err
	}
	if c.breaker == nil {
		return c.send(ctx, base, method, params)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, base, method, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperror.NewRemoteCall(method, CodeCircuitOpen, err.Error()).WithCause(err)
	}
	if err != nil {
		return nil, err
	}
	return res.(*Envelope), nil
}

func (c *Client) send(ctx context.Context, base, method string, params map[string]any) (*Envelope, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("encode %s params: %w", method, err))
	}

	url := strings.TrimRight(base, "/") + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(method, CodeTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(method, CodeTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(method, CodeTransport, err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)
	if decodeErr == nil && env.HasError() {
		return nil, apperror.NewRemoteCall(method, env.ErrorCode(), env.ErrorDescription).
			WithDetail("status", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, transportError(method, fmt.Sprintf("HTTP_%d", resp.StatusCode),
			fmt.Errorf("%s", http.StatusText(resp.StatusCode)))
	}
	if decodeErr != nil {
		return nil, transportError(method, CodeInvalidResponse, decodeErr)
	}
	if len(env.Result) == 0 {
		// Well-formed but shapeless: an application error, not a breaker failure.
		return nil, apperror.NewRemoteCall(method, CodeInvalidResponse, "response has no result field")
	}
	return &env, nil
}

func transportError(method, code string, err error) *apperror.AppError {
	return apperror.NewRemoteCall(method, code, err.Error()).
		WithCause(fmt.Errorf("%w: %w", errTransport, err))
}

func failureOutcome(err error) string {
	appErr, ok := apperror.AsAppError(err)
	switch {
	case !ok:
		return "error"
	case appErr.Details["error"] == CodeCircuitOpen:
		return "circuit_open"
	case errors.Is(err, errTransport):
		return "transport_error"
	case appErr.Code == apperror.CodeRemoteCall:
		return "remote_error"
	}
	return "error"
}
