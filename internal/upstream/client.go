package upstream

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/outreach-monitor/internal/config"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
	"github.com/acme/outreach-monitor/pkg/logger"
)

const maxErrorBody = 64 << 10

// Client talks to the outreach backend that owns campaign state.
type Client struct {
	baseURL        string
	http           *http.Client
	requestTimeout time.Duration
	replyTimeout   time.Duration
	token          string
	logger         *logger.Logger
}

// New constructs an unauthenticated client.
func New(cfg config.UpstreamConfig, lg *logger.Logger) *Client {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	replyTimeout := cfg.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = 5 * time.Minute
	}
	if lg == nil {
		lg = logger.Nop()
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           &http.Client{},
		requestTimeout: requestTimeout,
		replyTimeout:   replyTimeout,
		logger:         lg,
	}
}

// ForToken returns a copy of the client that authenticates with the given bearer token.
func (c *Client) ForToken(token string) *Client {
	scoped := *c
	scoped.token = token
	return &scoped
}

// ReplyTimeout reports the extended timeout used for reply sends.
func (c *Client) ReplyTimeout() time.Duration {
	return c.replyTimeout
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// UserMessage is the backend's explanation of the failure.
func (e *APIError) UserMessage() string {
	return e.Message
}

// Unwrap maps the status code onto the application sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return apperrors.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return apperrors.ErrConflict
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout:
		return apperrors.ErrTimeout
	case e.StatusCode >= 500:
		return apperrors.ErrUnavailable
	default:
		return apperrors.ErrValidation
	}
}

type request struct {
	method  string
	path    string
	query   map[string]string
	body    any
	out     any
	timeout time.Duration
	// object rejects a success body that is not a JSON object, such as null.
	object bool
}

func (c *Client) do(ctx context.Context, r request) error {
	timeout := r.timeout
	if timeout <= 0 {
		timeout = c.requestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracer := otel.Tracer("outreach.upstream")
	ctx, span := tracer.Start(ctx, "upstream."+strings.ToLower(r.method), trace.WithAttributes(
		attribute.String("http.method", r.method),
		attribute.String("http.route", r.path),
	))
	defer span.End()

	err := c.send(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, r request) error {
	var payload io.Reader
	if r.body != nil {
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("upstream: encode %s body: %w", r.path, err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, payload)
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	if len(r.query) > 0 {
		q := req.URL.Query()
		for k, v := range r.query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, r, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream: response",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(r, resp)
	}

	if r.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, r, err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return fmt.Errorf("upstream: %s %s: %w: empty or non-JSON body", r.method, r.path, apperrors.ErrUnavailable)
	}
	if r.object && trimmed[0] != '{' {
		return fmt.Errorf("upstream: %s %s: %w: expected a JSON object", r.method, r.path, apperrors.ErrUnavailable)
	}
	if err := json.Unmarshal(trimmed, r.out); err != nil {
		return fmt.Errorf("upstream: %s %s: decode response: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, r request, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("upstream: %s %s: %w: %w", r.method, r.path, apperrors.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("upstream: %s %s: %w", r.method, r.path, err)
	default:
		return fmt.Errorf("upstream: %s %s: %w: %w", r.method, r.path, apperrors.ErrUnavailable, err)
	}
}

func decodeAPIError(r request, resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Method:     r.method,
		Path:       r.path,
		Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return apiErr
	}
	if detail := detailMessage(body.Detail); detail != "" {
		apiErr.Message = detail
	} else if body.Message != "" {
		apiErr.Message = body.Message
	}
	return apiErr
}

// detailMessage accepts both a plain string detail and a list of validation entries.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(raw)
}
