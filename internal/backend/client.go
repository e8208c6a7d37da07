// Package backend is the client of the agency backend API that owns
// timesheets, contractor rates and contractor-hours records.
package backend

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

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrBackend       = errors.New("backend request failed")
	ErrInvalidRecord = errors.New("invalid contractor hours record")
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryInterval = 200 * time.Millisecond
	maxErrorBody         = 4096
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error { return ErrBackend }

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

type Client struct {
	baseURL       string
	token         string
	maxRetries    int
	retryInterval time.Duration
	http          *http.Client
	validate      *validator.Validate
	log           zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		http:          &http.Client{Timeout: cfg.Timeout},
		validate:      validator.New(),
		log:           log.With().Str("component", "backend").Logger(),
	}
}

// WithToken returns a client that sends the bearer token on every request.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, retry bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}
	requestID := uuid.NewString()

	op := func() error {
		return c.roundTrip(ctx, method, path, requestID, payload, out)
	}

	if !retry || c.maxRetries <= 0 {
		return unwrapPermanent(op())
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	attempt := 0
	return backoff.RetryNotify(
		op,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx),
		func(err error, wait time.Duration) {
			attempt++
			c.log.Warn().Err(err).
				Str("method", method).
				Str("path", path).
				Str("request_id", requestID).
				Int("attempt", attempt).
				Dur("retry_in", wait).
				Msg("backend request failed, retrying")
		},
	)
}

func (c *Client) roundTrip(ctx context.Context, method, path, requestID string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build %s %s: %w", method, path, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return backoff.Permanent(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}

func unwrapPermanent(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
