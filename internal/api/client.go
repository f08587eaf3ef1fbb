// Package api is the typed client for the wellnest HTTP API. Every call goes
// through the endpoint Resolver; authenticated calls read the bearer token
// from the session Store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"wellnest/core/internal/endpoint"
	"wellnest/core/internal/session"
)

const (
	DefaultSessionTTL = 720 * time.Hour
	maxResponseBytes  = 4 << 20
)

type authMode int

const (
	authNone authMode = iota
	authOptional
	authRequired
)

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithSessionTTL sets the lifetime assumed for a token whose response carries
// no expiry of its own.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

type Client struct {
	resolver   *endpoint.Resolver
	session    *session.Store
	log        zerolog.Logger
	defaultTTL time.Duration
	now        func() time.Time
}

func NewClient(resolver *endpoint.Resolver, store *session.Store, opts ...Option) *Client {
	c := &Client{
		resolver:   resolver,
		session:    store,
		log:        zerolog.Nop(),
		defaultTTL: DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *session.Store {
	return c.session
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// do sends one call and decodes the envelope's data into out when out is not
// nil. The raw response body is returned for callers that pick fields out of
// it directly.
func (c *Client) do(ctx context.Context, method string, path string, body any, mode authMode, out any) ([]byte, error) {
	req := endpoint.NewRequest(method, "/api"+path, body)

	if mode != authNone {
		header, ok, err := c.session.BearerHeader(ctx)
		if err != nil {
			return nil, fmt.Errorf("read session: %w", err)
		}
		switch {
		case ok:
			req = req.WithHeader("Authorization", header)
		case mode == authRequired:
			return nil, ErrNotAuthenticated
		}
	}

	resp, err := c.resolver.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest || decodeErr != nil || !env.Success {
		apiErr := &Error{
			Status:  resp.StatusCode,
			Message: env.Message,
			Errors:  env.Errors,
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if decodeErr != nil && resp.StatusCode < http.StatusBadRequest {
			apiErr.Message = "malformed response body"
		}

		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("api call failed")
		return raw, apiErr
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return raw, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return raw, nil
}

// IsUnauthorized reports whether err is a 401 from the API or a call that was
// refused locally for lack of a valid session.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
