// Package endpoint sends API requests to the current backend host and fails
// over from the primary host to the secondary host at most once per Resolver.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wellnest/core/internal/metrics"
)

const DefaultTimeout = 15 * time.Second

type Option func(*Resolver)

// WithHTTPClient sends requests through client. A client without its own
// Timeout gets the Resolver's timeout applied to a copy.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(r *Resolver) {
		r.metrics = recorder
	}
}

// Resolver owns the current API host. It starts on the primary host and
// switches to the secondary the first time a request sent to the primary gets
// no response at all. The switch is never undone.
type Resolver struct {
	primary   string
	secondary string
	current   atomic.Pointer[string]

	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Recorder
}

func NewResolver(primary string, secondary string, opts ...Option) (*Resolver, error) {
	p, err := normalizeHost(primary)
	if err != nil {
		return nil, fmt.Errorf("primary host: %w", err)
	}
	s, err := normalizeHost(secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary host: %w", err)
	}

	r := &Resolver{
		primary:   p,
		secondary: s,
		timeout:   DefaultTimeout,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	switch {
	case r.client == nil:
		r.client = &http.Client{Timeout: r.timeout}
	case r.client.Timeout <= 0:
		c := *r.client
		c.Timeout = r.timeout
		r.client = &c
	}
	r.current.Store(&r.primary)

	return r, nil
}

func (r *Resolver) Primary() string {
	return r.primary
}

func (r *Resolver) Secondary() string {
	return r.secondary
}

// Current returns the host new requests are sent to.
func (r *Resolver) Current() string {
	return *r.current.Load()
}

func (r *Resolver) FailedOver() bool {
	return r.current.Load() == &r.secondary
}

// Send dispatches req against the current host. Any received response is
// returned as is, whatever its status. A transport failure against the
// primary on the first attempt moves the Resolver to the secondary and the
// request is re-issued exactly once; every other transport failure is
// returned as a *TransportError.
func (r *Resolver) Send(ctx context.Context, req Request) (*http.Response, error) {
	payload, err := req.encodeBody()
	if err != nil {
		return nil, err
	}
	if req.Header.Get(HeaderRequestID) == "" {
		req = req.WithHeader(HeaderRequestID, uuid.NewString())
	}
	return r.send(ctx, req, payload, 0)
}

func (r *Resolver) send(ctx context.Context, req Request, payload []byte, attempt int) (*http.Response, error) {
	host := r.Current()

	httpReq, err := req.build(ctx, host, payload)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("method", httpReq.Method).
		Str("host", host).
		Str("path", req.Path).
		Int("attempt", attempt).
		Str("request_id", httpReq.Header.Get(HeaderRequestID)).
		Msg("api request")

	resp, err := r.client.Do(httpReq)
	if err == nil {
		r.metrics.ObserveRequest(host, metrics.OutcomeResponse)
		return resp, nil
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	r.metrics.ObserveRequest(host, metrics.OutcomeTransport)

	// The caller gave up; that says nothing about the host.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s %s: %w", httpReq.Method, req.Path, ctxErr)
	}

	if host != r.primary || attempt > 0 {
		return nil, &TransportError{Host: host, Attempts: attempt + 1, Err: err}
	}

	if r.current.CompareAndSwap(&r.primary, &r.secondary) {
		r.metrics.ObserveFailover()
		r.log.Warn().
			Err(err).
			Str("from", r.primary).
			Str("to", r.secondary).
			Msg("primary api host unreachable, switching to secondary")
	}

	return r.send(ctx, req, payload, attempt+1)
}

func normalizeHost(raw string) (string, error) {
	host := strings.TrimRight(strings.TrimSpace(raw), "/")
	if host == "" {
		return "", errors.New("empty host")
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return host, nil
}
