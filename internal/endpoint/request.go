package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	HeaderRequestID   = "X-Request-Id"
	HeaderContentType = "Content-Type"
)

// Request describes one logical API call. It is never mutated once built;
// the same value is re-dispatched on a failover retry.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   any
}

func NewRequest(method string, path string, body any) Request {
	return Request{
		Method: method,
		Path:   path,
		Body:   body,
	}
}

// WithHeader returns a copy of r with the header key set to value.
func (r Request) WithHeader(key string, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(key, value)
	r.Header = h
	return r
}

func (r Request) encodeBody() ([]byte, error) {
	switch body := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return body, nil
	case json.RawMessage:
		return body, nil
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		return payload, nil
	}
}

func (r Request) build(ctx context.Context, host string, payload []byte) (*http.Request, error) {
	path := r.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, host+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range r.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if payload != nil && httpReq.Header.Get(HeaderContentType) == "" {
		httpReq.Header.Set(HeaderContentType, "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}
