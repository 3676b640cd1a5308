package xaytheon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRequestTimeout is the hard per-call timeout applied by the Gateway.
const DefaultRequestTimeout = 30 * time.Second

// Response is a fully buffered HTTP response. Buffering lets the Gateway
// release its timeout on every exit path and lets callers re-dispatch a
// request without worrying about half-consumed bodies.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK returns true for any 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the buffered body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return WrapAuthError(ErrCodeInvalidResponse, "invalid response body", err)
	}
	return nil
}

// Gateway wraps outbound HTTP calls with a hard timeout and classifies
// transport failures once, at this boundary. Everything above it sees
// either a buffered Response or an AuthError with TIMEOUT/NETWORK_ERROR.
type Gateway struct {
	client  *http.Client
	timeout time.Duration
}

// NewGateway creates a Gateway over the given client. A nil client uses
// http.DefaultClient; a non-positive timeout uses DefaultRequestTimeout.
func NewGateway(client *http.Client, timeout time.Duration) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Gateway{client: client, timeout: timeout}
}

// Call dispatches req with the Gateway's timeout and returns the buffered
// response. The timeout covers connection, headers, and body.
func (g *Gateway) Call(ctx context.Context, req *http.Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapAuthError(ErrCodeTimeout, "request timed out", err)
	}
	return WrapAuthError(ErrCodeNetworkError, "network error", err)
}

// NewJSONRequest builds a request with a JSON body and content type. The
// body is replayable (GetBody is set), so the request can be retried.
func NewJSONRequest(method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
