package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusError is returned by Client when the server answers 4xx or 5xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Client is a JSON API client. Results decode into the value passed to each
// call.
type Client struct {
	resty *resty.Client
}

func NewClient(opts ...ClientOption) *Client {
	cfg := ClientOptions{
		Timeout: 10 * time.Second,
		Headers: map[string]string{"Content-Type": "application/json"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeaders(cfg.Headers)
	if cfg.BaseURL != "" {
		rc.SetBaseURL(cfg.BaseURL)
	}
	if cfg.Retries > 0 {
		rc.SetRetryCount(cfg.Retries).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(retryable)
	}
	return &Client{resty: rc}
}

func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code == StatusTooManyRequests || code >= StatusInternalError
}

type RequestOption func(*resty.Request)

// WithQuery sets query parameters on the request.
func WithQuery(params map[string]string) RequestOption {
	return func(r *resty.Request) {
		if len(params) > 0 {
			r.SetQueryParams(params)
		}
	}
}

// WithBearer sends "Authorization: Bearer <token>". A blank token sends
// nothing.
func WithBearer(token string) RequestOption {
	return func(r *resty.Request) {
		if token = strings.TrimSpace(token); token != "" {
			r.SetAuthToken(token)
		}
	}
}

func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodGet, path, nil, result, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodPost, path, body, result, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodDelete, path, nil, result, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, opts ...RequestOption) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return resp, err
	}
	if resp.IsError() {
		return resp, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return resp, nil
}
