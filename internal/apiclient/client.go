// Package apiclient is the shared client the console uses to talk to the
// admin API. It forwards the visitor's credentials, applies a fixed timeout
// and runs every response through a chain of interceptors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultTimeout bounds every request made through a Client.
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of a response is read into memory.
const maxBody = 4 << 20

// ErrNoBaseURL is returned when a relative path is requested from a client
// built without a base URL.
var ErrNoBaseURL = errors.New("apiclient: no base URL configured")

// Client issues JSON requests against the admin API. It is safe for
// concurrent use and is not modified after New returns.
type Client struct {
	http         *http.Client
	baseURL      *url.URL // nil allows absolute URLs only
	credentials  bool
	timeout      time.Duration
	interceptors []Interceptor
}

type Option func(*Client)

// WithHTTPClient sets the underlying http.Client. Its Timeout is overridden
// by the client timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBaseURL resolves request paths against raw. The base is fixed at
// construction; nothing in an incoming request can change it.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if raw == "" {
			c.baseURL = nil
			return
		}
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

// WithCredentials controls whether the visitor's cookies are forwarded.
func WithCredentials(include bool) Option {
	return func(c *Client) { c.credentials = include }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInterceptor appends ic to the response chain.
func WithInterceptor(ic Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, ic) }
}

// New builds a Client. Defaults: no base URL, credentials included,
// DefaultTimeout.
func New(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{},
		credentials: true,
		timeout:     DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	hc := *c.http
	hc.Timeout = c.timeout
	c.http = &hc
	return c
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Response is a fully read API response.
type Response struct {
	*http.Response
	Data []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if v == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode %s response: %w", r.Request.URL.Path, err)
	}
	return nil
}

// Get fetches p and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, p string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, p, nil)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Post sends in as JSON to p and decodes the JSON reply into out.
func (c *Client) Post(ctx context.Context, p string, in, out any) error {
	resp, err := c.Do(ctx, http.MethodPost, p, in)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Do sends a request and returns the read response. Non-2xx statuses and
// transport failures come back as *APIError after the interceptor chain has
// seen them.
func (c *Client) Do(ctx context.Context, method, p string, in any) (*Response, error) {
	req, err := c.newReq(ctx, method, p, in)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.reject(ctx, &APIError{Method: method, Path: p, Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, c.reject(ctx, &APIError{Method: method, Path: p, StatusCode: resp.StatusCode, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.reject(ctx, newStatusError(method, p, resp.StatusCode, data))
	}

	return c.accept(ctx, &Response{Response: resp, Data: data})
}

func (c *Client) newReq(ctx context.Context, method, p string, in any) (*http.Request, error) {
	u, err := c.resolve(p)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, p, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.credentials {
		for _, ck := range credentialsFrom(ctx) {
			req.AddCookie(ck)
		}
	}
	return req, nil
}

func (c *Client) resolve(p string) (*url.URL, error) {
	ref, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", p, err)
	}
	if ref.IsAbs() {
		return ref, nil
	}

	if c.baseURL == nil {
		return nil, ErrNoBaseURL
	}

	u := *c.baseURL
	u.Path = path.Join("/", u.Path, ref.Path)
	u.RawQuery = ref.RawQuery
	return &u, nil
}

func (c *Client) accept(ctx context.Context, resp *Response) (*Response, error) {
	for _, ic := range c.interceptors {
		if ic.OnResponse == nil {
			continue
		}
		var err error
		if resp, err = ic.OnResponse(ctx, resp); err != nil {
			return nil, c.reject(ctx, err)
		}
	}
	return resp, nil
}

func (c *Client) reject(ctx context.Context, err error) error {
	for _, ic := range c.interceptors {
		if ic.OnError != nil {
			err = ic.OnError(ctx, err)
		}
	}
	return err
}
