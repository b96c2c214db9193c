// Package httpx is the HTTP plumbing shared by the provider drivers.
package httpx

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rbaliyan/notify/internal/jsoncodec"
	"github.com/rbaliyan/notify/provider"
)

// DefaultTimeout bounds a provider call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a provider answer is read.
const maxBodySize = 1 << 20

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer = provider.HTTPDoer

// Client issues provider calls with a per-call timeout.
type Client struct {
	driver     string
	doer       Doer
	timeout    time.Duration
	debug      bool
	redactPath bool
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the underlying HTTP client.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithTimeout sets the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDebug logs request and response bodies at debug level.
func WithDebug(enabled bool) Option {
	return func(c *Client) {
		c.debug = enabled
	}
}

// WithRedactedPath hides the request path in debug logs, for providers that
// carry credentials in it.
func WithRedactedPath() Option {
	return func(c *Client) {
		c.redactPath = true
	}
}

// FromDriverOptions maps shared driver options onto client options.
// timeout and debug come from the driver configuration and take precedence.
func FromDriverOptions(o *provider.DriverOptions, timeout time.Duration, debug bool) []Option {
	if timeout <= 0 {
		timeout = o.Timeout
	}
	return []Option{
		WithDoer(o.HTTPClient),
		WithLogger(o.Logger),
		WithTimeout(timeout),
		WithDebug(debug || o.Debug),
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the named driver.
func New(driver string, opts ...Option) *Client {
	c := &Client{
		driver:  driver,
		doer:    http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Reply is a provider answer.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Reply) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v.
func (r *Reply) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return jsoncodec.Unmarshal(r.Body, v)
}

// PostJSON sends payload as a JSON body.
func (c *Client) PostJSON(ctx context.Context, endpoint string, header http.Header, payload any) (*Reply, error) {
	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode payload: %w", c.driver, err)
	}
	h := cloneHeader(header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return c.Do(ctx, http.MethodPost, endpoint, h, body)
}

// PostForm sends form as an urlencoded body.
func (c *Client) PostForm(ctx context.Context, endpoint string, header http.Header, form url.Values) (*Reply, error) {
	h := cloneHeader(header)
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, http.MethodPost, endpoint, h, []byte(form.Encode()))
}

// Do executes a request. Only transport failures are returned as errors;
// callers inspect the status code of the Reply.
func (c *Client) Do(ctx context.Context, method, endpoint string, header http.Header, body []byte) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.RequestError{Driver: c.driver, Op: "build request", Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if c.debug {
		c.logger.Debug("provider request", "driver", c.driver, "method", method,
			"url", c.logURL(req.URL), "body", string(body))
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = c.logURL(req.URL)
		}
		return nil, &provider.RequestError{Driver: c.driver, Op: method + " " + req.URL.Host, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &provider.RequestError{
			Driver:     c.driver,
			Op:         "read response",
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	if c.debug {
		c.logger.Debug("provider response", "driver", c.driver, "status", resp.StatusCode, "body", string(data))
	}

	return &Reply{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Failure builds the response and error recorded for a rejected call.
func (c *Client) Failure(op string, reply *Reply, detail string) (*provider.Response, error) {
	resp := &provider.Response{Error: detail}
	rerr := &provider.RequestError{Driver: c.driver, Op: op, Body: detail}
	if reply != nil {
		resp.StatusCode = reply.StatusCode
		resp.Raw = reply.Body
		rerr.StatusCode = reply.StatusCode
		if detail == "" {
			rerr.Body = truncate(string(reply.Body), 512)
			resp.Error = rerr.Body
		}
	}
	if resp.Error == "" {
		resp.Error = rerr.Error()
	}
	return resp, rerr
}

// Success builds the response recorded for an accepted call.
func Success(reply *Reply, messageID string) *provider.Response {
	return &provider.Response{
		Success:    true,
		MessageID:  messageID,
		StatusCode: reply.StatusCode,
		Raw:        reply.Body,
	}
}

// BasicAuth returns the value of a basic Authorization header.
func BasicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// Bearer returns the value of a bearer Authorization header.
func Bearer(token string) string {
	return "Bearer " + token
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}

// logURL drops query strings and user info, which some providers use for credentials.
func (c *Client) logURL(u *url.URL) string {
	r := *u
	r.RawQuery = ""
	r.User = nil
	if c.redactPath {
		r.Path = "/..."
		r.RawPath = ""
	}
	return r.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
