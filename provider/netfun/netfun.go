// Package netfun delivers SMS through a Netfun HTTP gateway.
//
// The gateway is a legacy integration with a short default timeout.
package netfun

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/provider"
)

// DefaultTimeout bounds a gateway call when none is configured.
const DefaultTimeout = 2 * time.Second

// Config holds the gateway endpoint and key.
type Config struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Sender   string        `yaml:"sender"`
	Timeout  time.Duration `yaml:"timeout"`
	Debug    bool          `yaml:"debug"`
}

// Client is the Netfun driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.SMSSender = (*Client)(nil)

// New validates cfg and creates a driver.
// The driver keeps its own 2s default instead of the capability timeout.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, provider.MissingCredential(provider.DriverNetfun, "endpoint")
	case cfg.APIKey == "":
		return nil, provider.MissingCredential(provider.DriverNetfun, "api_key")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverNetfun, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverNetfun }

type sendReply struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SendSMS posts the message as a form.
func (c *Client) SendSMS(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	sender := msg.From
	if sender == "" {
		sender = c.cfg.Sender
	}
	form := url.Values{
		"destination": {msg.To},
		"text":        {msg.Text},
	}
	if sender != "" {
		form.Set("sender", sender)
	}
	h := http.Header{}
	h.Set("X-Api-Key", c.cfg.APIKey)

	reply, err := c.http.PostForm(ctx, c.cfg.Endpoint, h, form)
	if err != nil {
		return nil, err
	}
	var out sendReply
	if err := reply.Decode(&out); err != nil {
		return c.http.Failure("send", reply, "invalid response: "+err.Error())
	}
	if !reply.OK() || !strings.EqualFold(out.Status, "ok") {
		return c.http.Failure("send", reply, out.Message)
	}
	return httpx.Success(reply, out.ID), nil
}
