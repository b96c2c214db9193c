// Package dialog360 delivers WhatsApp messages through the 360dialog API.
package dialog360

import (
	"context"
	"net/http"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/internal/waba"
	"github.com/rbaliyan/notify/provider"
)

// DefaultBaseURL is the 360dialog Cloud API endpoint.
const DefaultBaseURL = "https://waba-v2.360dialog.io"

// Config holds the 360dialog channel key.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Debug   bool          `yaml:"debug"`
}

// Client is the 360dialog driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.WhatsAppSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingCredential(provider.Driver360Dialog, "api_key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.Driver360Dialog, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.Driver360Dialog }

// SendWhatsApp sends a free-form text message.
func (c *Client) SendWhatsApp(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	h := http.Header{}
	h.Set("D360-API-KEY", c.cfg.APIKey)

	reply, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/messages", h, waba.NewTextMessage(msg.To, msg.Text))
	if err != nil {
		return nil, err
	}
	id, detail := waba.Parse(reply)
	if !reply.OK() || detail != "" {
		return c.http.Failure("send", reply, detail)
	}
	return httpx.Success(reply, id), nil
}
