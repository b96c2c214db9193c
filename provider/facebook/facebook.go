// Package facebook delivers WhatsApp messages through the Meta Cloud API.
package facebook

import (
	"context"
	"net/http"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/internal/waba"
	"github.com/rbaliyan/notify/provider"
)

const (
	// DefaultBaseURL is the Graph API endpoint.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultVersion is the Graph API version used when none is configured.
	DefaultVersion = "v19.0"
)

// Config holds the Cloud API token and phone number.
type Config struct {
	AccessToken   string        `yaml:"access_token"`
	PhoneNumberID string        `yaml:"phone_number_id"`
	Version       string        `yaml:"version"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	Debug         bool          `yaml:"debug"`
}

// Client is the Cloud API driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.WhatsAppSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	switch {
	case cfg.AccessToken == "":
		return nil, provider.MissingCredential(provider.DriverFacebook, "access_token")
	case cfg.PhoneNumberID == "":
		return nil, provider.MissingCredential(provider.DriverFacebook, "phone_number_id")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverFacebook, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverFacebook }

// SendWhatsApp sends a free-form text message. Meta only delivers it inside
// an open customer service window.
func (c *Client) SendWhatsApp(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	h := http.Header{}
	h.Set("Authorization", httpx.Bearer(c.cfg.AccessToken))

	endpoint := c.cfg.BaseURL + "/" + c.cfg.Version + "/" + c.cfg.PhoneNumberID + "/messages"
	reply, err := c.http.PostJSON(ctx, endpoint, h, waba.NewTextMessage(msg.To, msg.Text))
	if err != nil {
		return nil, err
	}
	id, detail := waba.Parse(reply)
	if !reply.OK() || detail != "" {
		return c.http.Failure("send", reply, detail)
	}
	return httpx.Success(reply, id), nil
}
