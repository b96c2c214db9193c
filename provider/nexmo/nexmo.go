// Package nexmo delivers SMS through the Vonage (formerly Nexmo) SMS API.
package nexmo

import (
	"context"
	"strings"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/provider"
)

// DefaultBaseURL is the Vonage SMS endpoint.
const DefaultBaseURL = "https://rest.nexmo.com"

// Config holds Vonage credentials.
type Config struct {
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	From      string        `yaml:"from"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Debug     bool          `yaml:"debug"`
}

// Client is the Vonage driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.SMSSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	switch {
	case cfg.APIKey == "":
		return nil, provider.MissingCredential(provider.DriverNexmo, "api_key")
	case cfg.APISecret == "":
		return nil, provider.MissingCredential(provider.DriverNexmo, "api_secret")
	case cfg.From == "":
		return nil, provider.MissingCredential(provider.DriverNexmo, "from")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverNexmo, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverNexmo }

type smsRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Type      string `json:"type,omitempty"`
}

type smsReply struct {
	MessageCount string `json:"message-count"`
	Messages     []struct {
		To        string `json:"to"`
		MessageID string `json:"message-id"`
		Status    string `json:"status"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

// SendSMS sends msg as an SMS. Every part must be accepted for the send to succeed.
func (c *Client) SendSMS(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	from := msg.From
	if from == "" {
		from = c.cfg.From
	}
	req := smsRequest{
		APIKey:    c.cfg.APIKey,
		APISecret: c.cfg.APISecret,
		From:      from,
		To:        strings.TrimPrefix(msg.To, "+"),
		Text:      msg.Text,
	}
	if !isASCII(msg.Text) {
		req.Type = "unicode"
	}

	reply, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/sms/json", nil, req)
	if err != nil {
		return nil, err
	}
	if !reply.OK() {
		return c.http.Failure("send", reply, "")
	}

	var out smsReply
	if err := reply.Decode(&out); err != nil {
		return c.http.Failure("send", reply, "invalid response: "+err.Error())
	}
	if len(out.Messages) == 0 {
		return c.http.Failure("send", reply, "no messages in response")
	}
	for _, m := range out.Messages {
		if m.Status != "0" {
			return c.http.Failure("send", reply, "status "+m.Status+": "+m.ErrorText)
		}
	}
	return httpx.Success(reply, out.Messages[0].MessageID), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
