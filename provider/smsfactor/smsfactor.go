// Package smsfactor delivers SMS through the SMSFactor API.
package smsfactor

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/provider"
)

// DefaultBaseURL is the SMSFactor endpoint.
const DefaultBaseURL = "https://api.smsfactor.com"

// Config holds the SMSFactor token and sender.
type Config struct {
	Token string `yaml:"token"`
	// Sender is an optional alphanumeric sender id.
	Sender  string        `yaml:"sender"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Debug   bool          `yaml:"debug"`
}

// Client is the SMSFactor driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.SMSSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	if cfg.Token == "" {
		return nil, provider.MissingCredential(provider.DriverSMSFactor, "token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverSMSFactor, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverSMSFactor }

type gsm struct {
	Value string `json:"value"`
}

type sendRequest struct {
	SMS struct {
		Message struct {
			Text   string `json:"text"`
			Sender string `json:"sender,omitempty"`
		} `json:"message"`
		Recipients struct {
			GSM []gsm `json:"gsm"`
		} `json:"recipients"`
	} `json:"sms"`
}

type sendReply struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Ticket  string `json:"ticket"`
	Details string `json:"details"`
}

// SendSMS sends msg as an SMS. The API reports failures with a status below 1.
func (c *Client) SendSMS(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	var req sendRequest
	req.SMS.Message.Text = msg.Text
	req.SMS.Message.Sender = c.cfg.Sender
	if msg.From != "" {
		req.SMS.Message.Sender = msg.From
	}
	req.SMS.Recipients.GSM = []gsm{{Value: strings.TrimPrefix(msg.To, "+")}}

	h := http.Header{}
	h.Set("Authorization", httpx.Bearer(c.cfg.Token))

	reply, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/send", h, req)
	if err != nil {
		return nil, err
	}
	var out sendReply
	if err := reply.Decode(&out); err != nil {
		return c.http.Failure("send", reply, "invalid response: "+err.Error())
	}
	if !reply.OK() || out.Status < 1 {
		detail := out.Message
		if out.Details != "" {
			detail += ": " + out.Details
		}
		return c.http.Failure("send", reply, detail)
	}
	return httpx.Success(reply, out.Ticket), nil
}
