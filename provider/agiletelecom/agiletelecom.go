// Package agiletelecom delivers SMS through the Agile Telecom REST API.
package agiletelecom

import (
	"context"
	"net/http"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/internal/ids"
	"github.com/rbaliyan/notify/provider"
)

// DefaultBaseURL is the Agile Telecom endpoint.
const DefaultBaseURL = "https://secure.agiletelecom.com"

// Config holds Agile Telecom credentials.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	Sender  string        `yaml:"sender"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Debug   bool          `yaml:"debug"`
	// Simulation asks the gateway to validate without delivering.
	Simulation bool `yaml:"simulation"`
}

// Client is the Agile Telecom driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.SMSSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	switch {
	case cfg.APIKey == "":
		return nil, provider.MissingCredential(provider.DriverAgileTelecom, "api_key")
	case cfg.Sender == "":
		return nil, provider.MissingCredential(provider.DriverAgileTelecom, "sender")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverAgileTelecom, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverAgileTelecom }

type message struct {
	Destinations []string `json:"destinations"`
	IDs          []string `json:"ids"`
	Body         string   `json:"body"`
}

type sendRequest struct {
	GlobalSender       string    `json:"globalSender"`
	Messages           []message `json:"messages"`
	EnableConcatenated bool      `json:"enableConcatenated"`
	EnableUnicode      bool      `json:"enableUnicode"`
	EnableDelivery     bool      `json:"enableDelivery"`
	Simulation         bool      `json:"simulation"`
}

type sendReply struct {
	Simulation   bool   `json:"simulation"`
	SentMessages int    `json:"sentMessages"`
	Errors       int    `json:"errors"`
	Message      string `json:"message"`
}

// SendSMS sends msg as a concatenated SMS. The message id is generated
// locally and passed to the gateway for delivery reports.
func (c *Client) SendSMS(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	sender := msg.From
	if sender == "" {
		sender = c.cfg.Sender
	}
	id := ids.NewRowID()
	req := sendRequest{
		GlobalSender:       sender,
		Messages:           []message{{Destinations: []string{msg.To}, IDs: []string{id}, Body: msg.Text}},
		EnableConcatenated: true,
		EnableUnicode:      !isGSM(msg.Text),
		Simulation:         c.cfg.Simulation,
	}
	h := http.Header{}
	h.Set("X-Api-Key", c.cfg.APIKey)

	reply, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/services/sms/send", h, req)
	if err != nil {
		return nil, err
	}
	var out sendReply
	if err := reply.Decode(&out); err != nil {
		return c.http.Failure("send", reply, "invalid response: "+err.Error())
	}
	if !reply.OK() || out.Errors > 0 {
		return c.http.Failure("send", reply, out.Message)
	}
	return httpx.Success(reply, id), nil
}

func isGSM(s string) bool {
	for _, r := range s {
		if r >= 0x80 {
			return false
		}
	}
	return true
}
