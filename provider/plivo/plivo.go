// Package plivo delivers SMS through the Plivo Message API.
package plivo

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/provider"
)

// DefaultBaseURL is the Plivo REST endpoint.
const DefaultBaseURL = "https://api.plivo.com"

// Config holds Plivo credentials.
type Config struct {
	AuthID    string        `yaml:"auth_id"`
	AuthToken string        `yaml:"auth_token"`
	From      string        `yaml:"from"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Debug     bool          `yaml:"debug"`
}

// Client is the Plivo driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.SMSSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	switch {
	case cfg.AuthID == "":
		return nil, provider.MissingCredential(provider.DriverPlivo, "auth_id")
	case cfg.AuthToken == "":
		return nil, provider.MissingCredential(provider.DriverPlivo, "auth_token")
	case cfg.From == "":
		return nil, provider.MissingCredential(provider.DriverPlivo, "from")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverPlivo, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverPlivo }

type messageRequest struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Text string `json:"text"`
}

type messageReply struct {
	APIID       string   `json:"api_id"`
	Message     string   `json:"message"`
	MessageUUID []string `json:"message_uuid"`
	Error       string   `json:"error"`
}

// SendSMS sends msg as an SMS.
func (c *Client) SendSMS(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	from := msg.From
	if from == "" {
		from = c.cfg.From
	}
	endpoint := c.cfg.BaseURL + "/v1/Account/" + url.PathEscape(c.cfg.AuthID) + "/Message/"
	h := http.Header{}
	h.Set("Authorization", httpx.BasicAuth(c.cfg.AuthID, c.cfg.AuthToken))

	reply, err := c.http.PostJSON(ctx, endpoint, h, messageRequest{
		Src:  strings.TrimPrefix(from, "+"),
		Dst:  strings.TrimPrefix(msg.To, "+"),
		Text: msg.Text,
	})
	if err != nil {
		return nil, err
	}

	var out messageReply
	if err := reply.Decode(&out); err != nil {
		return c.http.Failure("send", reply, "invalid response: "+err.Error())
	}
	if !reply.OK() || out.Error != "" {
		return c.http.Failure("send", reply, out.Error)
	}
	var id string
	if len(out.MessageUUID) > 0 {
		id = out.MessageUUID[0]
	}
	return httpx.Success(reply, id), nil
}
