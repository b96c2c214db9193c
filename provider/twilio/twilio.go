// Package twilio delivers SMS and WhatsApp messages through the Twilio
// Programmable Messaging API.
package twilio

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/provider"
)

// DefaultBaseURL is the Twilio REST endpoint.
const DefaultBaseURL = "https://api.twilio.com"

// Config holds Twilio credentials and senders.
type Config struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	// From is the SMS sender number or alphanumeric id.
	From string `yaml:"from"`
	// MessagingServiceSID is used instead of From when set.
	MessagingServiceSID string `yaml:"messaging_service_sid"`
	// WhatsAppFrom is the WhatsApp-enabled sender. Defaults to From.
	WhatsAppFrom string        `yaml:"whatsapp_from"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Debug        bool          `yaml:"debug"`
}

// Client is the Twilio driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var (
	_ provider.SMSSender      = (*Client)(nil)
	_ provider.WhatsAppSender = (*Client)(nil)
)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	if cfg.AccountSID == "" {
		return nil, provider.MissingCredential(provider.DriverTwilio, "account_sid")
	}
	if cfg.AuthToken == "" {
		return nil, provider.MissingCredential(provider.DriverTwilio, "auth_token")
	}
	if cfg.From == "" && cfg.MessagingServiceSID == "" {
		return nil, provider.MissingCredential(provider.DriverTwilio, "from or messaging_service_sid")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.WhatsAppFrom == "" {
		cfg.WhatsAppFrom = cfg.From
	}

	o := provider.NewDriverOptions(opts...)
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverTwilio, httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug)...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverTwilio }

// SendSMS sends msg as an SMS.
func (c *Client) SendSMS(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	form := url.Values{"To": {msg.To}, "Body": {msg.Text}}
	switch {
	case msg.From != "":
		form.Set("From", msg.From)
	case c.cfg.MessagingServiceSID != "":
		form.Set("MessagingServiceSid", c.cfg.MessagingServiceSID)
	default:
		form.Set("From", c.cfg.From)
	}
	return c.send(ctx, form)
}

// SendWhatsApp sends msg through the WhatsApp channel.
func (c *Client) SendWhatsApp(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	from := msg.From
	if from == "" {
		from = c.cfg.WhatsAppFrom
	}
	if from == "" {
		return nil, provider.MissingCredential(provider.DriverTwilio, "whatsapp_from")
	}
	form := url.Values{
		"To":   {whatsappAddress(msg.To)},
		"From": {whatsappAddress(from)},
		"Body": {msg.Text},
	}
	return c.send(ctx, form)
}

// messageReply is the Message resource returned on success.
type messageReply struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// errorReply is the body of a rejected request. Its status is the HTTP code.
type errorReply struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	MoreInfo string `json:"more_info"`
}

func (c *Client) send(ctx context.Context, form url.Values) (*provider.Response, error) {
	endpoint := c.cfg.BaseURL + "/2010-04-01/Accounts/" + url.PathEscape(c.cfg.AccountSID) + "/Messages.json"
	h := http.Header{}
	h.Set("Authorization", httpx.BasicAuth(c.cfg.AccountSID, c.cfg.AuthToken))

	reply, err := c.http.PostForm(ctx, endpoint, h, form)
	if err != nil {
		return nil, err
	}

	if !reply.OK() {
		var e errorReply
		if err := reply.Decode(&e); err != nil {
			return c.http.Failure("send", reply, "")
		}
		return c.http.Failure("send", reply, e.Message)
	}

	var out messageReply
	if err := reply.Decode(&out); err != nil {
		return c.http.Failure("send", reply, "invalid response: "+err.Error())
	}
	if out.Status == "failed" || out.Status == "undelivered" {
		return c.http.Failure("send", reply, out.ErrorMessage)
	}
	return httpx.Success(reply, out.SID), nil
}

func whatsappAddress(addr string) string {
	if strings.HasPrefix(addr, "whatsapp:") {
		return addr
	}
	return "whatsapp:" + addr
}
