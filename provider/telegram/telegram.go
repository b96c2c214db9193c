// Package telegram delivers messages through the Telegram Bot API.
package telegram

import (
	"context"
	"strconv"
	"time"

	"github.com/rbaliyan/notify/internal/httpx"
	"github.com/rbaliyan/notify/provider"
)

// DefaultBaseURL is the Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Config holds the bot token.
type Config struct {
	Token string `yaml:"token"`
	// ParseMode is passed through to sendMessage ("HTML", "MarkdownV2" or empty).
	ParseMode string        `yaml:"parse_mode"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Debug     bool          `yaml:"debug"`
}

// Client is the Telegram driver.
type Client struct {
	cfg  Config
	http *httpx.Client
}

var _ provider.TelegramSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	if cfg.Token == "" {
		return nil, provider.MissingCredential(provider.DriverTelegram, "token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	o := provider.NewDriverOptions(opts...)
	hopts := append(httpx.FromDriverOptions(o, cfg.Timeout, cfg.Debug), httpx.WithRedactedPath())
	return &Client{
		cfg:  cfg,
		http: httpx.New(provider.DriverTelegram, hopts...),
	}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverTelegram }

type sendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendReply struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendTelegram sends msg to the chat id in msg.To.
func (c *Client) SendTelegram(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	req := sendRequest{ChatID: msg.To, Text: msg.Text, ParseMode: c.cfg.ParseMode}
	reply, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/bot"+c.cfg.Token+"/sendMessage", nil, req)
	if err != nil {
		return nil, err
	}
	var out sendReply
	if err := reply.Decode(&out); err != nil {
		return c.http.Failure("sendMessage", reply, "invalid response: "+err.Error())
	}
	if !reply.OK() || !out.OK {
		return c.http.Failure("sendMessage", reply, out.Description)
	}
	return httpx.Success(reply, strconv.FormatInt(out.Result.MessageID, 10)), nil
}
