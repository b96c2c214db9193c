// Package gammu delivers SMS through a locally attached modem driven by the
// gammu command line tool.
package gammu

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/segment"
)

// DefaultBinary is the executable looked up in PATH.
const DefaultBinary = "gammu"

// DefaultTimeout bounds a single gammu invocation.
const DefaultTimeout = 30 * time.Second

// Config selects the gammu binary and configuration.
type Config struct {
	Binary string `yaml:"binary"`
	// ConfigFile is passed as -c when set.
	ConfigFile string        `yaml:"config_file"`
	Timeout    time.Duration `yaml:"timeout"`
	Debug      bool          `yaml:"debug"`
}

// Client is the gammu driver.
type Client struct {
	cfg    Config
	logger *slog.Logger
	debug  bool
}

var _ provider.SMSSender = (*Client)(nil)

// New creates a driver. The binary is resolved lazily on each send.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	o := provider.NewDriverOptions(opts...)
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = o.Timeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, logger: o.Logger, debug: cfg.Debug || o.Debug}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverGammu }

var referenceRE = regexp.MustCompile(`(?i)message reference\s*=\s*(\d+)`)

// SendSMS runs "gammu sendsms TEXT <to> -len <n>" with the body on stdin.
func (c *Client) SendSMS(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := os.CreateTemp("", "notify-gammu-*.txt")
	if err != nil {
		return nil, fmt.Errorf("gammu: create body file: %w", err)
	}
	defer os.Remove(body.Name())
	defer body.Close()

	text := segment.Transliterate(msg.Text)
	if _, err := body.WriteString(text); err != nil {
		return nil, fmt.Errorf("gammu: write body file: %w", err)
	}
	if _, err := body.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("gammu: rewind body file: %w", err)
	}

	var args []string
	if c.cfg.ConfigFile != "" {
		args = append(args, "-c", c.cfg.ConfigFile)
	}
	args = append(args, "sendsms", "TEXT", msg.To, "-len", strconv.Itoa(utf8.RuneCountInString(text)))

	cmd := exec.CommandContext(ctx, c.cfg.Binary, args...)
	cmd.Stdin = body
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if c.debug {
		c.logger.Debug("provider request", "driver", provider.DriverGammu, "args", args)
	}
	runErr := cmd.Run()
	raw := out.Bytes()
	if c.debug {
		c.logger.Debug("provider response", "driver", provider.DriverGammu, "output", string(raw))
	}

	if runErr != nil {
		rerr := &provider.RequestError{Driver: provider.DriverGammu, Op: "sendsms", Body: string(raw), Err: runErr}
		return &provider.Response{Raw: raw, Error: rerr.Error()}, rerr
	}
	m := referenceRE.FindSubmatch(raw)
	if m == nil {
		rerr := &provider.RequestError{Driver: provider.DriverGammu, Op: "sendsms", Body: string(raw)}
		return &provider.Response{Raw: raw, Error: "no message reference in output"}, rerr
	}
	return &provider.Response{Success: true, MessageID: string(m[1]), Raw: raw}, nil
}
