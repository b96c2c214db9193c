// Package smtp delivers mail through an SMTP relay.
package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rbaliyan/notify/internal/ids"
	"github.com/rbaliyan/notify/provider"
)

// DefaultPort is the submission port.
const DefaultPort = 587

// Config holds relay settings.
type Config struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	FromName string        `yaml:"from_name"`
	Timeout  time.Duration `yaml:"timeout"`
	Debug    bool          `yaml:"debug"`
}

// sendMailHook lets tests replace the relay.
var sendMailHook = smtp.SendMail

// Client is the SMTP driver.
type Client struct {
	cfg     Config
	timeout time.Duration
}

var _ provider.MailSender = (*Client)(nil)

// New validates cfg and creates a driver.
func New(cfg Config, opts ...provider.DriverOption) (*Client, error) {
	if cfg.Host == "" {
		return nil, provider.MissingCredential(provider.DriverSMTP, "host")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	o := provider.NewDriverOptions(opts...)
	c := &Client{cfg: cfg, timeout: cfg.Timeout}
	if c.timeout <= 0 {
		c.timeout = o.Timeout
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	return c, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverSMTP }

// SendMail composes a MIME message and hands it to the relay.
// smtp.SendMail has no context, so the call runs in a goroutine bounded by
// the configured timeout.
func (c *Client) SendMail(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	from, name := msg.From, msg.FromName
	if from == "" {
		from = c.cfg.From
	}
	if name == "" {
		name = c.cfg.FromName
	}
	if from == "" {
		return nil, provider.MissingCredential(provider.DriverSMTP, "from")
	}

	id := fmt.Sprintf("<%s@%s>", ids.NewBatchID(), c.cfg.Host)
	raw, err := compose(id, mail.Address{Name: name, Address: from}, msg)
	if err != nil {
		return nil, fmt.Errorf("smtp: compose: %w", err)
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	done := make(chan error, 1)
	send := sendMailHook
	go func() { done <- send(addr, auth, from, []string{msg.To}, raw) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		rerr := &provider.RequestError{Driver: provider.DriverSMTP, Op: "send " + addr, Err: err}
		var perr *textproto.Error
		if errors.As(err, &perr) {
			rerr.StatusCode = perr.Code
		}
		return &provider.Response{StatusCode: rerr.StatusCode, Error: err.Error()}, rerr
	}
	return &provider.Response{Success: true, MessageID: id, StatusCode: 250}, nil
}

func compose(id string, from mail.Address, msg *provider.Message) ([]byte, error) {
	var buf bytes.Buffer
	h := textproto.MIMEHeader{}
	h.Set("Message-ID", id)
	h.Set("Date", time.Now().UTC().Format(time.RFC1123Z))
	h.Set("From", from.String())
	h.Set("To", msg.To)
	h.Set("Subject", mime.QEncoding.Encode("UTF-8", msg.Subject))
	h.Set("MIME-Version", "1.0")

	if msg.HTML == "" {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
		writeHeader(&buf, h)
		buf.WriteString(msg.Text)
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h.Set("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	writeHeader(&buf, h)

	for _, part := range []struct{ ctype, data string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		if part.data == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.data)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

var headerOrder = []string{"Message-ID", "Date", "From", "To", "Subject", "MIME-Version", "Content-Type"}

func writeHeader(buf *bytes.Buffer, h textproto.MIMEHeader) {
	for _, k := range headerOrder {
		if v := h.Get(k); v != "" {
			buf.WriteString(k + ": " + strings.ReplaceAll(v, "\r\n", "") + "\r\n")
		}
	}
	buf.WriteString("\r\n")
}
