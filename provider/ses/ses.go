// Package ses delivers mail through Amazon SES (API v2).
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/rbaliyan/notify/provider"
)

// DefaultRegion is used when the configuration does not name one.
const DefaultRegion = "us-east-1"

// Config holds SES settings. Static credentials are optional; without them
// the default AWS credential chain is used.
type Config struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	From            string `yaml:"from"`
	FromName        string `yaml:"from_name"`
	// ConfigurationSet is attached to every send when set.
	ConfigurationSet string        `yaml:"configuration_set"`
	Endpoint         string        `yaml:"endpoint"`
	Timeout          time.Duration `yaml:"timeout"`
	Debug            bool          `yaml:"debug"`
}

// API is the subset of the SES client used by the driver.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

var _ API = (*sesv2.Client)(nil)

// Client is the SES driver.
type Client struct {
	cfg     Config
	api     API
	timeout time.Duration
	logger  *slog.Logger
	debug   bool
}

var _ provider.MailSender = (*Client)(nil)

// New loads the AWS configuration and creates a driver.
func New(ctx context.Context, cfg Config, opts ...provider.DriverOption) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	case cfg.AccessKeyID != "":
		return nil, provider.MissingCredential(provider.DriverSES, "secret_access_key")
	}
	o := provider.NewDriverOptions(opts...)
	if o.HTTPClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(o.HTTPClient))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	api := sesv2.NewFromConfig(awsCfg, func(so *sesv2.Options) {
		if cfg.Endpoint != "" {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(api, cfg, opts...)
}

// NewWithAPI creates a driver over an existing SES client.
func NewWithAPI(api API, cfg Config, opts ...provider.DriverOption) (*Client, error) {
	if api == nil {
		return nil, errors.New("ses: nil api")
	}
	o := provider.NewDriverOptions(opts...)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = o.Timeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, api: api, timeout: timeout, logger: o.Logger, debug: cfg.Debug || o.Debug}, nil
}

// Name returns the canonical driver name.
func (c *Client) Name() string { return provider.DriverSES }

// SendMail sends a simple message with text and HTML parts.
func (c *Client) SendMail(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	from, name := msg.From, msg.FromName
	if from == "" {
		from = c.cfg.From
	}
	if name == "" {
		name = c.cfg.FromName
	}
	if from == "" {
		return nil, provider.MissingCredential(provider.DriverSES, "from")
	}

	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = content(msg.HTML)
	}
	if msg.Text != "" || msg.HTML == "" {
		body.Text = content(msg.Text)
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(address(name, from)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: content(msg.Subject), Body: body},
		},
	}
	if c.cfg.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(c.cfg.ConfigurationSet)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.debug {
		c.logger.Debug("provider request", "driver", provider.DriverSES, "from", from, "subject", msg.Subject)
	}
	out, err := c.api.SendEmail(ctx, in)
	if err != nil {
		rerr := &provider.RequestError{Driver: provider.DriverSES, Op: "SendEmail", Err: err}
		var re *awshttp.ResponseError
		if errors.As(err, &re) {
			rerr.StatusCode = re.HTTPStatusCode()
		}
		return &provider.Response{StatusCode: rerr.StatusCode, Error: err.Error()}, rerr
	}
	return &provider.Response{Success: true, MessageID: aws.ToString(out.MessageId), StatusCode: 200}, nil
}

func content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func address(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", name), email)
}
