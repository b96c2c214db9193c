// Package config loads the declarative notification configuration: the
// default driver per capability, per-driver credentials, and the timeout,
// debug and retry settings of each capability.
//
// Configuration is YAML. Values may reference environment variables as
// ${NAME} or ${NAME:-fallback}; dotenv files are loaded first so secrets
// can live outside the YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/provider/agiletelecom"
	"github.com/rbaliyan/notify/provider/dialog360"
	"github.com/rbaliyan/notify/provider/facebook"
	"github.com/rbaliyan/notify/provider/gammu"
	"github.com/rbaliyan/notify/provider/netfun"
	"github.com/rbaliyan/notify/provider/nexmo"
	"github.com/rbaliyan/notify/provider/plivo"
	"github.com/rbaliyan/notify/provider/ses"
	"github.com/rbaliyan/notify/provider/smsfactor"
	"github.com/rbaliyan/notify/provider/smtp"
	"github.com/rbaliyan/notify/provider/telegram"
	"github.com/rbaliyan/notify/provider/twilio"
	"github.com/rbaliyan/notify/retry"
)

// DefaultTimeout is the per-capability call timeout.
const DefaultTimeout = 30 * time.Second

// DefaultCountryCode is prepended to national phone numbers.
const DefaultCountryCode = "39"

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root of the configuration file.
type Config struct {
	// CountryCode is the default country code for phone normalization.
	CountryCode string `yaml:"country_code"`

	Mail     Channel `yaml:"mail"`
	SMS      Channel `yaml:"sms"`
	WhatsApp Channel `yaml:"whatsapp"`
	Telegram Channel `yaml:"telegram"`

	// Supported overrides the officially supported drivers per capability.
	Supported map[provider.Capability][]string `yaml:"supported"`
	// Aliases adds driver name aliases (alias -> canonical).
	Aliases map[string]string `yaml:"aliases"`

	Drivers Drivers `yaml:"drivers"`
}

// Channel holds the settings of one capability.
type Channel struct {
	// Driver is the default driver name. Aliases are accepted.
	Driver  string        `yaml:"driver"`
	Timeout time.Duration `yaml:"timeout"`
	Debug   bool          `yaml:"debug"`
	Retry   RetryPolicy   `yaml:"retry"`
}

// RetryPolicy is declared per capability. Dispatch does not apply it; queue
// layers read it through Config.
type RetryPolicy struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Config converts the policy to a retry schedule. A zero policy means a
// single attempt.
func (p RetryPolicy) Config() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Attempts = max(p.Attempts, 1)
	if p.Delay > 0 {
		cfg.Delay = p.Delay
	}
	return cfg
}

// Drivers holds per-driver credentials. A nil entry means the driver is
// not configured.
type Drivers struct {
	Twilio       *twilio.Config       `yaml:"twilio"`
	Nexmo        *nexmo.Config        `yaml:"nexmo"`
	Plivo        *plivo.Config        `yaml:"plivo"`
	SMSFactor    *smsfactor.Config    `yaml:"smsfactor"`
	Netfun       *netfun.Config       `yaml:"netfun"`
	AgileTelecom *agiletelecom.Config `yaml:"agiletelecom"`
	Gammu        *gammu.Config        `yaml:"gammu"`
	Dialog360    *dialog360.Config    `yaml:"360dialog"`
	Facebook     *facebook.Config     `yaml:"facebook"`
	Telegram     *telegram.Config     `yaml:"telegram"`
	SES          *ses.Config          `yaml:"ses"`
	SMTP         *smtp.Config         `yaml:"smtp"`
}

// Channel returns the settings of capability c.
func (c *Config) Channel(capability provider.Capability) Channel {
	switch capability {
	case provider.Mail:
		return c.Mail
	case provider.SMS:
		return c.SMS
	case provider.WhatsApp:
		return c.WhatsApp
	case provider.Telegram:
		return c.Telegram
	}
	return Channel{Timeout: DefaultTimeout}
}

// DefaultDrivers returns the configured default driver per capability.
func (c *Config) DefaultDrivers() map[provider.Capability]string {
	out := make(map[provider.Capability]string)
	for _, capability := range provider.Capabilities() {
		if d := c.Channel(capability).Driver; d != "" {
			out[capability] = d
		}
	}
	return out
}

// Load reads dotenv files, then the YAML file at path.
// Missing dotenv files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load env file %s: %w", f, err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML data, expands environment references and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(Expand(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CountryCode == "" {
		c.CountryCode = DefaultCountryCode
	}
	for _, ch := range []*Channel{&c.Mail, &c.SMS, &c.WhatsApp, &c.Telegram} {
		if ch.Timeout <= 0 {
			ch.Timeout = DefaultTimeout
		}
	}
}

// Validate checks the capability keys of Supported and the retry policies.
func (c *Config) Validate() error {
	for capability := range c.Supported {
		if !capability.Valid() {
			return fmt.Errorf("%w: unknown capability %q in supported", ErrInvalidConfig, capability)
		}
	}
	for _, capability := range provider.Capabilities() {
		ch := c.Channel(capability)
		if ch.Retry.Attempts < 0 || ch.Retry.Delay < 0 {
			return fmt.Errorf("%w: negative retry policy for %s", ErrInvalidConfig, capability)
		}
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Expand replaces ${NAME} and ${NAME:-fallback} with environment values.
// Unset variables without a fallback expand to the empty string.
func Expand(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}
