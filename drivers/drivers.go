// Package drivers registers the built-in provider drivers into a registry
// from a loaded configuration.
package drivers

import (
	"context"
	"log/slog"

	"github.com/rbaliyan/notify/config"
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
)

// primary is the capability whose timeout and debug flag a driver uses
// when its own configuration does not set them.
var primary = map[string]provider.Capability{
	provider.DriverTwilio:       provider.SMS,
	provider.DriverNexmo:        provider.SMS,
	provider.DriverPlivo:        provider.SMS,
	provider.DriverSMSFactor:    provider.SMS,
	provider.DriverNetfun:       provider.SMS,
	provider.DriverAgileTelecom: provider.SMS,
	provider.DriverGammu:        provider.SMS,
	provider.Driver360Dialog:    provider.WhatsApp,
	provider.DriverFacebook:     provider.WhatsApp,
	provider.DriverTelegram:     provider.Telegram,
	provider.DriverSES:          provider.Mail,
	provider.DriverSMTP:         provider.Mail,
}

type options struct {
	logger     *slog.Logger
	httpClient provider.HTTPDoer
}

// Option configures the built registry.
type Option func(*options)

// WithLogger sets the logger of the registry and of every driver.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client shared by the HTTP drivers.
func WithHTTPClient(c provider.HTTPDoer) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// NewRegistry builds a registry with the defaults, aliases and supported
// sets of cfg and registers every built-in driver.
func NewRegistry(cfg *config.Config, opts ...Option) (*provider.Registry, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	ropts := []provider.RegistryOption{
		provider.WithLogger(o.logger),
		provider.WithDefaultDrivers(cfg.DefaultDrivers()),
	}
	for alias, canonical := range cfg.Aliases {
		ropts = append(ropts, provider.WithAlias(alias, canonical))
	}
	for c, names := range cfg.Supported {
		ropts = append(ropts, provider.WithSupported(c, names...))
	}
	reg := provider.NewRegistry(ropts...)
	if err := Register(reg, cfg, opts...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds a factory for every built-in driver. Drivers without a
// configuration section are still registered; building them reports the
// first missing credential.
func Register(reg *provider.Registry, cfg *config.Config, opts ...Option) error {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	d := cfg.Drivers

	driverOpts := func(name string) []provider.DriverOption {
		ch := cfg.Channel(primary[name])
		return []provider.DriverOption{
			provider.WithDriverLogger(o.logger.With("driver", name)),
			provider.WithHTTPClient(o.httpClient),
			provider.WithTimeout(ch.Timeout),
			provider.WithDebug(ch.Debug),
		}
	}

	factories := map[string]provider.Factory{
		provider.DriverTwilio: func() (provider.Driver, error) {
			return twilio.New(deref(d.Twilio), driverOpts(provider.DriverTwilio)...)
		},
		provider.DriverNexmo: func() (provider.Driver, error) {
			return nexmo.New(deref(d.Nexmo), driverOpts(provider.DriverNexmo)...)
		},
		provider.DriverPlivo: func() (provider.Driver, error) {
			return plivo.New(deref(d.Plivo), driverOpts(provider.DriverPlivo)...)
		},
		provider.DriverSMSFactor: func() (provider.Driver, error) {
			return smsfactor.New(deref(d.SMSFactor), driverOpts(provider.DriverSMSFactor)...)
		},
		provider.DriverNetfun: func() (provider.Driver, error) {
			return netfun.New(deref(d.Netfun), driverOpts(provider.DriverNetfun)...)
		},
		provider.DriverAgileTelecom: func() (provider.Driver, error) {
			return agiletelecom.New(deref(d.AgileTelecom), driverOpts(provider.DriverAgileTelecom)...)
		},
		provider.DriverGammu: func() (provider.Driver, error) {
			return gammu.New(deref(d.Gammu), driverOpts(provider.DriverGammu)...)
		},
		provider.Driver360Dialog: func() (provider.Driver, error) {
			return dialog360.New(deref(d.Dialog360), driverOpts(provider.Driver360Dialog)...)
		},
		provider.DriverFacebook: func() (provider.Driver, error) {
			return facebook.New(deref(d.Facebook), driverOpts(provider.DriverFacebook)...)
		},
		provider.DriverTelegram: func() (provider.Driver, error) {
			return telegram.New(deref(d.Telegram), driverOpts(provider.DriverTelegram)...)
		},
		provider.DriverSES: func() (provider.Driver, error) {
			return ses.New(context.Background(), deref(d.SES), driverOpts(provider.DriverSES)...)
		},
		provider.DriverSMTP: func() (provider.Driver, error) {
			return smtp.New(deref(d.SMTP), driverOpts(provider.DriverSMTP)...)
		},
	}
	for name, f := range factories {
		if err := reg.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
