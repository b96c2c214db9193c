package provider

import (
	"log/slog"
	"maps"
)

// Canonical names of the built-in drivers.
const (
	DriverTwilio       = "twilio"
	DriverNexmo        = "nexmo"
	DriverPlivo        = "plivo"
	DriverSMSFactor    = "smsfactor"
	DriverNetfun       = "netfun"
	DriverAgileTelecom = "agiletelecom"
	DriverGammu        = "gammu"
	Driver360Dialog    = "360dialog"
	DriverFacebook     = "facebook"
	DriverTelegram     = "telegram"
	DriverSES          = "ses"
	DriverSMTP         = "smtp"
)

// DefaultAliases maps normalized alternative names to canonical driver names.
func DefaultAliases() map[string]string {
	return map[string]string{
		"vonage":        DriverNexmo,
		"smsfac":        DriverSMSFactor,
		"agile":         DriverAgileTelecom,
		"dialog360":     Driver360Dialog,
		"d360":          Driver360Dialog,
		"whatsappcloud": DriverFacebook,
		"meta":          DriverFacebook,
		"telegrambot":   DriverTelegram,
		"amazonses":     DriverSES,
	}
}

// DefaultSupported lists the officially supported drivers per capability.
func DefaultSupported() map[Capability][]string {
	return map[Capability][]string{
		Mail: {DriverSES, DriverSMTP},
		SMS: {
			DriverTwilio, DriverNexmo, DriverPlivo, DriverSMSFactor,
			DriverNetfun, DriverAgileTelecom, DriverGammu,
		},
		WhatsApp: {DriverTwilio, Driver360Dialog, DriverFacebook},
		Telegram: {DriverTelegram},
	}
}

type registryOptions struct {
	aliases   map[string]string
	supported map[Capability][]string
	defaults  map[Capability]string
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

func newRegistryOptions(opts ...RegistryOption) *registryOptions {
	o := &registryOptions{
		aliases:   DefaultAliases(),
		supported: DefaultSupported(),
		defaults:  make(map[Capability]string),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDefaultDriver sets the driver used when Resolve is called without a name.
func WithDefaultDriver(c Capability, driver string) RegistryOption {
	return func(o *registryOptions) {
		o.defaults[c] = driver
	}
}

// WithDefaultDrivers sets several default drivers at once.
func WithDefaultDrivers(defaults map[Capability]string) RegistryOption {
	return func(o *registryOptions) {
		maps.Copy(o.defaults, defaults)
	}
}

// WithAlias maps an alternative name to a canonical driver name.
// The alias is normalized before it is stored.
func WithAlias(alias, canonical string) RegistryOption {
	return func(o *registryOptions) {
		o.aliases[Normalize(alias)] = canonical
	}
}

// WithSupported replaces the officially supported set for a capability.
func WithSupported(c Capability, drivers ...string) RegistryOption {
	return func(o *registryOptions) {
		o.supported[c] = drivers
	}
}

// WithLogger sets the logger used for support warnings.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
