package notify

import (
	"context"
	"maps"
	"net/mail"
	"slices"
	"strings"

	"github.com/rbaliyan/notify/config"
	"github.com/rbaliyan/notify/phone"
	"github.com/rbaliyan/notify/provider"
)

// Default attribute names tried, in order, for each channel.
var (
	DefaultMailAttributes     = []string{"email", "mail", "email_address", "contact_email"}
	DefaultPhoneAttributes    = []string{"phone", "mobile", "telephone", "contact_phone"}
	DefaultWhatsAppAttributes = append([]string{"whatsapp"}, DefaultPhoneAttributes...)
	DefaultTelegramAttributes = []string{"telegram_chat_id", "telegram", "chat_id"}
)

// DefaultAttributes returns the default attribute candidates per channel.
func DefaultAttributes() map[provider.Capability][]string {
	return map[provider.Capability][]string{
		provider.Mail:     slices.Clone(DefaultMailAttributes),
		provider.SMS:      slices.Clone(DefaultPhoneAttributes),
		provider.WhatsApp: slices.Clone(DefaultWhatsAppAttributes),
		provider.Telegram: slices.Clone(DefaultTelegramAttributes),
	}
}

// ContactResolver resolves the address of a recipient for a channel.
//
// The first non-empty attribute among the channel candidates wins. When no
// attribute is set, the matching Routable interface is asked. Mail addresses
// must parse as RFC 5322 addresses; phone numbers are normalized with the
// default country code. An absent address is not an error: the caller skips
// the channel.
type ContactResolver struct {
	candidates  map[provider.Capability][]string
	countryCode string
}

// ContactOption configures a ContactResolver.
type ContactOption func(*ContactResolver)

// WithCountryCode sets the default country code used for national numbers.
func WithCountryCode(cc string) ContactOption {
	return func(r *ContactResolver) {
		if cc != "" {
			r.countryCode = cc
		}
	}
}

// WithAttributes replaces the attribute candidates of a channel.
func WithAttributes(c provider.Capability, names ...string) ContactOption {
	return func(r *ContactResolver) {
		r.candidates[c] = slices.Clone(names)
	}
}

// NewContactResolver creates a resolver with the default candidates.
func NewContactResolver(opts ...ContactOption) *ContactResolver {
	r := &ContactResolver{
		candidates:  DefaultAttributes(),
		countryCode: config.DefaultCountryCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates returns a copy of the attribute candidates per channel.
func (r *ContactResolver) Candidates() map[provider.Capability][]string {
	out := maps.Clone(r.candidates)
	for c, names := range out {
		out[c] = slices.Clone(names)
	}
	return out
}

// Resolve returns the canonical address of rcpt for channel c.
// ok is false when the recipient has no usable address.
func (r *ContactResolver) Resolve(ctx context.Context, c provider.Capability, rcpt Recipient) (addr string, ok bool) {
	if rcpt == nil {
		return "", false
	}
	raw := r.attribute(c, rcpt)
	if raw == "" {
		raw = strings.TrimSpace(route(ctx, c, rcpt))
	}
	if raw == "" {
		return "", false
	}

	switch c {
	case provider.Mail:
		parsed, err := mail.ParseAddress(raw)
		if err != nil {
			return "", false
		}
		return parsed.Address, true
	case provider.SMS, provider.WhatsApp:
		n := phone.Normalize(raw, r.countryCode)
		return n, n != ""
	}
	return raw, true
}

func (r *ContactResolver) attribute(c provider.Capability, rcpt Recipient) string {
	attrs, ok := rcpt.(Attributes)
	if !ok {
		return ""
	}
	for _, name := range r.candidates[c] {
		if v, ok := attrs.Attribute(name); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func route(ctx context.Context, c provider.Capability, rcpt Recipient) string {
	switch c {
	case provider.Mail:
		if rt, ok := rcpt.(MailRoutable); ok {
			return rt.RouteMail(ctx)
		}
	case provider.SMS:
		if rt, ok := rcpt.(SMSRoutable); ok {
			return rt.RouteSMS(ctx)
		}
	case provider.WhatsApp:
		if rt, ok := rcpt.(WhatsAppRoutable); ok {
			return rt.RouteWhatsApp(ctx)
		}
	case provider.Telegram:
		if rt, ok := rcpt.(TelegramRoutable); ok {
			return rt.RouteTelegram(ctx)
		}
	}
	return ""
}
