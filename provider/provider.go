// Package provider defines the delivery contracts implemented by drivers and
// the registry that resolves a capability and driver name to a sender.
//
// A driver is a named implementation (twilio, nexmo, telegram, ...). It
// satisfies one capability contract per channel it can deliver to:
//
//	type SMSSender interface {
//	    SendSMS(ctx context.Context, msg *Message) (*Response, error)
//	}
//
// Drivers are built by factories registered in a [Registry]. Resolution binds
// the driver to the requested capability and returns a [Sender].
package provider

import "context"

// Capability is a notification channel kind.
type Capability string

// Supported capabilities.
const (
	Mail     Capability = "mail"
	SMS      Capability = "sms"
	WhatsApp Capability = "whatsapp"
	Telegram Capability = "telegram"
)

// Capabilities returns every known capability.
func Capabilities() []Capability {
	return []Capability{Mail, SMS, WhatsApp, Telegram}
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case Mail, SMS, WhatsApp, Telegram:
		return true
	}
	return false
}

func (c Capability) String() string { return string(c) }

// Message is the channel payload handed to a driver.
type Message struct {
	// To is the canonical address: an email, an E.164-like phone, or a chat id.
	To string
	// From overrides the driver's configured sender when set.
	From string
	// FromName is the display name of the sender (mail only).
	FromName string
	// Subject is used by the mail channel.
	Subject string
	// Text is the plain text body.
	Text string
	// HTML is the HTML body (mail only).
	HTML string
	// Metadata carries driver-specific hints.
	Metadata map[string]string
}

// Response is the outcome reported by a driver.
//
// Drivers return a non-nil Response whenever the provider answered, even when
// the send failed, so the raw payload can be recorded alongside the error.
type Response struct {
	Success    bool
	MessageID  string
	StatusCode int
	Raw        []byte
	Error      string
}

// Driver is the common interface of every provider implementation.
type Driver interface {
	// Name returns the canonical driver name.
	Name() string
}

// MailSender delivers mail messages.
type MailSender interface {
	SendMail(ctx context.Context, msg *Message) (*Response, error)
}

// SMSSender delivers SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, msg *Message) (*Response, error)
}

// WhatsAppSender delivers WhatsApp messages.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, msg *Message) (*Response, error)
}

// TelegramSender delivers Telegram messages.
type TelegramSender interface {
	SendTelegram(ctx context.Context, msg *Message) (*Response, error)
}

// Sender is a driver bound to one capability.
type Sender interface {
	// Driver returns the canonical driver name.
	Driver() string
	// Capability returns the capability the sender is bound to.
	Capability() Capability
	// Send delivers msg.
	Send(ctx context.Context, msg *Message) (*Response, error)
}

type sendFunc func(ctx context.Context, msg *Message) (*Response, error)

type boundSender struct {
	driver     string
	capability Capability
	send       sendFunc
}

func (s *boundSender) Driver() string         { return s.driver }
func (s *boundSender) Capability() Capability { return s.capability }

func (s *boundSender) Send(ctx context.Context, msg *Message) (*Response, error) {
	return s.send(ctx, msg)
}

// Bind returns d as a Sender for capability c.
// It returns ErrContractViolation when d does not implement the contract of c.
func Bind(c Capability, d Driver) (Sender, error) {
	var fn sendFunc
	switch c {
	case Mail:
		if s, ok := d.(MailSender); ok {
			fn = s.SendMail
		}
	case SMS:
		if s, ok := d.(SMSSender); ok {
			fn = s.SendSMS
		}
	case WhatsApp:
		if s, ok := d.(WhatsAppSender); ok {
			fn = s.SendWhatsApp
		}
	case Telegram:
		if s, ok := d.(TelegramSender); ok {
			fn = s.SendTelegram
		}
	default:
		return nil, ErrUnknownCapability
	}
	if fn == nil {
		return nil, &DriverError{
			Capability: c,
			Requested:  d.Name(),
			Canonical:  d.Name(),
			Err:        ErrContractViolation,
		}
	}
	return &boundSender{driver: d.Name(), capability: c, send: fn}, nil
}

// Supports reports whether d implements the contract of c.
func Supports(d Driver, c Capability) bool {
	switch c {
	case Mail:
		_, ok := d.(MailSender)
		return ok
	case SMS:
		_, ok := d.(SMSSender)
		return ok
	case WhatsApp:
		_, ok := d.(WhatsAppSender)
		return ok
	case Telegram:
		_, ok := d.(TelegramSender)
		return ok
	}
	return false
}
