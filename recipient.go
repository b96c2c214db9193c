package notify

import (
	"context"
	"maps"
)

// Recipient is an entity that can be notified.
type Recipient interface {
	// RecipientID identifies the recipient in results, logs and events.
	RecipientID() string
}

// Attributes exposes named recipient attributes used for address lookup.
// Attribute returns false when the attribute is not set.
type Attributes interface {
	Attribute(name string) (string, bool)
}

// MailRoutable supplies a mail address when no attribute carries one.
type MailRoutable interface {
	RouteMail(ctx context.Context) string
}

// SMSRoutable supplies a phone number for SMS when no attribute carries one.
type SMSRoutable interface {
	RouteSMS(ctx context.Context) string
}

// WhatsAppRoutable supplies a phone number for WhatsApp when no attribute carries one.
type WhatsAppRoutable interface {
	RouteWhatsApp(ctx context.Context) string
}

// TelegramRoutable supplies a chat id when no attribute carries one.
type TelegramRoutable interface {
	RouteTelegram(ctx context.Context) string
}

// Localized is implemented by recipients with a preferred language. It
// overrides the template language of a notification.
type Localized interface {
	PreferredLanguage() string
}

// Parameterized is implemented by recipients that contribute render
// parameters. Notification params take precedence over them.
type Parameterized interface {
	NotificationParams() map[string]any
}

// Contact is a plain Recipient backed by an attribute map.
type Contact struct {
	ID       string
	Language string
	Attrs    map[string]string
	Params   map[string]any
}

var (
	_ Recipient     = (*Contact)(nil)
	_ Attributes    = (*Contact)(nil)
	_ Localized     = (*Contact)(nil)
	_ Parameterized = (*Contact)(nil)
)

// RecipientID returns the contact ID. A nil contact has an empty ID and is
// rejected as an invalid recipient.
func (c *Contact) RecipientID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

// Attribute returns a named attribute.
func (c *Contact) Attribute(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.Attrs[name]
	return v, ok
}

// PreferredLanguage returns the contact language, or "" to keep the
// notification language.
func (c *Contact) PreferredLanguage() string {
	if c == nil {
		return ""
	}
	return c.Language
}

// NotificationParams returns a copy of the contact params.
func (c *Contact) NotificationParams() map[string]any {
	if c == nil {
		return nil
	}
	return maps.Clone(c.Params)
}

// RecipientResolver maps recipient IDs to recipients.
// Implementations should be safe for concurrent use.
type RecipientResolver interface {
	// Resolve returns the recipient for a single ID.
	// Returns ErrRecipientNotFound if the ID is unknown.
	Resolve(ctx context.Context, id string) (Recipient, error)

	// ResolveBatch returns recipients for multiple IDs.
	// Returns results in the same order as input. Unknown IDs have nil entries.
	ResolveBatch(ctx context.Context, ids []string) ([]Recipient, error)
}

// isValidRecipientID checks that an ID is non-empty and free of control
// characters, so it can be used as a log value and an event field.
func isValidRecipientID(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < 32 || c == 127 {
			return false
		}
	}
	return true
}
