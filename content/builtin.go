package content

import (
	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/segment"
	"github.com/rbaliyan/notify/theme"
)

// Channel limits.
const (
	// DefaultSMSSegments caps an SMS body.
	DefaultSMSSegments = 10
	// MaxChatRunes is the text limit of WhatsApp and Telegram messages.
	MaxChatRunes = 4096
)

// DefaultRegistry returns a registry with the built-in formatters.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Mail{},
		SMS{MaxSegments: DefaultSMSSegments},
		Chat{Channel: provider.WhatsApp, MaxRunes: MaxChatRunes},
		Chat{Channel: provider.Telegram, MaxRunes: MaxChatRunes},
	)
}

// Mail sends the HTML body with a plain text alternative.
type Mail struct{}

func (Mail) Capability() provider.Capability { return provider.Mail }

func (Mail) Format(c *theme.Content) (*provider.Message, error) {
	msg := base(c)
	msg.Subject = c.Subject
	msg.HTML = c.BodyHTML
	msg.Text = PlainText(c.BodyHTML)
	return msg, nil
}

// SMS sends the plain text body truncated to MaxSegments parts.
// A non-positive MaxSegments disables the cap.
type SMS struct {
	MaxSegments int
}

func (SMS) Capability() provider.Capability { return provider.SMS }

func (f SMS) Format(c *theme.Content) (*provider.Message, error) {
	text := segment.Truncate(PlainText(c.BodyHTML), f.MaxSegments)
	if text == "" {
		return nil, ErrEmptyBody
	}
	msg := base(c)
	msg.Text = text
	return msg, nil
}

// Chat sends the plain text body truncated to MaxRunes characters.
// A non-positive MaxRunes disables the cap.
type Chat struct {
	Channel  provider.Capability
	MaxRunes int
}

func (f Chat) Capability() provider.Capability { return f.Channel }

func (f Chat) Format(c *theme.Content) (*provider.Message, error) {
	text := TruncateRunes(PlainText(c.BodyHTML), f.MaxRunes)
	if text == "" {
		return nil, ErrEmptyBody
	}
	msg := base(c)
	msg.Text = text
	return msg, nil
}

func base(c *theme.Content) *provider.Message {
	return &provider.Message{
		From:     c.FromAddress,
		FromName: c.FromName,
		Metadata: map[string]string{
			MetaTemplateID: c.TemplateID,
			MetaTheme:      c.Theme,
		},
	}
}
