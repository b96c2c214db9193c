package notify

import (
	"fmt"
	"maps"

	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/theme"
)

// TemplateKey identifies a template row, apart from the recipient language.
type TemplateKey struct {
	Language    string
	Type        string
	SubjectType string
	SubjectID   string
}

// Notification describes what to send and on which channels.
type Notification struct {
	Template TemplateKey
	Channels []provider.Capability
	// Params are merged into the render context of every recipient.
	Params map[string]any
}

// Validate checks the notification before any recipient is processed.
func (n Notification) Validate() error {
	if len(n.Channels) == 0 {
		return ErrNoChannels
	}
	seen := make(map[provider.Capability]bool, len(n.Channels))
	for _, c := range n.Channels {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidChannel, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: %s", ErrDuplicateChannel, c)
		}
		seen[c] = true
	}
	t := n.Template
	if t.Language == "" || t.Type == "" || t.SubjectType == "" || t.SubjectID == "" {
		return ErrInvalidTemplate
	}
	return nil
}

// request builds the render request for one recipient. The recipient
// language and params apply unless the notification overrides them.
func (n Notification) request(rcpt Recipient) theme.Request {
	req := theme.Request{
		Language:    n.Template.Language,
		Type:        n.Template.Type,
		SubjectType: n.Template.SubjectType,
		SubjectID:   n.Template.SubjectID,
	}
	if l, ok := rcpt.(Localized); ok {
		if lang := l.PreferredLanguage(); lang != "" {
			req.Language = lang
		}
	}

	params := make(map[string]any)
	if p, ok := rcpt.(Parameterized); ok {
		maps.Copy(params, p.NotificationParams())
	}
	maps.Copy(params, n.Params)
	req.Params = params
	return req
}
