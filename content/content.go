// Package content turns rendered template content into the payload of each
// channel.
//
// Mail keeps the HTML body and gets a plain text alternative. Text channels
// get the plain text rendition of the body, capped to what the channel
// accepts: SMS by segment count, WhatsApp and Telegram by characters.
//
// Formatters are looked up by capability in a [Registry]:
//
//	reg := content.DefaultRegistry()
//	msg, err := reg.Format(provider.SMS, rendered)
package content

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/theme"
)

// Metadata keys set on every formatted message.
const (
	MetaTemplateID = "template_id"
	MetaTheme      = "theme"
)

var (
	// ErrUnsupportedCapability is returned when no formatter is registered
	// for a capability.
	ErrUnsupportedCapability = errors.New("content: unsupported capability")

	// ErrEmptyBody is returned when a text channel would send an empty body.
	ErrEmptyBody = errors.New("content: empty body")

	// ErrNoContent is returned when there is no rendered content to format.
	ErrNoContent = errors.New("content: no rendered content")
)

// Formatter builds the channel payload of one capability. The To field of
// the returned message is left for the caller.
type Formatter interface {
	Capability() provider.Capability
	Format(c *theme.Content) (*provider.Message, error)
}

// Registry maps capabilities to formatters.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	formatters map[provider.Capability]Formatter
}

// NewRegistry creates a registry pre-loaded with the given formatters.
func NewRegistry(formatters ...Formatter) *Registry {
	r := &Registry{formatters: make(map[provider.Capability]Formatter, len(formatters))}
	for _, f := range formatters {
		r.formatters[f.Capability()] = f
	}
	return r
}

// Register adds a formatter, replacing any previous one for its capability.
func (r *Registry) Register(f Formatter) {
	r.mu.Lock()
	r.formatters[f.Capability()] = f
	r.mu.Unlock()
}

// Lookup returns the formatter for c.
func (r *Registry) Lookup(c provider.Capability) (Formatter, bool) {
	r.mu.RLock()
	f, ok := r.formatters[c]
	r.mu.RUnlock()
	return f, ok
}

// Format builds the payload of capability c from rendered content.
func (r *Registry) Format(c provider.Capability, rendered *theme.Content) (*provider.Message, error) {
	f, ok := r.Lookup(c)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCapability, c)
	}
	if rendered == nil {
		return nil, ErrNoContent
	}
	return f.Format(rendered)
}
