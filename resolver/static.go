// Package resolver provides RecipientResolver implementations.
package resolver

import (
	"context"
	"fmt"
	"maps"

	"github.com/rbaliyan/notify"
)

// Static is a map-based RecipientResolver for testing and simple deployments.
// It resolves recipient IDs from an in-memory map. Safe for concurrent use (read-only after creation).
type Static struct {
	recipients map[string]notify.Recipient
}

var _ notify.RecipientResolver = (*Static)(nil)

// NewStatic creates a Static resolver from a map of recipient ID to Recipient.
// The map is copied to prevent external mutation.
func NewStatic(recipients map[string]notify.Recipient) *Static {
	return &Static{recipients: maps.Clone(recipients)}
}

// FromContacts creates a Static resolver keyed by contact ID.
func FromContacts(contacts ...*notify.Contact) *Static {
	m := make(map[string]notify.Recipient, len(contacts))
	for _, c := range contacts {
		if c != nil {
			m[c.ID] = c
		}
	}
	return &Static{recipients: m}
}

// Resolve returns the recipient for a single ID.
func (s *Static) Resolve(_ context.Context, id string) (notify.Recipient, error) {
	r, ok := s.recipients[id]
	if !ok || r == nil {
		return nil, fmt.Errorf("%w: %s", notify.ErrRecipientNotFound, id)
	}
	return r, nil
}

// ResolveBatch returns recipients for multiple IDs.
// Unknown IDs have nil entries in the returned slice.
func (s *Static) ResolveBatch(_ context.Context, ids []string) ([]notify.Recipient, error) {
	result := make([]notify.Recipient, len(ids))
	for i, id := range ids {
		if r, ok := s.recipients[id]; ok {
			result[i] = r
		}
	}
	return result, nil
}
