package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/notify"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	alice := &notify.Contact{ID: "alice", Attrs: map[string]string{"email": "alice@example.com"}}
	bob := &notify.Contact{ID: "bob"}
	r := FromContacts(alice, bob, nil)

	t.Run("resolve known id", func(t *testing.T) {
		got, err := r.Resolve(ctx, "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.RecipientID() != "alice" {
			t.Errorf("expected alice, got %s", got.RecipientID())
		}
	})

	t.Run("resolve unknown id", func(t *testing.T) {
		_, err := r.Resolve(ctx, "carol")
		if !errors.Is(err, notify.ErrRecipientNotFound) {
			t.Errorf("expected ErrRecipientNotFound, got %v", err)
		}
	})

	t.Run("batch keeps order and leaves gaps", func(t *testing.T) {
		got, err := r.ResolveBatch(ctx, []string{"bob", "carol", "alice"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(got))
		}
		if got[0].RecipientID() != "bob" || got[1] != nil || got[2].RecipientID() != "alice" {
			t.Errorf("unexpected batch result: %v", got)
		}
	})

	t.Run("source map is copied", func(t *testing.T) {
		src := map[string]notify.Recipient{"alice": alice}
		s := NewStatic(src)
		delete(src, "alice")
		if _, err := s.Resolve(ctx, "alice"); err != nil {
			t.Errorf("expected copy to keep alice: %v", err)
		}
	})
}
