package notify

import (
	"context"
	"testing"

	"github.com/rbaliyan/notify/provider"
)

func TestContactResolverResolve(t *testing.T) {
	r := NewContactResolver()
	ctx := context.Background()

	tests := []struct {
		name    string
		channel provider.Capability
		rcpt    Recipient
		want    string
		wantOK  bool
	}{
		{"mail attribute", provider.Mail, contact("u1", map[string]string{"email": "mario@example.com"}), "mario@example.com", true},
		{"mail display name stripped", provider.Mail, contact("u1", map[string]string{"email": "Mario Rossi <mario@example.com>"}), "mario@example.com", true},
		{"mail later candidate", provider.Mail, contact("u1", map[string]string{"contact_email": " mario@example.com "}), "mario@example.com", true},
		{"mail invalid", provider.Mail, contact("u1", map[string]string{"email": "not-an-address"}), "", false},
		{"mail first non-empty wins even if invalid", provider.Mail, contact("u1", map[string]string{"email": "broken", "mail": "mario@example.com"}), "", false},
		{"mail blank attribute skipped", provider.Mail, contact("u1", map[string]string{"email": "  ", "mail": "mario@example.com"}), "mario@example.com", true},
		{"mail absent", provider.Mail, contact("u1", nil), "", false},
		{"sms double zero", provider.SMS, contact("u1", map[string]string{"phone": "0039333123456"}), "+39333123456", true},
		{"sms national", provider.SMS, contact("u1", map[string]string{"mobile": "333 1234567"}), "+393331234567", true},
		{"sms unusable number", provider.SMS, contact("u1", map[string]string{"phone": "n/a"}), "", false},
		{"whatsapp own attribute first", provider.WhatsApp, contact("u1", map[string]string{"whatsapp": "+441234567890", "phone": "3331234567"}), "+441234567890", true},
		{"whatsapp falls back to phone", provider.WhatsApp, contact("u1", map[string]string{"phone": "3331234567"}), "+393331234567", true},
		{"telegram raw chat id", provider.Telegram, contact("u1", map[string]string{"telegram_chat_id": "-100200300"}), "-100200300", true},
		{"routable mail", provider.Mail, routedRecipient{id: "u2", email: "luigi@example.com"}, "luigi@example.com", true},
		{"routable sms", provider.SMS, routedRecipient{id: "u2", phone: "0039333123456"}, "+39333123456", true},
		{"routable empty", provider.Mail, routedRecipient{id: "u2"}, "", false},
		{"no routable for telegram", provider.Telegram, routedRecipient{id: "u2", email: "luigi@example.com"}, "", false},
		{"nil recipient", provider.Mail, nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(ctx, tt.channel, tt.rcpt)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Resolve() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestContactResolverOptions(t *testing.T) {
	t.Run("country code", func(t *testing.T) {
		r := NewContactResolver(WithCountryCode("33"))
		got, ok := r.Resolve(context.Background(), provider.SMS, contact("u1", map[string]string{"phone": "0612345678"}))
		if !ok || got != "+33612345678" {
			t.Errorf("Resolve() = (%q, %v), want +33612345678", got, ok)
		}
	})

	t.Run("empty country code keeps default", func(t *testing.T) {
		r := NewContactResolver(WithCountryCode(""))
		got, _ := r.Resolve(context.Background(), provider.SMS, contact("u1", map[string]string{"phone": "3331234567"}))
		if got != "+393331234567" {
			t.Errorf("expected default country code, got %q", got)
		}
	})

	t.Run("custom attributes", func(t *testing.T) {
		r := NewContactResolver(WithAttributes(provider.Mail, "work_email"))
		rcpt := contact("u1", map[string]string{"email": "home@example.com", "work_email": "work@example.com"})
		got, ok := r.Resolve(context.Background(), provider.Mail, rcpt)
		if !ok || got != "work@example.com" {
			t.Errorf("Resolve() = (%q, %v), want work@example.com", got, ok)
		}
	})

	t.Run("candidates are copied", func(t *testing.T) {
		r := NewContactResolver()
		c := r.Candidates()
		c[provider.Mail][0] = "changed"
		if r.Candidates()[provider.Mail][0] != "email" {
			t.Error("Candidates must return a copy")
		}
	})
}
