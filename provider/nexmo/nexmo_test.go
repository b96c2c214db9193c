package nexmo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rbaliyan/notify/provider"
)

func TestNew(t *testing.T) {
	if _, err := New(Config{APISecret: "s", From: "ACME"}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
	if _, err := New(Config{APIKey: "k", APISecret: "s"}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential for missing from, got %v", err)
	}
}

func TestSendSMS(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		text    string
		wantOK  bool
		wantID  string
		wantErr string
	}{
		{
			name:   "accepted",
			reply:  `{"message-count":"1","messages":[{"to":"393331234567","message-id":"0A01","status":"0"}]}`,
			text:   "Hello",
			wantOK: true,
			wantID: "0A01",
		},
		{
			name:    "rejected part",
			reply:   `{"message-count":"1","messages":[{"status":"2","error-text":"Missing to param"}]}`,
			text:    "Hello",
			wantErr: "Missing to param",
		},
		{
			name:   "unicode text",
			reply:  `{"message-count":"1","messages":[{"message-id":"0A02","status":"0"}]}`,
			text:   "Ciao è",
			wantOK: true,
			wantID: "0A02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				if r.URL.Path != "/sms/json" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if !strings.Contains(string(body), `"to":"393331234567"`) {
					t.Errorf("expected number without plus, got %s", body)
				}
				unicode := strings.Contains(string(body), `"type":"unicode"`)
				if unicode != (tt.text != "Hello") {
					t.Errorf("unexpected type in %s", body)
				}
				_, _ = w.Write([]byte(tt.reply))
			}))
			defer srv.Close()

			c, err := New(Config{APIKey: "k", APISecret: "s", From: "ACME", BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+393331234567", Text: tt.text})
			if tt.wantOK {
				if err != nil || !resp.Success || resp.MessageID != tt.wantID {
					t.Fatalf("unexpected result %+v, %v", resp, err)
				}
				return
			}
			if !errors.Is(err, provider.ErrRequestFailed) {
				t.Fatalf("expected ErrRequestFailed, got %v", err)
			}
			if !strings.Contains(resp.Error, tt.wantErr) {
				t.Errorf("expected error %q, got %q", tt.wantErr, resp.Error)
			}
		})
	}
}
