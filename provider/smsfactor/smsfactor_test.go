package smsfactor

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
	if _, err := New(Config{}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}

func TestSendSMS(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		wantOK bool
	}{
		{"accepted", `{"status":1,"message":"OK","ticket":"14672468"}`, true},
		{"rejected", `{"status":-7,"message":"Error","details":"Invalid gsm"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer tok" {
					t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
				}
				body, _ := io.ReadAll(r.Body)
				if !strings.Contains(string(body), `"gsm":[{"value":"393331234567"}]`) {
					t.Errorf("unexpected body %s", body)
				}
				_, _ = w.Write([]byte(tt.reply))
			}))
			defer srv.Close()

			c, err := New(Config{Token: "tok", Sender: "ACME", BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+393331234567", Text: "Hi"})
			if tt.wantOK {
				if err != nil || resp.MessageID != "14672468" {
					t.Fatalf("unexpected result %+v, %v", resp, err)
				}
				return
			}
			if !errors.Is(err, provider.ErrRequestFailed) || !strings.Contains(resp.Error, "Invalid gsm") {
				t.Errorf("unexpected result %+v, %v", resp, err)
			}
		})
	}
}
