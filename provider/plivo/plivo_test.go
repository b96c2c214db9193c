package plivo

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
	if _, err := New(Config{AuthToken: "t", From: "1"}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}

func TestSendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/Account/MA1/Message/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, _, _ := r.BasicAuth(); user != "MA1" {
			t.Errorf("unexpected user %q", user)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"dst":"393331234567"`) || !strings.Contains(string(body), `"src":"15550000"`) {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"api_id":"x","message":"message(s) queued","message_uuid":["db3ce55a"]}`))
	}))
	defer srv.Close()

	c, err := New(Config{AuthID: "MA1", AuthToken: "t", From: "+15550000", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+393331234567", Text: "Hi"})
	if err != nil || !resp.Success || resp.MessageID != "db3ce55a" {
		t.Fatalf("unexpected result %+v, %v", resp, err)
	}
}

func TestSendSMSError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"api_id":"x","error":"dst parameter not found"}`))
	}))
	defer srv.Close()

	c, err := New(Config{AuthID: "MA1", AuthToken: "t", From: "1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{Text: "Hi"})
	if !errors.Is(err, provider.ErrRequestFailed) || resp.Error != "dst parameter not found" {
		t.Errorf("unexpected result %+v, %v", resp, err)
	}
}
