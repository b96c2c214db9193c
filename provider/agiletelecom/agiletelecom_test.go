package agiletelecom

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
	if _, err := New(Config{APIKey: "k"}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}

func TestSendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/sms/send" || r.Header.Get("X-Api-Key") != "k" {
			t.Errorf("unexpected request %s %v", r.URL.Path, r.Header)
		}
		body, _ := io.ReadAll(r.Body)
		for _, want := range []string{`"globalSender":"ACME"`, `"destinations":["+393331234567"]`, `"enableUnicode":true`} {
			if !strings.Contains(string(body), want) {
				t.Errorf("expected %s in %s", want, body)
			}
		}
		_, _ = w.Write([]byte(`{"simulation":false,"sentMessages":1,"errors":0}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Sender: "ACME", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+393331234567", Text: "Perché"})
	if err != nil || !resp.Success || resp.MessageID == "" {
		t.Fatalf("unexpected result %+v, %v", resp, err)
	}
}

func TestSendSMSUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Sender: "ACME", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+1", Text: "x"})
	var rerr *provider.RequestError
	if !errors.As(err, &rerr) || rerr.StatusCode != http.StatusUnauthorized || rerr.Retryable() {
		t.Fatalf("unexpected error %v", err)
	}
	if resp.Error != "invalid api key" {
		t.Errorf("unexpected response %+v", resp)
	}
}
