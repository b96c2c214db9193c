package netfun

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rbaliyan/notify/provider"
)

func TestNew(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
	c, err := New(Config{Endpoint: "http://gw", APIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.http.Timeout() != DefaultTimeout {
		t.Errorf("expected legacy timeout %v, got %v", DefaultTimeout, c.http.Timeout())
	}
}

func TestSendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Header.Get("X-Api-Key") != "k" || r.PostForm.Get("destination") != "+393331234567" {
			t.Errorf("unexpected request %v %v", r.Header, r.PostForm)
		}
		if r.PostForm.Get("sender") != "ACME" {
			t.Errorf("unexpected sender %q", r.PostForm.Get("sender"))
		}
		_, _ = w.Write([]byte(`{"status":"OK","id":"n-1"}`))
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, APIKey: "k", Sender: "ACME"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+393331234567", Text: "Hi"})
	if err != nil || resp.MessageID != "n-1" {
		t.Fatalf("unexpected result %+v, %v", resp, err)
	}
}

func TestSendSMSTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, APIKey: "k", Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.SendSMS(context.Background(), &provider.Message{To: "+1", Text: "x"}); !errors.Is(err, provider.ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
}
