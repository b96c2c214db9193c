package twilio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rbaliyan/notify/provider"
)

func newTestServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"missing sid", Config{AuthToken: "t", From: "+1"}, "account_sid"},
		{"missing token", Config{AccountSID: "AC1", From: "+1"}, "auth_token"},
		{"missing sender", Config{AccountSID: "AC1", AuthToken: "t"}, "from or messaging_service_sid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, provider.ErrMissingCredential) {
				t.Fatalf("expected ErrMissingCredential, got %v", err)
			}
			var ce *provider.CredentialError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestSendSMS(t *testing.T) {
	srv := newTestServer(t, http.StatusCreated, `{"sid":"SM123","status":"queued"}`, func(r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, _ := r.BasicAuth()
		if user != "AC1" || pass != "secret" {
			t.Errorf("unexpected credentials %q/%q", user, pass)
		}
		if r.PostForm.Get("To") != "+393331234567" || r.PostForm.Get("From") != "+15550000" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		if r.PostForm.Get("Body") != "Hello" {
			t.Errorf("unexpected body %q", r.PostForm.Get("Body"))
		}
	})

	c, err := New(Config{AccountSID: "AC1", AuthToken: "secret", From: "+15550000", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+393331234567", Text: "Hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.Success || resp.MessageID != "SM123" || resp.StatusCode != http.StatusCreated {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSendSMSMessagingService(t *testing.T) {
	srv := newTestServer(t, http.StatusCreated, `{"sid":"SM1","status":"accepted"}`, func(r *http.Request) {
		if r.PostForm.Get("MessagingServiceSid") != "MG1" || r.PostForm.Get("From") != "" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
	})
	c, err := New(Config{AccountSID: "AC1", AuthToken: "secret", MessagingServiceSID: "MG1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.SendSMS(context.Background(), &provider.Message{To: "+1", Text: "x"}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendWhatsApp(t *testing.T) {
	srv := newTestServer(t, http.StatusCreated, `{"sid":"SM9","status":"queued"}`, func(r *http.Request) {
		if r.PostForm.Get("To") != "whatsapp:+393331234567" || r.PostForm.Get("From") != "whatsapp:+15550000" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
	})
	c, err := New(Config{AccountSID: "AC1", AuthToken: "secret", From: "+15550000", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendWhatsApp(context.Background(), &provider.Message{To: "+393331234567", Text: "Hi"})
	if err != nil || resp.MessageID != "SM9" {
		t.Fatalf("unexpected result %+v, %v", resp, err)
	}
}

func TestSendRejected(t *testing.T) {
	srv := newTestServer(t, http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`, nil)
	c, err := New(Config{AccountSID: "AC1", AuthToken: "secret", From: "+1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{To: "bad", Text: "x"})
	if !errors.Is(err, provider.ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if resp == nil || resp.Success || resp.Error != "Invalid 'To' Phone Number" || len(resp.Raw) == 0 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSendRejectedNonJSON(t *testing.T) {
	srv := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`, nil)
	c, err := New(Config{AccountSID: "AC1", AuthToken: "secret", From: "+1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := c.SendSMS(context.Background(), &provider.Message{To: "+39333", Text: "x"})
	var rerr *provider.RequestError
	if !errors.As(err, &rerr) || rerr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected RequestError with 502, got %v", err)
	}
	if resp == nil || resp.Error != "<html>bad gateway</html>" {
		t.Errorf("unexpected response %+v", resp)
	}
}
