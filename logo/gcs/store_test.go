package gcs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rbaliyan/notify/logo"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)})
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	base := []Option{WithBucket("brand"), WithAPIKey("test-key")}
	s, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), WithAPIKey("k")); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestResolveURLSigns(t *testing.T) {
	s := newTestStore(t,
		WithSigner("logos@project.iam.gserviceaccount.com", testKey(t)),
		WithExpires(time.Hour),
	)

	got, err := s.ResolveURL(context.Background(), "gs://brand/logos/acme.png")
	if err != nil {
		t.Fatalf("ResolveURL: %v", err)
	}
	if !strings.Contains(got, "/brand/logos/acme.png?") {
		t.Errorf("url = %q", got)
	}
	for _, want := range []string{"X-Goog-Signature=", "X-Goog-Algorithm=GOOG4-RSA-SHA256"} {
		if !strings.Contains(got, want) {
			t.Errorf("url %q does not contain %q", got, want)
		}
	}

	// The signer measures the expiry against its own clock, a moment later.
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	expires, err := strconv.Atoi(u.Query().Get("X-Goog-Expires"))
	if err != nil {
		t.Fatalf("X-Goog-Expires: %v", err)
	}
	if expires < 3590 || expires > 3600 {
		t.Errorf("X-Goog-Expires = %d, want about 3600", expires)
	}
}

func TestResolveURLPublicBase(t *testing.T) {
	s := newTestStore(t, WithPublicBaseURL("https://storage.googleapis.com/brand"))

	got, err := s.ResolveURL(context.Background(), "gs://brand/logos/acme.png")
	if err != nil {
		t.Fatalf("ResolveURL: %v", err)
	}
	if got != "https://storage.googleapis.com/brand/logos/acme.png" {
		t.Errorf("url = %q", got)
	}
}

func TestResolveURLInvalid(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ResolveURL(context.Background(), "s3://brand/acme.png"); !errors.Is(err, logo.ErrInvalidURI) {
		t.Errorf("error = %v, want ErrInvalidURI", err)
	}
}
