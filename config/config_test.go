package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbaliyan/notify/provider"
)

const sample = `
country_code: "44"
sms:
  driver: vonage
  timeout: 10s
  debug: true
  retry:
    attempts: 3
    delay: 2s
whatsapp:
  driver: 360dialog
aliases:
  cheap: smsfactor
drivers:
  nexmo:
    api_key: ${NEXMO_KEY}
    api_secret: ${NEXMO_SECRET:-fallback-secret}
  360dialog:
    api_key: d360
  netfun:
    endpoint: https://gw.example.com
    api_key: nf
    timeout: 2s
`

func TestParse(t *testing.T) {
	t.Setenv("NEXMO_KEY", "key-from-env")

	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.CountryCode != "44" {
		t.Errorf("unexpected country code %q", cfg.CountryCode)
	}
	if cfg.SMS.Driver != "vonage" || cfg.SMS.Timeout != 10*time.Second || !cfg.SMS.Debug {
		t.Errorf("unexpected sms channel %+v", cfg.SMS)
	}
	if cfg.Mail.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout for mail, got %v", cfg.Mail.Timeout)
	}
	if cfg.Drivers.Nexmo == nil || cfg.Drivers.Nexmo.APIKey != "key-from-env" || cfg.Drivers.Nexmo.APISecret != "fallback-secret" {
		t.Errorf("unexpected nexmo config %+v", cfg.Drivers.Nexmo)
	}
	if cfg.Drivers.Dialog360 == nil || cfg.Drivers.Dialog360.APIKey != "d360" {
		t.Errorf("unexpected 360dialog config %+v", cfg.Drivers.Dialog360)
	}
	if cfg.Drivers.Twilio != nil {
		t.Errorf("twilio should be unset")
	}
	if cfg.Drivers.Netfun.Timeout != 2*time.Second {
		t.Errorf("unexpected netfun timeout %v", cfg.Drivers.Netfun.Timeout)
	}
	if cfg.Aliases["cheap"] != "smsfactor" {
		t.Errorf("unexpected aliases %v", cfg.Aliases)
	}

	defaults := cfg.DefaultDrivers()
	if defaults[provider.SMS] != "vonage" || defaults[provider.WhatsApp] != "360dialog" {
		t.Errorf("unexpected defaults %v", defaults)
	}
	if _, ok := defaults[provider.Mail]; ok {
		t.Errorf("mail has no default driver")
	}
}

func TestRetryPolicy(t *testing.T) {
	rc := RetryPolicy{Attempts: 4, Delay: time.Second}.Config()
	if rc.Attempts != 4 || rc.Delay != time.Second {
		t.Errorf("unexpected retry config %+v", rc)
	}
	if got := (RetryPolicy{}).Config(); got.Attempts != 1 {
		t.Errorf("zero policy should mean one attempt, got %d", got.Attempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown capability", "supported:\n  fax: [twilio]\n"},
		{"negative retry", "sms:\n  retry:\n    attempts: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	cfgFile := filepath.Join(dir, "notify.yaml")
	if err := os.WriteFile(envFile, []byte("NOTIFY_TG_TOKEN=123:abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgFile, []byte("telegram:\n  driver: telegram\ndrivers:\n  telegram:\n    token: ${NOTIFY_TG_TOKEN}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("NOTIFY_TG_TOKEN") })

	cfg, err := Load(cfgFile, envFile, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Drivers.Telegram == nil || cfg.Drivers.Telegram.Token != "123:abc" {
		t.Errorf("unexpected telegram config %+v", cfg.Drivers.Telegram)
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("A", "1")
	tests := map[string]string{
		"${A}":          "1",
		"x${A}y":        "x1y",
		"${UNSET_B}":    "",
		"${UNSET_B:-d}": "d",
		"$A":            "$A",
	}
	for in, want := range tests {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}
