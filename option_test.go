package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/retry"
)

func TestNewOptions(t *testing.T) {
	t.Run("returns defaults without options", func(t *testing.T) {
		opts := newOptions()

		if opts.maxConcurrentDispatches != DefaultMaxConcurrentDispatches {
			t.Errorf("expected maxConcurrentDispatches %v, got %v", DefaultMaxConcurrentDispatches, opts.maxConcurrentDispatches)
		}
		if opts.bulkConcurrency != DefaultBulkConcurrency {
			t.Errorf("expected bulkConcurrency %v, got %v", DefaultBulkConcurrency, opts.bulkConcurrency)
		}
		if opts.shutdownTimeout != DefaultShutdownTimeout {
			t.Errorf("expected shutdownTimeout %v, got %v", DefaultShutdownTimeout, opts.shutdownTimeout)
		}
		if want := retry.DefaultConfig(); opts.connectRetry.Attempts != want.Attempts || opts.connectRetry.Delay != want.Delay {
			t.Errorf("expected default connect retry, got attempts=%d delay=%v", opts.connectRetry.Attempts, opts.connectRetry.Delay)
		}
		if opts.catalog == nil {
			t.Error("expected default catalog")
		}
		if opts.contacts == nil {
			t.Error("expected default contact resolver")
		}
		if opts.content == nil {
			t.Error("expected default content registry")
		}
		if opts.onEventPublishFailure == nil {
			t.Error("expected default event publish failure handler")
		}
		if opts.tracingEnabled || opts.metricsEnabled {
			t.Error("expected telemetry disabled by default")
		}
	})
}

func TestWithLogger(t *testing.T) {
	t.Run("sets custom logger", func(t *testing.T) {
		customLogger := discardLogger()
		opts := newOptions(WithLogger(customLogger))
		if opts.logger != customLogger {
			t.Error("expected custom logger to be set")
		}
	})

	t.Run("ignores nil logger", func(t *testing.T) {
		opts := newOptions(WithLogger(nil))
		if opts.logger != slog.Default() {
			t.Error("expected default logger when nil passed")
		}
	})
}

func TestWithTracing(t *testing.T) {
	opts := newOptions(WithTracing(true))
	if !opts.tracingEnabled {
		t.Error("expected tracing enabled")
	}
	if opts.metricsEnabled {
		t.Error("expected metrics to stay disabled")
	}
}

func TestWithMetrics(t *testing.T) {
	opts := newOptions(WithMetrics(true))
	if !opts.metricsEnabled {
		t.Error("expected metrics enabled")
	}
	if opts.tracingEnabled {
		t.Error("expected tracing to stay disabled")
	}
}

func TestWithOTel(t *testing.T) {
	t.Run("enables both", func(t *testing.T) {
		opts := newOptions(WithOTel(true))
		if !opts.tracingEnabled || !opts.metricsEnabled {
			t.Error("expected tracing and metrics enabled")
		}
	})

	t.Run("later option wins", func(t *testing.T) {
		opts := newOptions(WithOTel(true), WithMetrics(false))
		if !opts.tracingEnabled {
			t.Error("expected tracing enabled")
		}
		if opts.metricsEnabled {
			t.Error("expected metrics disabled")
		}
	})
}

func TestWithServiceName(t *testing.T) {
	t.Run("sets name", func(t *testing.T) {
		opts := newOptions(WithServiceName("billing"))
		if opts.serviceName != "billing" {
			t.Errorf("expected serviceName billing, got %q", opts.serviceName)
		}
	})

	t.Run("ignores empty name", func(t *testing.T) {
		opts := newOptions(WithServiceName("billing"), WithServiceName(""))
		if opts.serviceName != "billing" {
			t.Errorf("expected serviceName billing, got %q", opts.serviceName)
		}
	})
}

func TestWithDriver(t *testing.T) {
	opts := newOptions(
		WithDriver(provider.SMS, "twilio"),
		WithDrivers(map[provider.Capability]string{provider.Mail: "ses", provider.SMS: "nexmo"}),
	)
	if got := opts.drivers[provider.SMS]; got != "nexmo" {
		t.Errorf("expected sms driver nexmo, got %q", got)
	}
	if got := opts.drivers[provider.Mail]; got != "ses" {
		t.Errorf("expected mail driver ses, got %q", got)
	}
	if _, ok := opts.drivers[provider.Telegram]; ok {
		t.Error("expected no telegram override")
	}
}

func TestConcurrencyOptions(t *testing.T) {
	tests := []struct {
		name     string
		opt      Option
		dispatch int
		bulk     int
	}{
		{"max concurrent dispatches", WithMaxConcurrentDispatches(3), 3, DefaultBulkConcurrency},
		{"ignores zero dispatches", WithMaxConcurrentDispatches(0), DefaultMaxConcurrentDispatches, DefaultBulkConcurrency},
		{"bulk concurrency", WithMaxConcurrency(8), DefaultMaxConcurrentDispatches, 8},
		{"ignores negative bulk concurrency", WithMaxConcurrency(-1), DefaultMaxConcurrentDispatches, DefaultBulkConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newOptions(tt.opt)
			if opts.maxConcurrentDispatches != tt.dispatch {
				t.Errorf("maxConcurrentDispatches = %d, want %d", opts.maxConcurrentDispatches, tt.dispatch)
			}
			if opts.bulkConcurrency != tt.bulk {
				t.Errorf("bulkConcurrency = %d, want %d", opts.bulkConcurrency, tt.bulk)
			}
		})
	}
}

func TestWithShutdownTimeout(t *testing.T) {
	t.Run("sets custom shutdown timeout", func(t *testing.T) {
		timeout := 60 * time.Second
		opts := newOptions(WithShutdownTimeout(timeout))
		if opts.shutdownTimeout != timeout {
			t.Errorf("expected shutdownTimeout %v, got %v", timeout, opts.shutdownTimeout)
		}
	})

	t.Run("ignores timeout below minimum", func(t *testing.T) {
		opts := newOptions(WithShutdownTimeout(500 * time.Millisecond))
		if opts.shutdownTimeout != DefaultShutdownTimeout {
			t.Errorf("expected default shutdownTimeout %v, got %v", DefaultShutdownTimeout, opts.shutdownTimeout)
		}
	})
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts := newOptions(WithClock(func() time.Time { return fixed }), WithClock(nil))
	if got := opts.now(); !got.Equal(fixed) {
		t.Errorf("expected fixed clock %v, got %v", fixed, got)
	}
}

func TestWithPlugin(t *testing.T) {
	t.Run("adds plugin", func(t *testing.T) {
		opts := newOptions(WithPlugin(&mockPlugin{name: "a"}))
		if len(opts.plugins) != 1 {
			t.Errorf("expected 1 plugin, got %d", len(opts.plugins))
		}
	})

	t.Run("ignores nil plugin", func(t *testing.T) {
		opts := newOptions(WithPlugin(nil))
		if len(opts.plugins) != 0 {
			t.Errorf("expected 0 plugins, got %d", len(opts.plugins))
		}
	})
}

func TestWithPlugins(t *testing.T) {
	t.Run("filters nil plugins", func(t *testing.T) {
		opts := newOptions(WithPlugins(&mockPlugin{name: "a"}, nil, &mockPlugin{name: "b"}))
		if len(opts.plugins) != 2 {
			t.Errorf("expected 2 plugins (nil filtered), got %d", len(opts.plugins))
		}
	})
}

func TestSafeEventPublishFailure(t *testing.T) {
	t.Run("calls handler", func(t *testing.T) {
		var gotName string
		var gotErr error
		opts := newOptions(WithEventPublishFailureHandler(func(name string, err error) {
			gotName, gotErr = name, err
		}))
		opts.safeEventPublishFailure("BulkCompleted", errProviderDown)
		if gotName != "BulkCompleted" || !errors.Is(gotErr, errProviderDown) {
			t.Errorf("handler got (%q, %v)", gotName, gotErr)
		}
	})

	t.Run("recovers handler panic", func(t *testing.T) {
		opts := newOptions(
			WithLogger(discardLogger()),
			WithEventPublishFailureHandler(func(string, error) { panic("handler bug") }),
		)
		opts.safeEventPublishFailure("ChannelDispatched", errProviderDown)
	})
}

// mockPlugin records its lifecycle calls into a shared log.
type mockPlugin struct {
	name     string
	log      *[]string
	initErr  error
	closeErr error
}

func (p *mockPlugin) Name() string { return p.name }

func (p *mockPlugin) Init(context.Context) error {
	if p.log != nil {
		*p.log = append(*p.log, "init:"+p.name)
	}
	return p.initErr
}

func (p *mockPlugin) Close(context.Context) error {
	if p.log != nil {
		*p.log = append(*p.log, "close:"+p.name)
	}
	return p.closeErr
}
