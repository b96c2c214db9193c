package notify

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/store"
)

func TestDispatchError(t *testing.T) {
	t.Run("Error message format", func(t *testing.T) {
		err := &DispatchError{
			Recipient: "user1",
			Channel:   provider.SMS,
			Driver:    "twilio",
			Err:       errProviderDown,
		}

		want := `notify: sms to "user1" via twilio: provider down`
		if got := err.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("omits empty driver", func(t *testing.T) {
		err := &DispatchError{Recipient: "user1", Channel: provider.Mail, Err: ErrRecipientUnavailable}
		if strings.Contains(err.Error(), " via ") {
			t.Errorf("expected no driver in %q", err.Error())
		}
	})

	t.Run("unwraps to cause", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", &DispatchError{Channel: provider.Mail, Err: ErrRecipientUnavailable})
		if !errors.Is(err, ErrRecipientUnavailable) {
			t.Error("expected errors.Is to find ErrRecipientUnavailable")
		}
		var de *DispatchError
		if !errors.As(err, &de) {
			t.Fatal("expected errors.As to find *DispatchError")
		}
		if de.Channel != provider.Mail {
			t.Errorf("expected channel mail, got %s", de.Channel)
		}
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrDriverNotSupported is permanent", ErrDriverNotSupported, false},
		{"ErrContractViolation is permanent", ErrContractViolation, false},
		{"ErrMissingCredential is permanent", provider.MissingCredential("twilio", "sid"), false},
		{"ErrRecipientUnavailable is permanent", ErrRecipientUnavailable, false},
		{"ErrRecipientNotFound is permanent", ErrRecipientNotFound, false},
		{"ErrInvalidChannel is permanent", ErrInvalidChannel, false},
		{"ErrInvalidTemplate is permanent", ErrInvalidTemplate, false},
		{"store.ErrInvalidKey is permanent", store.ErrInvalidKey, false},
		{"plugin error is permanent", &PluginError{Plugin: "optout", Op: "BeforeDispatch", Err: errors.New("opted out")}, false},
		{"5xx request error is retryable", &provider.RequestError{Driver: "nexmo", Op: "send", StatusCode: 502}, true},
		{"429 request error is retryable", &provider.RequestError{Driver: "nexmo", Op: "send", StatusCode: 429}, true},
		{"4xx request error is permanent", &provider.RequestError{Driver: "nexmo", Op: "send", StatusCode: 400}, false},
		{"transport failure is retryable", &provider.RequestError{Driver: "nexmo", Op: "send", Err: errProviderDown}, true},
		{"wrapped dispatch error defers to cause", &DispatchError{Channel: provider.SMS, Err: &provider.RequestError{StatusCode: 401}}, false},
		{"ErrNotConnected is retryable", ErrNotConnected, true},
		{"unknown error is retryable", errors.New("some unknown error"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinelErrors := []error{
		ErrRecipientUnavailable,
		ErrRecipientNotFound,
		ErrInvalidRecipient,
		ErrInvalidChannel,
		ErrNoChannels,
		ErrDuplicateChannel,
		ErrInvalidTemplate,
		ErrDeliveryRejected,
		ErrStoreRequired,
		ErrRegistryRequired,
		ErrRendererRequired,
		ErrResolverRequired,
		ErrNotConnected,
		ErrAlreadyConnected,
	}

	for i, err := range sentinelErrors {
		if !strings.HasPrefix(err.Error(), "notify: ") {
			t.Errorf("sentinel error at index %d lacks package prefix: %q", i, err.Error())
		}
	}

	seen := make(map[string]int)
	for i, err := range sentinelErrors {
		msg := err.Error()
		if prevIndex, exists := seen[msg]; exists {
			t.Errorf("duplicate error message %q at indices %d and %d", msg, prevIndex, i)
		}
		seen[msg] = i
	}
}

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"ErrNotConnected wraps store sentinel", ErrNotConnected, store.ErrNotConnected, true},
		{"ErrAlreadyConnected wraps store sentinel", ErrAlreadyConnected, store.ErrAlreadyConnected, true},
		{"ErrInvalidTemplate wraps store.ErrInvalidKey", ErrInvalidTemplate, store.ErrInvalidKey, true},
		{"ErrInvalidChannel wraps provider sentinel", ErrInvalidChannel, provider.ErrUnknownCapability, true},
		{"re-exported driver sentinel is identical", provider.ErrDriverNotSupported, ErrDriverNotSupported, true},
		{"ErrNoChannels doesn't match ErrDuplicateChannel", ErrNoChannels, ErrDuplicateChannel, false},
		{"wrapped error matches", fmt.Errorf("ctx: %w", ErrRecipientNotFound), ErrRecipientNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}
