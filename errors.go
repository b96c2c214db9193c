package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rbaliyan/notify/content"
	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/store"
)

// Sentinel errors for the notify package.
// Use errors.Is() to check for these errors.
//
// Wiring errors from the provider package are re-exported, so
// errors.Is(err, notify.ErrDriverNotSupported) matches errors returned by a
// provider.Registry as well.
var (
	// ErrDriverNotSupported is returned when a driver name maps to no registered factory.
	ErrDriverNotSupported = provider.ErrDriverNotSupported

	// ErrContractViolation is returned when a driver cannot serve the requested channel.
	ErrContractViolation = provider.ErrContractViolation

	// ErrMissingCredential is returned when a driver is built without a required credential.
	ErrMissingCredential = provider.ErrMissingCredential

	// ErrRequestFailed is returned when a provider call fails or is rejected.
	ErrRequestFailed = provider.ErrRequestFailed

	// ErrRecipientUnavailable is recorded when a recipient has no usable
	// address for a channel. The channel is skipped, not failed.
	ErrRecipientUnavailable = errors.New("notify: recipient unavailable")

	// ErrRecipientNotFound is returned by a RecipientResolver for an unknown ID.
	ErrRecipientNotFound = errors.New("notify: recipient not found")

	// ErrInvalidRecipient is returned for a nil recipient or an invalid recipient ID.
	ErrInvalidRecipient = errors.New("notify: invalid recipient")

	// ErrInvalidChannel is returned for a channel outside provider.Capabilities().
	ErrInvalidChannel = fmt.Errorf("notify: %w", provider.ErrUnknownCapability)

	// ErrNoChannels is returned when a notification names no channel.
	ErrNoChannels = errors.New("notify: no channels requested")

	// ErrDuplicateChannel is returned when a notification names a channel twice.
	ErrDuplicateChannel = errors.New("notify: duplicate channel")

	// ErrInvalidTemplate is returned when a template key component is empty.
	// Wraps store.ErrInvalidKey for consistent error checking.
	ErrInvalidTemplate = fmt.Errorf("notify: %w", store.ErrInvalidKey)

	// ErrDeliveryRejected is returned when a driver reports an unsuccessful
	// send without an error.
	ErrDeliveryRejected = errors.New("notify: delivery rejected")

	// ErrNoContent is returned when Dispatch is called without rendered content.
	ErrNoContent = content.ErrNoContent

	// ErrStoreRequired is returned when no template store is configured.
	ErrStoreRequired = errors.New("notify: store is required")

	// ErrRegistryRequired is returned when no provider registry is configured.
	ErrRegistryRequired = errors.New("notify: provider registry is required")

	// ErrRendererRequired is returned when a bulk dispatcher is built without a renderer.
	ErrRendererRequired = errors.New("notify: renderer is required")

	// ErrResolverRequired is returned by NotifyIDs when no RecipientResolver is configured.
	ErrResolverRequired = errors.New("notify: recipient resolver is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	// Wraps store.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("notify: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps store.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("notify: %w", store.ErrAlreadyConnected)
)

// DispatchError describes the failure of one channel for one recipient.
type DispatchError struct {
	Recipient string
	Channel   provider.Capability
	Driver    string
	Err       error
}

func (e *DispatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "notify: %s to %q", e.Channel, e.Recipient)
	if e.Driver != "" {
		fmt.Fprintf(&sb, " via %s", e.Driver)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsRetryableError reports whether a dispatch failure may succeed when the
// notification is queued again. Wiring errors and unavailable recipients are
// permanent; provider request failures defer to provider.RequestError.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	permanentErrors := []error{
		ErrDriverNotSupported,
		ErrContractViolation,
		ErrMissingCredential,
		ErrRecipientUnavailable,
		ErrRecipientNotFound,
		ErrInvalidRecipient,
		ErrInvalidChannel,
		ErrNoChannels,
		ErrDuplicateChannel,
		ErrInvalidTemplate,
		store.ErrInvalidKey,
	}
	for _, permErr := range permanentErrors {
		if errors.Is(err, permErr) {
			return false
		}
	}

	var rerr *provider.RequestError
	if errors.As(err, &rerr) {
		return rerr.Retryable()
	}

	var perr *PluginError
	if errors.As(err, &perr) {
		return false
	}

	return true
}
