package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the provider package.
var (
	// ErrDriverNotSupported is returned when a driver name does not map to a registered factory.
	ErrDriverNotSupported = errors.New("provider: driver not supported")

	// ErrContractViolation is returned when a driver does not implement the requested capability.
	ErrContractViolation = errors.New("provider: contract violation")

	// ErrMissingCredential is returned by driver constructors when required configuration is absent.
	ErrMissingCredential = errors.New("provider: missing credential")

	// ErrRequestFailed is returned when a provider call fails or is rejected.
	ErrRequestFailed = errors.New("provider: request failed")

	// ErrUnknownCapability is returned for a capability outside Capabilities().
	ErrUnknownCapability = errors.New("provider: unknown capability")

	// ErrInvalidDriverName is returned when registering a name that is not canonical.
	ErrInvalidDriverName = errors.New("provider: invalid driver name")

	// ErrDuplicateDriver is returned when registering a name twice.
	ErrDuplicateDriver = errors.New("provider: driver already registered")
)

// DriverError describes a failed resolution.
type DriverError struct {
	Capability Capability
	Requested  string
	Canonical  string
	Err        error
}

func (e *DriverError) Error() string {
	if e.Requested == "" {
		return fmt.Sprintf("%s: no driver configured for %s", e.Err, e.Capability)
	}
	if e.Requested == e.Canonical {
		return fmt.Sprintf("%s: %q for %s", e.Err, e.Requested, e.Capability)
	}
	return fmt.Sprintf("%s: %q (canonical %q) for %s", e.Err, e.Requested, e.Canonical, e.Capability)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// CredentialError names the configuration value a driver could not find.
type CredentialError struct {
	Driver string
	Field  string
}

// MissingCredential returns a CredentialError for driver and field.
func MissingCredential(driver, field string) error {
	return &CredentialError{Driver: driver, Field: field}
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %s requires %s", ErrMissingCredential, e.Driver, e.Field)
}

func (e *CredentialError) Unwrap() error {
	return ErrMissingCredential
}

// RequestError describes a failed provider call.
type RequestError struct {
	Driver     string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", ErrRequestFailed, e.Driver, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns both the sentinel and the cause.
func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRequestFailed}
	}
	return []error{ErrRequestFailed, e.Err}
}

// Retryable reports whether a queue layer may try the call again.
// Transport failures, 429 and 5xx answers are retryable.
func (e *RequestError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
