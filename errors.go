package rointe

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the client. Callers should match them with
// errors.Is; wrapped variants carry additional context.
var (
	// Authentication errors.
	ErrCannotConnect       = errors.New("rointe: cannot connect to authentication service")
	ErrInvalidAuth         = errors.New("rointe: invalid credentials")
	ErrInvalidAuthResponse = errors.New("rointe: malformed authentication response")
	ErrNotAuthenticated    = errors.New("rointe: invalid authentication")

	// Resource errors.
	ErrNoInstallations  = errors.New("rointe: no installations found")
	ErrDeviceNotFound   = errors.New("rointe: device not found")
	ErrFirmwareNotFound = errors.New("rointe: no firmware settings found")
	ErrEnergyNotFound   = errors.New("rointe: no energy data for interval")

	// ErrEnergyMaxTries is returned when the backward energy search exhausts
	// its retry budget. Distinct from ErrEnergyNotFound, which reports a
	// single absent sample.
	ErrEnergyMaxTries = errors.New("rointe: energy statistics max tries exceeded")

	// Caller errors.
	ErrUnknownPreset   = errors.New("rointe: unknown preset mode")
	ErrUnknownHVACMode = errors.New("rointe: unknown hvac mode")
)

// APIError reports an unexpected response from the cloud: a non-200 status
// or a payload missing required fields.
type APIError struct {
	Op         string // operation that failed, e.g. "get_device"
	StatusCode int    // HTTP status, 0 when the payload was malformed
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rointe: %s returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rointe: %s: %s", e.Op, e.Message)
}

// TransportError reports a request that produced no response at all.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("rointe: no response from API in %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying transport failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuthError returns true if the error indicates missing or rejected
// authentication. The client never re-prompts for credentials; the host
// application should call Login again when this is reported.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrInvalidAuth) ||
		errors.Is(err, ErrInvalidAuthResponse)
}

// IsNotFound returns true if the error indicates an absent resource rather
// than a transport or protocol failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoInstallations) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrFirmwareNotFound) ||
		errors.Is(err, ErrEnergyNotFound)
}

// IsValidationError returns true if the caller supplied an unrecognized
// preset or mode. No network call was made.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnknownPreset) || errors.Is(err, ErrUnknownHVACMode)
}
