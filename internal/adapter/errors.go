// Package adapter provides implementations for external AI provider integrations.
package adapter

import (
	"errors"
	"fmt"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// VendorError wraps any failure surfaced by an external vendor call
// (auth failure, network failure, rate limit, malformed request). It is
// the only error kind GenerateResponse returns for the remote leg, so
// callers can branch on it programmatically instead of inspecting text.
type VendorError struct {
	// Provider is the vendor whose call failed.
	Provider domain.ProviderType

	// Err is the underlying failure.
	Err error
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s vendor call failed: %v", e.Provider, e.Err)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}

// IsVendorError checks if an error is (or wraps) a VendorError.
func IsVendorError(err error) bool {
	var ve *VendorError
	return errors.As(err, &ve)
}

// vendorErr is a construction shorthand used by the adapters.
func vendorErr(provider domain.ProviderType, format string, args ...any) error {
	return &VendorError{Provider: provider, Err: fmt.Errorf(format, args...)}
}
