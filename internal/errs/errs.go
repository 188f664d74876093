// Package errs defines the error taxonomy shared by the storage layer,
// the key lifecycle manager and the HTTP handlers. Every error that leaves
// a component is one of these sentinels, possibly wrapped with context.
package errs

import (
	"fmt"

	"github.com/mailgun/errors"
)

var (
	// ErrInvalidInput marks malformed or missing caller input. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a missing key or config record.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyUsed marks a redemption attempt on a consumed key.
	ErrAlreadyUsed = errors.New("key already used")

	// ErrExpired marks a redemption attempt past expiresAt. The record is
	// purged as a side effect of reporting this.
	ErrExpired = errors.New("key expired")

	// ErrUpstream marks a failure in the hosted store or an external API.
	ErrUpstream = errors.New("upstream failure")

	// ErrUnauthorized marks a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// Upstream classifies an arbitrary collaborator error as ErrUpstream,
// keeping the original error in the chain for operator visibility.
// errors.Is(result, ErrUpstream) and errors.Is(result, err) both hold.
func Upstream(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, msg, err)
}
