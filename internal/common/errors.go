package common

import (
	"context"
	"errors"
	"net"
)

var (
	// Repository-level errors.
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Input errors.
	ErrValidation = errors.New("validation error")

	// Account errors.
	ErrDuplicateAccount   = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountNotFound    = errors.New("account does not exist")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrForbidden          = errors.New("forbidden")

	// Verification errors. Token-level causes wrap ErrVerificationFailed so
	// callers can match a single value.
	ErrVerificationFailed = errors.New("failed to verify")

	// Gateway errors.
	ErrNotificationDispatch = errors.New("verification email failed to send")
	ErrAuditAppend          = errors.New("failed to register login logs")

	ErrInternal = errors.New("internal error")
)

// Classify labels transport-level failures as ErrStoreUnavailable so callers
// can tell "try again" from "this request is wrong". Errors that already carry
// a domain meaning are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return err
}

// IsTransient reports whether err was classified as a retryable store failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
