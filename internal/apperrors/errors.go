package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrTransport indicates a network or HTTP failure while talking to the rates API.
var ErrTransport = errors.New("transport failure")

// ErrMalformedResponse indicates fetched text that does not look like a rates payload.
var ErrMalformedResponse = errors.New("malformed rates response")

// ErrParse indicates rates text that could not be parsed.
var ErrParse = errors.New("rates parse error")

// ErrUnsupportedCurrency is matched by every UnsupportedCurrencyError.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// UnsupportedCurrencyError names a currency code that is neither the source
// currency nor part of the loaded rate set.
type UnsupportedCurrencyError struct {
	Code string
}

func (e *UnsupportedCurrencyError) Error() string {
	return e.Code
}

// Is lets errors.Is(err, ErrUnsupportedCurrency) match.
func (e *UnsupportedCurrencyError) Is(target error) bool {
	return target == ErrUnsupportedCurrency
}

// NewUnsupportedCurrencyError creates an UnsupportedCurrencyError for code.
func NewUnsupportedCurrencyError(code string) error {
	return &UnsupportedCurrencyError{Code: code}
}

// NewNotFoundError wraps ErrNotFound with a message.
func NewNotFoundError(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, msg)
}

// NewValidationError wraps ErrValidation with a message.
func NewValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
