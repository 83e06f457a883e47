package fferror

import (
	"fmt"
	"strings"
)

// Code is a stable, machine-readable business error code returned by the
// backend of record. Codes share the "ff_error/" prefix so they can be told
// apart from free-form transport error bodies.
type Code string

const (
	Prefix = "ff_error/"

	SpotUnavailable        Code = "ff_error/spot_unavailable"
	SpotUnavailableCharged Code = "ff_error/spot_unavailable/charged"
	InvalidSpotPrice       Code = "ff_error/invalid_spot_price"
	FailedToFreeSpot       Code = "ff_error/failed_to_free_spot"
	UserHasActiveOffer     Code = "ff_error/user_has_active_offer"
	PaymentFailed          Code = "ff_error/payment_failed"
	InvalidSignature       Code = "ff_error/invalid_signature"
	PayPalCreateOrder      Code = "ff_error/paypal_create_order"
	PayPalBookSpot         Code = "ff_error/paypal_book_spot"
)

// RemoteError is a structured business failure surfaced by an RPC call.
// It is distinct from transport-level failures, which never carry a Code.
type RemoteError struct {
	Code   Code
	Status int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Code, e.Status)
}

// IsCode parses a response body into a business error code. Backends reply to
// failed calls with the bare code string as the body.
func IsCode(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), Prefix)
}

// Parse returns the code carried by a response body, or "" if the body is not
// a structured business error.
func Parse(body string) Code {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, Prefix) {
		return ""
	}
	return Code(trimmed)
}

// CodeOf extracts the business code from an error chain. It returns "" for
// transport failures and plain errors.
func CodeOf(err error) Code {
	for err != nil {
		if remote, ok := err.(*RemoteError); ok {
			return remote.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = unwrapper.Unwrap()
	}
	return ""
}

// Is reports whether err carries the given business code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
