package one2track

import "errors"

// Domain errors for the one2track bridge.
var (
	// ErrInvalidConfig is returned when the client or reporter is misconfigured.
	ErrInvalidConfig = errors.New("one2track: invalid configuration")

	// ErrUnexpectedStatus is returned for any non-200 response.
	ErrUnexpectedStatus = errors.New("one2track: unexpected HTTP status")

	// ErrUnauthorized is returned for 401 and 403 responses. It also matches
	// ErrUnexpectedStatus.
	ErrUnauthorized = errors.New("one2track: credentials rejected")

	// ErrResponseTooLarge is returned when the body exceeds the size limit.
	ErrResponseTooLarge = errors.New("one2track: response too large")

	// ErrDecode is returned when the body is not a device list.
	ErrDecode = errors.New("one2track: decoding device list")
)
