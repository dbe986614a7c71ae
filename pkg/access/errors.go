package access

import "errors"

var (
	// ErrWrongPassword is returned when the service denies access to the link.
	ErrWrongPassword = errors.New("wrong password")

	// ErrQuotaExceeded is returned when the link has no download credit left.
	ErrQuotaExceeded = errors.New("the authorised number of downloads has been reached")

	// ErrLinkExpired is returned when the link expiry date is in the past.
	ErrLinkExpired = errors.New("this link has expired")

	// ErrUnexpectedResponse is returned when the password check body is neither an object nor false.
	ErrUnexpectedResponse = errors.New("unexpected password check response")

	// ErrInvalidTimestamp is returned for dates in an unknown format.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
