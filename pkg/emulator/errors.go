package emulator

import "errors"

var (
	// ErrContainerNotFound is returned when the requested container does not exist.
	ErrContainerNotFound = errors.New("container not found")

	// ErrFileNotFound is returned when the file does not exist in the container.
	ErrFileNotFound = errors.New("file not found")

	// ErrLinkNotFound is returned when the requested link does not exist.
	ErrLinkNotFound = errors.New("link not found")

	// ErrWrongPassword is returned when a container password does not match.
	ErrWrongPassword = errors.New("wrong password")

	// ErrInvalidToken is returned for unknown, used or mismatched download tokens.
	ErrInvalidToken = errors.New("invalid download token")

	// ErrLinkExpired is returned when the container expiry date has passed.
	ErrLinkExpired = errors.New("link expired")

	// ErrQuotaExceeded is returned when a file reached the container download limit.
	ErrQuotaExceeded = errors.New("download limit reached")

	// ErrContainerComplete is returned for chunks sent after finalize.
	ErrContainerComplete = errors.New("container already complete")

	// ErrNothingReceived is returned when finalize finds no complete file.
	ErrNothingReceived = errors.New("no file was fully received")

	// ErrInvalidRequest is returned when a request does not match the registration.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
