package download

import "errors"

var (
	// ErrUnsafeFileName is returned when a remote file name is not a single path element.
	ErrUnsafeFileName = errors.New("unsafe file name")

	// ErrShortBody is returned when the stream ends before the announced length.
	ErrShortBody = errors.New("stream ended before content length")
)
