package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrNoFiles               = errors.New("no files to upload")
	ErrNothingUploaded       = errors.New("no file was uploaded")
	ErrNotRegularFile        = errors.New("not a regular file")
	ErrMaxUploadSizeExceeded = errors.New("maximum upload size exceeded")
	ErrSessionStarted        = errors.New("session already started")
	ErrDuplicateFileName     = errors.New("another file of the container has the same name")
)

// FileError attributes a failure to one file of a batch.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
