package result

import "errors"

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrEmptyBlob    = errors.New("empty blob")
	ErrStorageError = errors.New("storage error")
)
