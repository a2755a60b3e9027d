package processing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEndpoint = errors.New("invalid processing endpoint")
	ErrInvalidResponse = errors.New("invalid processing response")
)

// StatusError reports a non-2xx answer from the processing service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Server responded with %d", e.Code)
}
