package form

import "errors"

var (
	ErrFileRequired  = errors.New("File is required")
	ErrFileTooLarge  = errors.New("File is too large")
	ErrInvalidPhase  = errors.New("Phase must be arterial or venous")
	ErrResultMissing = errors.New("Processed image not found")
)
