package form

import (
	"errors"

	"medtech-planner/internal/domain"
)

var (
	ErrNoImageSelected  = errors.New(domain.MsgNoImageSelected)
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrEmptyResult      = errors.New("processing returned no image")
)
