package form

import (
	"context"

	"medtech-planner/internal/domain"
)

type formController interface {
	SelectFile(img domain.SelectedImage) error
	SelectPhase(phase domain.Phase) error
	Submit(ctx context.Context) error
	WaitPreview(ctx context.Context) error
	Snapshot() domain.State
}

type resultStore interface {
	Get(ctx context.Context, key string) (*domain.Blob, error)
}
