package form

import (
	"context"

	"medtech-planner/internal/domain"
)

type processingClient interface {
	Process(ctx context.Context, img domain.SelectedImage, phase domain.Phase) (*domain.Reference, error)
}

type blobReleaser interface {
	Delete(ctx context.Context, key string) error
}
