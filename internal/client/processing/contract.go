package processing

import "context"

type blobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}
