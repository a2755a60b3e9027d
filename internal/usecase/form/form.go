package form

import (
	"context"
	"fmt"
	"sync"

	"medtech-planner/internal/domain"

	"github.com/wb-go/wbf/zlog"
)

type Option func(*Controller)

// WithPreviewFunc replaces the preview derivation.
func WithPreviewFunc(fn func(domain.SelectedImage) domain.Preview) Option {
	return func(c *Controller) {
		if fn != nil {
			c.derive = fn
		}
	}
}

// Controller holds the state of the upload form. Every change of file or
// phase bumps a generation counter; asynchronous results carrying an older
// generation are discarded.
type Controller struct {
	client processingClient
	blobs  blobReleaser
	logger *zlog.Zerolog
	derive func(domain.SelectedImage) domain.Preview

	mu          sync.Mutex
	image       *domain.SelectedImage
	preview     domain.Preview
	phase       domain.Phase
	loading     bool
	errMsg      string
	processed   *domain.Reference
	fileGen     uint64
	selGen      uint64
	previewDone chan struct{}
}

func NewController(client processingClient, blobs blobReleaser, logger *zlog.Zerolog, opts ...Option) *Controller {
	done := make(chan struct{})
	close(done)

	c := &Controller{
		client:      client,
		blobs:       blobs,
		logger:      logger,
		derive:      DerivePreview,
		phase:       domain.DefaultPhase,
		previewDone: done,
	}
	if c.logger == nil {
		c.logger = &zlog.Logger
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectFile replaces the selected image and starts deriving its preview.
func (c *Controller) SelectFile(img domain.SelectedImage) error {
	c.mu.Lock()
	c.image = &img
	c.preview = domain.Preview{}
	c.errMsg = ""
	stale := c.takeProcessedLocked()
	c.fileGen++
	c.selGen++
	gen := c.fileGen
	done := make(chan struct{})
	c.previewDone = done
	c.mu.Unlock()

	c.release(stale)

	c.logger.Info().
		Str("filename", img.Filename).
		Str("content_type", img.ContentType).
		Int64("size", img.Size()).
		Msg("Image selected")

	go c.buildPreview(img, gen, done)
	return nil
}

func (c *Controller) buildPreview(img domain.SelectedImage, gen uint64, done chan struct{}) {
	defer close(done)

	preview := c.derive(img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.fileGen {
		c.logger.Debug().Uint64("generation", gen).Msg("Discarding superseded preview")
		return
	}
	c.preview = preview

	c.logger.Debug().
		Str("filename", img.Filename).
		Str("mime_type", preview.MimeType).
		Int("width", preview.Width).
		Int("height", preview.Height).
		Msg("Preview ready")
}

// WaitPreview blocks until the preview of the current selection is ready.
func (c *Controller) WaitPreview(ctx context.Context) error {
	for {
		c.mu.Lock()
		done := c.previewDone
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.mu.Lock()
		current := done == c.previewDone
		c.mu.Unlock()
		if current {
			return nil
		}
	}
}

func (c *Controller) SelectPhase(phase domain.Phase) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownPhase, phase)
	}

	c.mu.Lock()
	if phase == c.phase {
		c.mu.Unlock()
		return nil
	}
	c.phase = phase
	stale := c.takeProcessedLocked()
	c.selGen++
	c.mu.Unlock()

	c.release(stale)

	c.logger.Info().Str("phase", phase.String()).Msg("Phase selected")
	return nil
}

// Submit sends the selected image with the selected phase. The returned
// error is also recorded as the form's error message.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.image == nil {
		c.errMsg = domain.MsgNoImageSelected
		c.mu.Unlock()
		return ErrNoImageSelected
	}
	if c.loading {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	c.loading = true
	c.errMsg = ""
	stale := c.takeProcessedLocked()
	img := *c.image
	phase := c.phase
	gen := c.selGen
	c.mu.Unlock()

	c.release(stale)

	ref, err := c.client.Process(ctx, img, phase)
	if err == nil && ref == nil {
		err = ErrEmptyResult
	}

	c.mu.Lock()
	c.loading = false
	current := gen == c.selGen
	switch {
	case !current:
		stale = ref
	case err != nil:
		c.errMsg = domain.MsgProcessingError + err.Error()
	default:
		ref.Phase = phase
		c.processed = ref
	}
	c.mu.Unlock()

	if !current {
		c.release(stale)
		c.logger.Info().
			Str("filename", img.Filename).
			Str("phase", phase.String()).
			Msg("Discarding result for superseded selection")
		return err
	}

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("filename", img.Filename).
			Str("phase", phase.String()).
			Msg("Image processing failed")
		return err
	}

	c.logger.Info().
		Str("filename", img.Filename).
		Str("phase", phase.String()).
		Str("url", shortRef(ref.URL)).
		Msg("Image processed")
	return nil
}

func (c *Controller) Snapshot() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := domain.State{
		Phase:   c.phase,
		Preview: c.preview,
		Loading: c.loading,
		Error:   c.errMsg,
	}
	if c.image != nil {
		st.HasImage = true
		st.Filename = c.image.Filename
	}
	if c.processed != nil {
		ref := *c.processed
		st.Processed = &ref
	}
	return st
}

// Close releases the blob behind the current processed reference.
func (c *Controller) Close() {
	c.mu.Lock()
	stale := c.takeProcessedLocked()
	c.mu.Unlock()

	c.release(stale)
}

func (c *Controller) takeProcessedLocked() *domain.Reference {
	ref := c.processed
	c.processed = nil
	return ref
}

func (c *Controller) release(ref *domain.Reference) {
	if !ref.BlobBacked() || c.blobs == nil {
		return
	}
	if err := c.blobs.Delete(context.Background(), ref.Key); err != nil {
		c.logger.Warn().Err(err).Str("key", ref.Key).Msg("Failed to release processed image")
	}
}

func shortRef(url string) string {
	const limit = 64
	if len(url) <= limit {
		return url
	}
	return url[:limit] + "..."
}
