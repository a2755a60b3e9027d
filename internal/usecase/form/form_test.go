package form

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"medtech-planner/internal/client/processing"
	"medtech-planner/internal/domain"
	"medtech-planner/internal/repository/result/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	filename string
	phase    domain.Phase
}

type fakeClient struct {
	store *memory.Store

	mu      sync.Mutex
	calls   []call
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeClient) Process(ctx context.Context, img domain.SelectedImage, phase domain.Phase) (*domain.Reference, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{filename: img.Filename, phase: phase})
	gate, started, err := f.gate, f.started, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	key, err := f.store.Put(ctx, img.Data, "image/png")
	if err != nil {
		return nil, err
	}
	return &domain.Reference{URL: domain.ResultsPathPrefix + key, Key: key, Phase: phase}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newFixture(t *testing.T) (*Controller, *fakeClient, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	client := &fakeClient{store: store}
	return NewController(client, store, nil), client, store
}

func testImage(t *testing.T, name string, w, h int) domain.SelectedImage {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return domain.SelectedImage{Filename: name, ContentType: "image/png", Data: buf.Bytes()}
}

func TestSubmitWithoutImage(t *testing.T) {
	c, client, _ := newFixture(t)

	err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoImageSelected)

	st := c.Snapshot()
	assert.Equal(t, "Please select an image first", st.Error)
	assert.False(t, st.Loading)
	assert.Nil(t, st.Processed)
	assert.Equal(t, 0, client.callCount())
}

func TestDefaults(t *testing.T) {
	c, _, _ := newFixture(t)

	st := c.Snapshot()
	assert.Equal(t, domain.PhaseArterial, st.Phase)
	assert.False(t, st.HasImage)
	assert.False(t, st.CanSubmit())
	assert.Equal(t, "Process Image", st.SubmitLabel())
}

func TestSubmitResultMatchesSelectedPhase(t *testing.T) {
	c, client, _ := newFixture(t)

	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))
	require.NoError(t, c.SelectPhase(domain.PhaseVenous))
	require.NoError(t, c.Submit(context.Background()))

	st := c.Snapshot()
	require.NotNil(t, st.Processed)
	assert.Equal(t, domain.PhaseVenous, st.Processed.Phase)
	assert.Equal(t, "Venous Phase", st.ProcessedLabel())
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)

	require.Equal(t, 1, client.callCount())
	assert.Equal(t, call{filename: "scan.png", phase: domain.PhaseVenous}, client.calls[0])
}

func TestPhaseChangeClearsProcessed(t *testing.T) {
	c, _, store := newFixture(t)

	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))
	require.NoError(t, c.Submit(context.Background()))
	require.NotNil(t, c.Snapshot().Processed)
	require.Equal(t, 1, store.Len())

	require.NoError(t, c.SelectPhase(domain.PhaseVenous))

	st := c.Snapshot()
	assert.Nil(t, st.Processed)
	assert.Equal(t, domain.PhaseVenous, st.Phase)
	assert.Equal(t, 0, store.Len(), "released reference must be dropped from the store")
}

func TestSelectSamePhaseKeepsProcessed(t *testing.T) {
	c, _, _ := newFixture(t)

	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))
	require.NoError(t, c.Submit(context.Background()))
	require.NoError(t, c.SelectPhase(domain.PhaseArterial))

	assert.NotNil(t, c.Snapshot().Processed)
}

func TestSelectPhaseRejectsUnknown(t *testing.T) {
	c, _, _ := newFixture(t)

	err := c.SelectPhase(domain.Phase("portal"))
	assert.ErrorIs(t, err, domain.ErrUnknownPhase)
	assert.Equal(t, domain.PhaseArterial, c.Snapshot().Phase)
}

func TestSelectFileClearsResultAndErrorAndBuildsPreview(t *testing.T) {
	c, client, store := newFixture(t)

	require.NoError(t, c.SelectFile(testImage(t, "first.png", 2, 2)))
	require.NoError(t, c.Submit(context.Background()))
	require.NotNil(t, c.Snapshot().Processed)

	client.err = &processing.StatusError{Code: 502}
	require.NoError(t, c.SelectPhase(domain.PhaseVenous))
	require.Error(t, c.Submit(context.Background()))
	require.NotEmpty(t, c.Snapshot().Error)

	next := testImage(t, "second.png", 3, 5)
	require.NoError(t, c.SelectFile(next))

	st := c.Snapshot()
	assert.Empty(t, st.Error)
	assert.Nil(t, st.Processed)
	assert.Equal(t, "second.png", st.Filename)
	assert.Equal(t, 0, store.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.WaitPreview(ctx))

	st = c.Snapshot()
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(next.Data), st.Preview.DataURL)
	assert.Equal(t, 3, st.Preview.Width)
	assert.Equal(t, 5, st.Preview.Height)
}

func TestSelectEmptyFileClearsResultAndError(t *testing.T) {
	c, client, store := newFixture(t)

	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))
	require.NoError(t, c.Submit(context.Background()))
	require.NotNil(t, c.Snapshot().Processed)

	require.NoError(t, c.SelectFile(domain.SelectedImage{Filename: "picked.png", ContentType: "image/png"}))

	st := c.Snapshot()
	assert.True(t, st.HasImage)
	assert.True(t, st.CanSubmit())
	assert.Equal(t, "picked.png", st.Filename)
	assert.Nil(t, st.Processed)
	assert.Empty(t, st.Error)
	assert.Equal(t, 0, store.Len())

	client.err = &processing.StatusError{Code: 422}
	require.Error(t, c.Submit(context.Background()))
	assert.Equal(t, "Error processing image: Server responded with 422", c.Snapshot().Error)

	require.NoError(t, c.SelectFile(domain.SelectedImage{Filename: "picked.png"}))
	assert.Empty(t, c.Snapshot().Error)
}

func TestStatusErrorMessage(t *testing.T) {
	c, client, _ := newFixture(t)
	client.err = &processing.StatusError{Code: 500}

	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))
	err := c.Submit(context.Background())
	require.Error(t, err)

	st := c.Snapshot()
	assert.Equal(t, "Error processing image: Server responded with 500", st.Error)
	assert.Nil(t, st.Processed)
	assert.False(t, st.Loading)
}

func TestStalePreviewIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	derive := func(img domain.SelectedImage) domain.Preview {
		if img.Filename == "slow.png" {
			<-release
		}
		return domain.Preview{DataURL: "preview:" + img.Filename}
	}

	store := memory.NewStore()
	c := NewController(&fakeClient{store: store}, store, nil, WithPreviewFunc(derive))

	require.NoError(t, c.SelectFile(testImage(t, "slow.png", 1, 1)))
	c.mu.Lock()
	slowDone := c.previewDone
	c.mu.Unlock()

	require.NoError(t, c.SelectFile(testImage(t, "fast.png", 1, 1)))
	require.NoError(t, c.WaitPreview(context.Background()))
	assert.Equal(t, "preview:fast.png", c.Snapshot().Preview.DataURL)

	close(release)
	<-slowDone

	assert.Equal(t, "preview:fast.png", c.Snapshot().Preview.DataURL)
}

func TestWaitPreviewHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	store := memory.NewStore()
	c := NewController(&fakeClient{store: store}, store, nil, WithPreviewFunc(func(domain.SelectedImage) domain.Preview {
		<-block
		return domain.Preview{}
	}))
	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 1, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitPreview(ctx), context.DeadlineExceeded)
}

func TestLoadingAcrossBackToBackSubmissions(t *testing.T) {
	c, client, _ := newFixture(t)
	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))

	for i := 0; i < 2; i++ {
		gate := make(chan struct{})
		started := make(chan struct{})
		client.mu.Lock()
		client.gate, client.started = gate, started
		client.mu.Unlock()

		assert.False(t, c.Snapshot().Loading)

		errc := make(chan error, 1)
		go func() { errc <- c.Submit(context.Background()) }()
		<-started

		st := c.Snapshot()
		assert.True(t, st.Loading)
		assert.False(t, st.CanSubmit())
		assert.Equal(t, "Processing...", st.SubmitLabel())
		assert.Nil(t, st.Processed, "previous result is cleared when a submission starts")
		assert.ErrorIs(t, c.Submit(context.Background()), ErrSubmitInProgress)

		close(gate)
		require.NoError(t, <-errc)

		st = c.Snapshot()
		assert.False(t, st.Loading)
		assert.True(t, st.CanSubmit())
		assert.NotNil(t, st.Processed)
	}

	assert.Equal(t, 2, client.callCount())
}

func TestResultForSupersededSelectionIsDropped(t *testing.T) {
	c, client, store := newFixture(t)
	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))

	gate := make(chan struct{})
	started := make(chan struct{})
	client.gate, client.started = gate, started

	errc := make(chan error, 1)
	go func() { errc <- c.Submit(context.Background()) }()
	<-started

	require.NoError(t, c.SelectPhase(domain.PhaseVenous))
	close(gate)
	require.NoError(t, <-errc)

	st := c.Snapshot()
	assert.Nil(t, st.Processed)
	assert.False(t, st.Loading)
	assert.Equal(t, 0, store.Len())
}

func TestCloseReleasesBlob(t *testing.T) {
	c, _, store := newFixture(t)

	require.NoError(t, c.SelectFile(testImage(t, "scan.png", 2, 2)))
	require.NoError(t, c.Submit(context.Background()))
	require.Equal(t, 1, store.Len())

	c.Close()
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, c.Snapshot().Processed)
}

func TestDerivePreviewSniffsMissingContentType(t *testing.T) {
	img := testImage(t, "scan", 7, 3)
	img.ContentType = "application/octet-stream"

	p := DerivePreview(img)
	assert.Equal(t, "image/png", p.MimeType)
	assert.Equal(t, 7, p.Width)
	assert.Equal(t, 3, p.Height)
	assert.True(t, len(p.DataURL) > len("data:image/png;base64,"))
}

func TestDerivePreviewUndecodable(t *testing.T) {
	p := DerivePreview(domain.SelectedImage{Filename: "x.jpg", ContentType: "image/jpeg", Data: []byte("not really")})
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("not really")), p.DataURL)
	assert.Zero(t, p.Width)
}
