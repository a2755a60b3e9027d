package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"medtech-planner/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/wb-go/wbf/zlog"
)

const (
	fieldFile  = "file"
	fieldPhase = "phase"

	acceptHeader    = "image/png, image/jpeg, application/json"
	defaultFilename = "upload"

	errorBodyLimit = 512
)

// jsonResponse is the only JSON body the service may answer with.
type jsonResponse struct {
	ProcessedImage string `json:"processed_image"`
}

type Client struct {
	endpoint        string
	httpClient      *http.Client
	store           blobStore
	timeout         time.Duration
	maxResponseSize int64
	logger          *zlog.Zerolog
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds a whole exchange. Zero keeps the default of no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseSize = n
		}
	}
}

func WithLogger(logger *zlog.Zerolog) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(endpoint string, store blobStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	if store == nil {
		return nil, errors.New("processing client requires a blob store")
	}

	c := &Client{
		endpoint:        endpoint,
		httpClient:      &http.Client{},
		store:           store,
		maxResponseSize: domain.DefaultMaxResponseSize,
		logger:          &zlog.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c, nil
}

// Process performs one exchange with the processing service. A JSON answer
// must be declared as application/json; any other answer must be image bytes,
// which are kept in the blob store.
func (c *Client) Process(ctx context.Context, img domain.SelectedImage, phase domain.Phase) (*domain.Reference, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPhase, phase)
	}

	body, contentType, err := buildBody(img, phase)
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", acceptHeader)

	start := time.Now()
	c.logger.Info().
		Str("endpoint", c.endpoint).
		Str("phase", phase.String()).
		Str("filename", img.Filename).
		Int("size", len(img.Data)).
		Msg("Sending image for processing")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", c.endpoint).Msg("Processing request failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		prefix, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("phase", phase.String()).
			Str("body", strings.TrimSpace(string(prefix))).
			Msg("Processing service returned error status")
		return nil, &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > c.maxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrInvalidResponse, c.maxResponseSize)
	}

	ref, err := c.normalize(ctx, resp.Header.Get("Content-Type"), data)
	if err != nil {
		c.logger.Error().Err(err).Str("phase", phase.String()).Msg("Failed to interpret processing response")
		return nil, err
	}
	ref.Phase = phase

	c.logger.Info().
		Str("phase", phase.String()).
		Bool("blob", ref.BlobBacked()).
		Dur("duration", time.Since(start)).
		Msg("Image processed")

	return ref, nil
}

func (c *Client) normalize(ctx context.Context, contentType string, data []byte) (*domain.Reference, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType == "application/json" {
		return decodeJSON(data)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: expected image, got %s", ErrInvalidResponse, detected.String())
	}

	key, err := c.store.Put(ctx, data, detected.String())
	if err != nil {
		return nil, fmt.Errorf("failed to store processed image: %w", err)
	}

	return &domain.Reference{
		URL: domain.ResultsPathPrefix + key,
		Key: key,
	}, nil
}

func decodeJSON(data []byte) (*domain.Reference, error) {
	var payload jsonResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	encoded := strings.TrimSpace(payload.ProcessedImage)
	if encoded == "" {
		return nil, fmt.Errorf("%w: processed_image is empty", ErrInvalidResponse)
	}

	switch {
	case strings.HasPrefix(encoded, "data:"):
		if !strings.HasPrefix(encoded, "data:image/") {
			return nil, fmt.Errorf("%w: processed_image is not an image data URL", ErrInvalidResponse)
		}
		return &domain.Reference{URL: encoded}, nil
	case strings.HasPrefix(encoded, "http://"),
		strings.HasPrefix(encoded, "https://"):
		return &domain.Reference{URL: encoded}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: processed_image is not base64: %v", ErrInvalidResponse, err)
	}

	mediaType, _, _ := strings.Cut(mimetype.Detect(raw).String(), ";")
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: processed_image decodes to %s", ErrInvalidResponse, mediaType)
	}

	return &domain.Reference{
		URL: "data:" + mediaType + ";base64," + encoded,
	}, nil
}

func buildBody(img domain.SelectedImage, phase domain.Phase) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := img.Filename
	if filename == "" {
		filename = defaultFilename
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(img.Data).String()
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldFile, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}

	if err := writer.WriteField(fieldPhase, phase.String()); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}
