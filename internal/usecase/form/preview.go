package form

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"medtech-planner/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DerivePreview encodes the selected bytes as a data URL. Dimensions are
// filled in when the format is decodable; undecodable files still preview.
func DerivePreview(img domain.SelectedImage) domain.Preview {
	mimeType := img.ContentType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = mimetype.Detect(img.Data).String()
	}

	preview := domain.Preview{
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
		MimeType: mimeType,
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err == nil {
		preview.Width = cfg.Width
		preview.Height = cfg.Height
	}

	return preview
}
