package domain

import "time"

// SelectedImage is the file picked in the form, held in memory as-is.
type SelectedImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (s *SelectedImage) Size() int64 {
	if s == nil {
		return 0
	}
	return int64(len(s.Data))
}

// Preview is a self-contained data URL of the selected image bytes.
// Width and Height are zero when the bytes could not be decoded.
type Preview struct {
	DataURL  string
	MimeType string
	Width    int
	Height   int
}

func (p Preview) Empty() bool {
	return p.DataURL == ""
}

// Reference is a renderable processed image. Key is set only for
// blob-backed references held in the result store.
type Reference struct {
	URL   string
	Key   string
	Phase Phase
}

func (r *Reference) BlobBacked() bool {
	return r != nil && r.Key != ""
}

type Blob struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
	CreatedAt   time.Time
}

const (
	ResultsPathPrefix  = "/results/"
	ObjectPrefixResult = "processed/"
)

const (
	DefaultMaxUploadSize   = 32 << 20
	DefaultMaxResponseSize = 64 << 20
)

const (
	MsgNoImageSelected = "Please select an image first"
	MsgProcessingError = "Error processing image: "
)
