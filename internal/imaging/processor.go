// Package imaging normalises uploaded cover images before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

// Supported MIME types for cover uploads.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
)

// DefaultMaxWidth is used when a Processor is created with a non-positive width.
const DefaultMaxWidth = 1024

// ErrUnsupportedFormat is returned for uploads that are not png, jpeg or gif.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Image is a decoded, resized and re-encoded cover.
type Image struct {
	Data      []byte
	MimeType  string
	Extension string
	Width     int
	Height    int
}

// Processor decodes uploads and shrinks them to a maximum width.
type Processor struct {
	maxWidth int
}

// NewProcessor creates a processor that downsizes images wider than maxWidth.
func NewProcessor(maxWidth int) *Processor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Processor{maxWidth: maxWidth}
}

// MaxWidth returns the configured width limit.
func (p *Processor) MaxWidth() int {
	return p.maxWidth
}

// Process reads the whole upload, checks its content type, applies EXIF
// orientation, resizes it preserving aspect ratio and re-encodes it in the
// original format.
func (p *Processor) Process(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	mimeType := DetectMimeType(data)
	format, ext, ok := formatFor(mimeType)
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	bounds := img.Bounds()
	return &Image{
		Data:      buf.Bytes(),
		MimeType:  mimeType,
		Extension: ext,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// DetectMimeType sniffs the MIME type of image data.
func DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

func formatFor(mimeType string) (imaging.Format, string, bool) {
	switch mimeType {
	case MimeTypeJPEG:
		return imaging.JPEG, "jpg", true
	case MimeTypePNG:
		return imaging.PNG, "png", true
	case MimeTypeGIF:
		return imaging.GIF, "gif", true
	default:
		return 0, "", false
	}
}
