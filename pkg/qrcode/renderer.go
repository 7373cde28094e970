package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when the URI is empty or only whitespace.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrFailedToGenerate is returned when the encoder rejects the content.
	ErrFailedToGenerate = errors.New("failed to generate QR code")
)

// DefaultSize is the image width and height in pixels.
const DefaultSize = 256

// Renderer encodes provisioning URIs at a fixed size and error correction level.
type Renderer struct {
	size  int
	level skipqrcode.RecoveryLevel
}

// NewRenderer returns a Renderer producing size×size images.
// Non-positive sizes fall back to DefaultSize.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size, level: skipqrcode.Medium}
}

// Size returns the configured image size.
func (r *Renderer) Size() int {
	return r.size
}

// Render returns uri as a PNG image.
func (r *Renderer) Render(uri string) ([]byte, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, ErrEmptyContent
	}
	png, err := skipqrcode.Encode(uri, r.level, r.size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return png, nil
}

// DataURI wraps png in a base64 data URI.
func DataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
