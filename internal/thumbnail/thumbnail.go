// Package thumbnail re-encodes images into small, lossy previews suitable
// for quota-constrained local storage.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Encoder produces bounded-width JPEG thumbnails.
type Encoder struct {
	// MaxWidth bounds the pixel width of the output. Height scales to
	// preserve aspect ratio.
	MaxWidth int
	// Quality is the JPEG re-encode quality (1-100).
	Quality int
}

// EncodeBase64 decodes a base64-encoded image, scales it down and returns a
// `data:image/jpeg;base64,...` URL. Non-image or undecodable input is an error.
func (e *Encoder) EncodeBase64(payload string) (string, error) {
	// Tolerate data URL prefixes.
	if i := strings.Index(payload, ","); i != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.Wrap(err, "decoding base64 payload")
	}
	return e.Encode(data)
}

// Encode scales raw image bytes down and returns a JPEG data URL.
func (e *Encoder) Encode(data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "decoding image")
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width > e.MaxWidth {
		height = height * e.MaxWidth / width
		if height < 1 {
			height = 1
		}
		width = e.MaxWidth
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buffer bytes.Buffer
	if err := jpeg.Encode(&buffer, dst, &jpeg.Options{Quality: e.Quality}); err != nil {
		return "", errors.Wrap(err, "encoding jpeg")
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buffer.Bytes()), nil
}
