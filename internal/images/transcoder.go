package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	_ "golang.org/x/image/webp" // register WebP decoding for catalog images stored as WebP
)

// Quality is the fixed encoder quality on a 0-100 scale
const Quality = 85

// ErrDecodeFailed marks input bytes that are not a decodable raster
var ErrDecodeFailed = errors.New("decode failed")

// Format is a target raster format
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: webp, jpeg, png)", s)
	}
}

// Extension returns the file extension written for the format, without the dot
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatPNG:
		return "png"
	default:
		return "webp"
	}
}

// Transcoder decodes arbitrary raster input and re-encodes it to one target format
type Transcoder struct {
	Format Format
}

// NewTranscoder creates a transcoder for the given format
func NewTranscoder(format Format) *Transcoder {
	if format == "" {
		format = FormatWebP
	}
	return &Transcoder{Format: format}
}

// Extension returns the extension of the files this transcoder produces
func (t *Transcoder) Extension() string {
	return t.Format.Extension()
}

// Transcode decodes data and encodes it to the target format at Quality
func (t *Transcoder) Transcode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDecodeFailed)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	var buf bytes.Buffer
	if err := t.encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", t.Format, err)
	}

	return buf.Bytes(), nil
}

func (t *Transcoder) encode(buf *bytes.Buffer, img image.Image) error {
	switch t.Format {
	case FormatJPEG:
		return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(Quality))
	case FormatPNG:
		return imaging.Encode(buf, img, imaging.PNG)
	default:
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, Quality)
		if err != nil {
			return err
		}
		// libwebp expects 8-bit channels
		return webp.Encode(buf, imaging.Clone(img), options)
	}
}
