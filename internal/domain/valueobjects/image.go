package valueobjects

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

type ImageFormat string

const (
	JPEG ImageFormat = "jpeg"
	PNG  ImageFormat = "png"
	GIF  ImageFormat = "gif"
	WEBP ImageFormat = "webp"
)

type ImageData struct {
	data     []byte
	mimeType MimeType
}

// NewImageData wraps raw upload bytes with the media type the user agent declared.
// The bytes are not decoded here; a file that cannot be decoded is still submittable.
func NewImageData(data []byte, mimeType string) (*ImageData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data cannot be empty")
	}

	return &ImageData{
		data:     data,
		mimeType: NormalizeMimeType(mimeType),
	}, nil
}

func (i *ImageData) Data() []byte {
	return i.data
}

func (i *ImageData) MimeType() MimeType {
	return i.mimeType
}

func (i *ImageData) Size() int64 {
	return int64(len(i.data))
}

// MaxDecodePixels caps width*height before a full decode (about 40 megapixels).
const MaxDecodePixels = 40_000_000

var ErrTooManyPixels = errors.New("image dimensions exceed the decode limit")

// DetectFormat sniffs the actual encoding of the bytes.
func (i *ImageData) DetectFormat() (ImageFormat, error) {
	_, format, err := i.decodeConfig()
	return format, err
}

func (i *ImageData) decodeConfig() (image.Config, ImageFormat, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(i.data))
	if err != nil {
		return image.Config{}, "", err
	}

	switch format {
	case "jpeg":
		return cfg, JPEG, nil
	case "png":
		return cfg, PNG, nil
	case "gif":
		return cfg, GIF, nil
	case "webp":
		return cfg, WEBP, nil
	default:
		return image.Config{}, "", fmt.Errorf("unsupported format: %s", format)
	}
}

// Decode refuses headers that declare more than MaxDecodePixels,
// since a small compressed file can expand to a huge bitmap.
func (i *ImageData) Decode() (image.Image, ImageFormat, error) {
	cfg, format, err := i.decodeConfig()
	if err != nil {
		return nil, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxDecodePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(i.data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// ToDataURI embeds the bytes as is, labelled with the declared media type.
func (i *ImageData) ToDataURI() string {
	return DataURI(i.mimeType, i.data)
}

func DataURI(mimeType MimeType, data []byte) string {
	return "data:" + string(mimeType) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
