package external

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"

	"tomato-demo/internal/domain/valueobjects"
)

// DefaultPreviewMaxEdge matches the 300px preview box of the upload page.
const DefaultPreviewMaxEdge = 300

const previewJPEGQuality = 85

// PreviewGenerator decodes the selected image and produces a data URI small enough to inline.
type PreviewGenerator struct {
	maxEdge uint
}

func NewPreviewGenerator(maxEdge int) *PreviewGenerator {
	if maxEdge <= 0 {
		maxEdge = DefaultPreviewMaxEdge
	}
	return &PreviewGenerator{maxEdge: uint(maxEdge)}
}

// Generate fails only when the bytes cannot be decoded.
func (g *PreviewGenerator) Generate(ctx context.Context, image *valueobjects.ImageData) (string, error) {
	if image == nil {
		return "", fmt.Errorf("image is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, format, err := image.Decode()
	if err != nil {
		return "", fmt.Errorf("failed to read image for preview: %w", err)
	}

	bounds := img.Bounds()
	if uint(bounds.Dx()) <= g.maxEdge && uint(bounds.Dy()) <= g.maxEdge {
		// 小さい画像はそのまま埋め込む
		return image.ToDataURI(), nil
	}

	thumb := resize.Thumbnail(g.maxEdge, g.maxEdge, img, resize.Lanczos3)

	var buf bytes.Buffer
	mimeType := valueobjects.MimeTypeJPEG
	if format == valueobjects.PNG {
		mimeType = valueobjects.MimeTypePNG
		err = png.Encode(&buf, thumb)
	} else {
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: previewJPEGQuality})
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}

	return valueobjects.DataURI(mimeType, buf.Bytes()), nil
}
