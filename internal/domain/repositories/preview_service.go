package repositories

import (
	"context"

	"tomato-demo/internal/domain/valueobjects"
)

// PreviewService turns accepted image bytes into an inline data URI.
type PreviewService interface {
	Generate(ctx context.Context, image *valueobjects.ImageData) (string, error)
}
