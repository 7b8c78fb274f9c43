package entities

import (
	"fmt"
	"time"

	"tomato-demo/internal/domain/valueobjects"
)

// CandidateID is the selection identity; it grows with every accepted selection.
type CandidateID uint64

type UploadCandidate struct {
	id             CandidateID
	fileName       string
	image          *valueobjects.ImageData
	previewDataURI string
	selectedAt     time.Time
}

func NewUploadCandidate(id CandidateID, fileName string, image *valueobjects.ImageData) (*UploadCandidate, error) {
	if image == nil {
		return nil, fmt.Errorf("image is required")
	}

	if fileName == "" {
		fileName = "image" + extensionFor(image.MimeType())
	}

	return &UploadCandidate{
		id:         id,
		fileName:   fileName,
		image:      image,
		selectedAt: time.Now(),
	}, nil
}

func (c *UploadCandidate) ID() CandidateID {
	return c.id
}

func (c *UploadCandidate) FileName() string {
	return c.fileName
}

func (c *UploadCandidate) Image() *valueobjects.ImageData {
	return c.image
}

func (c *UploadCandidate) MimeType() valueobjects.MimeType {
	return c.image.MimeType()
}

func (c *UploadCandidate) Size() int64 {
	return c.image.Size()
}

func (c *UploadCandidate) PreviewDataURI() string {
	return c.previewDataURI
}

func (c *UploadCandidate) HasPreview() bool {
	return c.previewDataURI != ""
}

func (c *UploadCandidate) SelectedAt() time.Time {
	return c.selectedAt
}

// WithPreview returns a copy carrying the preview; the receiver is left untouched.
func (c *UploadCandidate) WithPreview(dataURI string) *UploadCandidate {
	clone := *c
	clone.previewDataURI = dataURI
	return &clone
}

func extensionFor(mimeType valueobjects.MimeType) string {
	switch mimeType {
	case valueobjects.MimeTypePNG:
		return ".png"
	default:
		return ".jpg"
	}
}
