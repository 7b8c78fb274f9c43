package valueobjects

import (
	"slices"
	"strings"
)

type MimeType string

const (
	MimeTypeJPEG MimeType = "image/jpeg"
	MimeTypePNG  MimeType = "image/png"
	// ブラウザによっては image/jpg を送ってくる
	MimeTypeJPG MimeType = "image/jpg"
)

// MaxUploadBytes is the upload ceiling (10MB).
const MaxUploadBytes int64 = 10 * 1024 * 1024

const (
	ReasonUnsupportedType = "please upload a JPG or PNG image"
	ReasonTooLarge        = "image must not exceed 10MB"
	ReasonEmpty           = "the selected file is empty"
)

// FileDescriptor is what the validator sees of a selected file.
type FileDescriptor struct {
	MimeType string
	Size     int64
}

type Verdict struct {
	Accepted bool
	Reason   string
}

func Accept() Verdict {
	return Verdict{Accepted: true}
}

func Reject(reason string) Verdict {
	return Verdict{Reason: reason}
}

// MediaPolicy decides whether a selected file may be uploaded.
type MediaPolicy struct {
	allowed  []MimeType
	maxBytes int64
}

func DefaultMediaPolicy() MediaPolicy {
	return MediaPolicy{
		allowed:  []MimeType{MimeTypeJPEG, MimeTypePNG, MimeTypeJPG},
		maxBytes: MaxUploadBytes,
	}
}

func (p MediaPolicy) MaxBytes() int64 {
	return p.maxBytes
}

// Check is a pure predicate over the declared media type and byte size.
// The type is checked before the size.
func (p MediaPolicy) Check(d FileDescriptor) Verdict {
	mimeType := MimeType(strings.ToLower(strings.TrimSpace(d.MimeType)))
	if !slices.Contains(p.allowed, mimeType) {
		return Reject(ReasonUnsupportedType)
	}

	if d.Size > p.maxBytes {
		return Reject(ReasonTooLarge)
	}

	if d.Size <= 0 {
		return Reject(ReasonEmpty)
	}

	return Accept()
}

// NormalizeMimeType folds the image/jpg alias into image/jpeg.
func NormalizeMimeType(raw string) MimeType {
	mimeType := MimeType(strings.ToLower(strings.TrimSpace(raw)))
	if mimeType == MimeTypeJPG {
		return MimeTypeJPEG
	}
	return mimeType
}
