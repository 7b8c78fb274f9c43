package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	domainservices "tomato-demo/internal/domain/services"
	"tomato-demo/internal/domain/valueobjects"
)

// UploadField is the multipart field the upload page posts the file under.
const UploadField = "image"

// multipartのヘッダー分の余裕
const multipartOverhead = 1 << 20

var (
	ErrNoFile       = errors.New("no image file in request")
	ErrBodyTooLarge = errors.New("request body too large")
)

type UploadService struct {
	maxBytes int64
}

func NewUploadService(maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = valueobjects.MaxUploadBytes
	}
	return &UploadService{maxBytes: maxBytes}
}

// ParseFromRequest reads the single "image" part. Size and type are not judged here;
// the body cap only stops requests far beyond the upload ceiling.
func (s *UploadService) ParseFromRequest(w http.ResponseWriter, r *http.Request) (domainservices.FileInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return domainservices.FileInput{}, ErrBodyTooLarge
		}
		return domainservices.FileInput{}, fmt.Errorf("%w: %v", ErrNoFile, err)
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		return domainservices.FileInput{}, ErrNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domainservices.FileInput{}, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return domainservices.FileInput{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
