package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindTransport
	KindServerReported
	KindMalformedResponse
	KindPreviewRead
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindServerReported:
		return "server_reported"
	case KindMalformedResponse:
		return "malformed_response"
	case KindPreviewRead:
		return "preview_read"
	default:
		return "unknown"
	}
}

const (
	GenericFailureMessage    = "upload failed, please retry"
	MalformedResponseMessage = "the prediction service returned an unexpected response"
	PreviewUnavailableText   = "no preview available"
)

// DetectionError carries the single user-facing message of a failed step.
// Err keeps the underlying cause for logs only.
type DetectionError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *DetectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

func NewValidationError(reason string) *DetectionError {
	return &DetectionError{Kind: KindValidation, Message: reason}
}

func NewTransportError(statusCode int, err error) *DetectionError {
	return &DetectionError{Kind: KindTransport, Message: GenericFailureMessage, StatusCode: statusCode, Err: err}
}

func NewServerReportedError(statusCode int, message string) *DetectionError {
	return &DetectionError{Kind: KindServerReported, Message: message, StatusCode: statusCode}
}

func NewMalformedResponseError(statusCode int, err error) *DetectionError {
	return &DetectionError{Kind: KindMalformedResponse, Message: MalformedResponseMessage, StatusCode: statusCode, Err: err}
}

func NewPreviewReadError(err error) *DetectionError {
	return &DetectionError{Kind: KindPreviewRead, Message: PreviewUnavailableText, Err: err}
}

// UserMessage extracts the text shown to the user; unknown errors get the generic retry text.
func UserMessage(err error) string {
	var de *DetectionError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return GenericFailureMessage
}

func KindOf(err error) ErrorKind {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsServerReported is true for structured backend errors and for schema violations.
func IsServerReported(err error) bool {
	kind := KindOf(err)
	return kind == KindServerReported || kind == KindMalformedResponse
}
