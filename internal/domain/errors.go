package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so a sentinel still matches after WithCause attached a cause to a copy.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of the error carrying err as its cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"

	ErrCodeExtractionEmpty = "EXTRACTION_EMPTY"
	ErrCodeNoEvidence      = "NO_EVIDENCE"
	ErrCodeUngrounded      = "UNGROUNDED_GENERATION"
	ErrCodeStale           = "STALE_RESULT"
	ErrCodeUpstream        = "UPSTREAM_ERROR"
)

// Validation errors
var (
	ErrInvalidQuestionType    = NewDomainError(ErrCodeValidation, "invalid question type")
	ErrInvalidQuizType        = NewDomainError(ErrCodeValidation, "invalid quiz type")
	ErrInvalidIngestStatus    = NewDomainError(ErrCodeValidation, "invalid ingest job status")
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
	ErrNoDocumentsSelected    = NewDomainError(ErrCodeValidation, "at least one document must be selected")
	ErrInvalidChunkConfig     = NewDomainError(ErrCodeValidation, "chunk overlap must be smaller than chunk size")
	ErrUnsupportedContentType = NewDomainError(ErrCodeValidation, "only PDF documents are supported")
	ErrDocumentNotReady       = NewDomainError(ErrCodeInvalidOperation, "document has not finished processing")
)

// Not found errors
var (
	ErrDocumentNotFound    = NewDomainError(ErrCodeNotFound, "document not found")
	ErrQuizNotFound        = NewDomainError(ErrCodeNotFound, "quiz not found")
	ErrAttemptNotFound     = NewDomainError(ErrCodeNotFound, "quiz attempt not found")
	ErrChatSessionNotFound = NewDomainError(ErrCodeNotFound, "chat session not found")
	ErrIngestJobNotFound   = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Pipeline errors
var (
	// ErrExtractionEmpty means a document produced no usable pages or chunks.
	ErrExtractionEmpty = NewDomainError(ErrCodeExtractionEmpty, "no content available for this source")
	// ErrNoEvidenceFound means ranking returned nothing to ground an answer on.
	ErrNoEvidenceFound = NewDomainError(ErrCodeNoEvidence, "couldn't find relevant information in the selected sources")
	// ErrUngroundedGeneration means every generated question failed grounding.
	ErrUngroundedGeneration = NewDomainError(ErrCodeUngrounded, "no questions generated")
	// ErrStaleResult is returned to a loader caller whose request was superseded.
	ErrStaleResult = NewDomainError(ErrCodeStale, "request superseded by a newer one")
)

// Storage and upstream errors
var (
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
	ErrModelUnavailable     = NewDomainError(ErrCodeUpstream, "language model request failed")
)
