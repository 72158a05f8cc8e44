// Package errors defines the sentinel errors shared by the index engine and
// its servers, the IndexError wrapper used by every mutating operation, and
// the mapping from errors to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrIndexingFailed    = errors.New("indexing failed")
	ErrRemovalFailed     = errors.New("removal failed")
	ErrFlushFailed       = errors.New("flush failed")
	ErrCompactionFailed  = errors.New("compaction failed")
	ErrOpenFailed        = errors.New("open failed")
	ErrAlreadyExists     = errors.New("index already exists")
	ErrInvalidDocumentID = errors.New("invalid document id")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrClosed            = errors.New("index is closed")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// IndexError reports a failed index operation. Err is one of the sentinels
// above and Cause is the underlying failure, if any; errors.Is matches both.
type IndexError struct {
	Op       string
	Document string
	Err      error
	Cause    error
}

func (e *IndexError) Error() string {
	msg := e.Op + ": " + e.Err.Error()
	if e.Document != "" {
		msg = fmt.Sprintf("%s: %s (%s)", e.Op, e.Err.Error(), e.Document)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *IndexError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Wrap builds an IndexError. A nil cause yields an error carrying only the
// sentinel.
func Wrap(op string, sentinel error, document string, cause error) error {
	return &IndexError{Op: op, Document: document, Err: sentinel, Cause: cause}
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidDocumentID):
		return http.StatusBadRequest
	case errors.Is(err, ErrClosed), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
