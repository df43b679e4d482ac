package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrIngest       = errors.New("ingest failed")
	ErrEmbedding    = errors.New("embedding failed")
	ErrEmptyIndex   = errors.New("no document has been indexed")
	ErrGeneration   = errors.New("generation failed")
	ErrInvalidInput = errors.New("invalid input")
)

// Error ties a failure to one of the pipeline error kinds above.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind.Error(), e.Err.Error())
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// HTTPStatusCode maps a pipeline error to the status the web shell answers with.
func HTTPStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrIngest):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyIndex):
		return http.StatusConflict
	case errors.Is(err, ErrEmbedding), errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
