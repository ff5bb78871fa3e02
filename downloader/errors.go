package downloader

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a pipeline run stopped.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidRequest
	KindBusy
	KindNotFound
	KindFetchFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindBusy:
		return "busy"
	case KindNotFound:
		return "not_found"
	case KindFetchFailure:
		return "fetch_failure"
	default:
		return "internal"
	}
}

// Sentinels usable with errors.Is against any *PipelineError of that kind.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrBusy           = errors.New("too many active downloads")
	ErrNotFound       = errors.New("not found")
	ErrFetchFailure   = errors.New("image fetch failed")
	ErrInternal       = errors.New("internal error")
)

// PipelineError is returned by every stage of a download run.
type PipelineError struct {
	Kind    ErrorKind
	Op      string // stage that failed, e.g. "locate", "fetch"
	Message string // human readable, sent to the client
	Err     error  // underlying cause, may be nil
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the same kind.
func (e *PipelineError) Is(target error) bool {
	switch target {
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	case ErrBusy:
		return e.Kind == KindBusy
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrFetchFailure:
		return e.Kind == KindFetchFailure
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

func newError(kind ErrorKind, op, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Message: message, Err: err}
}

// AsPipelineError extracts the *PipelineError from err, if any.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the kind of err; errors that did not come from the
// pipeline are Internal.
func KindOf(err error) ErrorKind {
	if pe, ok := AsPipelineError(err); ok {
		return pe.Kind
	}
	return KindInternal
}

// PublicMessage is the text shown to the client for err.
func PublicMessage(err error) string {
	if pe, ok := AsPipelineError(err); ok {
		if pe.Kind == KindInternal && pe.Err != nil && !errors.Is(pe.Err, context.Canceled) {
			return "Something went wrong: " + pe.Err.Error()
		}
		return pe.Message
	}
	return "Something went wrong: " + err.Error()
}
