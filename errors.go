package goicon

import (
	"errors"
	"fmt"
)

// Sentinel errors for the export pipeline. An *ExportError of the matching
// kind satisfies errors.Is against these.
var (
	ErrContainerNotFound    = errors.New("icon container not found")
	ErrImageLoadFailed      = errors.New("image load failed")
	ErrImageLoadTimedOut    = errors.New("image load timed out")
	ErrSurfaceUnavailable   = errors.New("rendering surface unavailable")
	ErrSerializationTainted = errors.New("surface is tainted by cross-origin image data")
	ErrExportInProgress     = errors.New("an export is already in progress")
)

// ErrorKind classifies export failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindContainerNotFound
	KindImageLoadFailed
	KindImageLoadTimedOut
	KindSurfaceUnavailable
	KindSerializationTainted
)

func (k ErrorKind) String() string {
	switch k {
	case KindContainerNotFound:
		return "container_not_found"
	case KindImageLoadFailed:
		return "image_load_failed"
	case KindImageLoadTimedOut:
		return "image_load_timed_out"
	case KindSurfaceUnavailable:
		return "surface_unavailable"
	case KindSerializationTainted:
		return "serialization_tainted"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindContainerNotFound:
		return ErrContainerNotFound
	case KindImageLoadFailed:
		return ErrImageLoadFailed
	case KindImageLoadTimedOut:
		return ErrImageLoadTimedOut
	case KindSurfaceUnavailable:
		return ErrSurfaceUnavailable
	case KindSerializationTainted:
		return ErrSerializationTainted
	default:
		return nil
	}
}

// ExportError is the structured failure produced at the export boundary.
type ExportError struct {
	Kind    ErrorKind
	Message string // human-readable, shown to the user
	Err     error  // underlying cause, may be nil
}

func (e *ExportError) Error() string {
	// A cause that already wraps the kind's sentinel carries the message.
	if s := e.Kind.sentinel(); s != nil && e.Err != nil && e.Message == s.Error() && errors.Is(e.Err, s) {
		return e.Err.Error()
	}
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExportError) Unwrap() error { return e.Err }

// Is matches the sentinel error for e's kind.
func (e *ExportError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf classifies err. Errors outside the taxonomy are KindUnknown.
func KindOf(err error) ErrorKind {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	for _, k := range []ErrorKind{
		KindContainerNotFound,
		KindImageLoadTimedOut,
		KindImageLoadFailed,
		KindSurfaceUnavailable,
		KindSerializationTainted,
	} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// genericFailureMessage is used when an underlying error carries no text.
const genericFailureMessage = "download failed"

// newExportError wraps err as an *ExportError, keeping an existing one.
func newExportError(err error) *ExportError {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee
	}
	kind := KindOf(err)
	msg := genericFailureMessage
	if s := kind.sentinel(); s != nil {
		msg = s.Error()
	} else if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &ExportError{Kind: kind, Message: msg, Err: err}
}
