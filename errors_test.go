package goicon

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{fmt.Errorf("fetch: %w", ErrImageLoadFailed), KindImageLoadFailed},
		{fmt.Errorf("%w: size 0", ErrSurfaceUnavailable), KindSurfaceUnavailable},
		{ErrSerializationTainted, KindSerializationTainted},
		{&ExportError{Kind: KindImageLoadTimedOut, Message: "x"}, KindImageLoadTimedOut},
		{fmt.Errorf("wrapped: %w", &ExportError{Kind: KindContainerNotFound}), KindContainerNotFound},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestExportError_Is(t *testing.T) {
	e := &ExportError{Kind: KindImageLoadTimedOut, Message: ErrImageLoadTimedOut.Error(), Err: context.DeadlineExceeded}
	if !errors.Is(e, ErrImageLoadTimedOut) {
		t.Error("expected match on kind sentinel")
	}
	if !errors.Is(e, context.DeadlineExceeded) {
		t.Error("expected match on wrapped cause")
	}
	if errors.Is(e, ErrImageLoadFailed) {
		t.Error("unexpected match on another sentinel")
	}
	if got := e.Error(); got != "image load timed out: context deadline exceeded" {
		t.Errorf("Error() = %q", got)
	}
}

func TestExportError_ErrorNoDuplicateSentinel(t *testing.T) {
	e := &ExportError{
		Kind:    KindImageLoadFailed,
		Message: ErrImageLoadFailed.Error(),
		Err:     fmt.Errorf("%w: unsupported image URL %q", ErrImageLoadFailed, "logo.png"),
	}
	if got, want := e.Error(), `image load failed: unsupported image URL "logo.png"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	custom := &ExportError{Kind: KindImageLoadFailed, Message: "fetch base image", Err: ErrImageLoadFailed}
	if got := custom.Error(); got != "fetch base image: image load failed" {
		t.Errorf("custom message Error() = %q", got)
	}
}

func TestNewExportError(t *testing.T) {
	if got := newExportError(errors.New("")); got.Message != genericFailureMessage {
		t.Errorf("empty error message = %q", got.Message)
	}
	if got := newExportError(fmt.Errorf("%w: status 404", ErrImageLoadFailed)); got.Message != "image load failed" {
		t.Errorf("sentinel message = %q", got.Message)
	}
	orig := &ExportError{Kind: KindSurfaceUnavailable, Message: "m"}
	if got := newExportError(orig); got != orig {
		t.Error("existing ExportError not preserved")
	}
}
