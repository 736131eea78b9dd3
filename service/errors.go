// Package service implements the stable operation surface (C7): the
// only contract the HTTP API and the CLI depend on. Every method here
// translates internal errors into one of a fixed set of typed errors
// with a stable Kind string, matching the error-kind table the wire
// protocol exposes.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vecdb/vecdb/core"
	"github.com/vecdb/vecdb/registry"
)

// Kind is a stable machine-readable error identifier, part of the wire
// contract — these strings must never change once released.
type Kind string

const (
	KindBadRequest             Kind = "BAD_REQUEST"
	KindInvalidCollectionName  Kind = "INVALID_COLLECTION_NAME"
	KindInvalidDimension       Kind = "INVALID_DIMENSION"
	KindInvalidID              Kind = "INVALID_ID"
	KindInvalidK               Kind = "INVALID_K"
	KindDimensionMismatch      Kind = "DIMENSION_MISMATCH"
	KindNonFiniteComponent     Kind = "NON_FINITE_COMPONENT"
	KindCollectionAlreadyExists Kind = "COLLECTION_ALREADY_EXISTS"
	KindCollectionNotFound     Kind = "COLLECTION_NOT_FOUND"
	KindRecordNotFound         Kind = "RECORD_NOT_FOUND"
	KindCorruptSnapshot        Kind = "CORRUPT_SNAPSHOT"
	KindIOFailure              Kind = "IO_FAILURE"
	KindCancelled              Kind = "CANCELLED"
)

// Error is the typed error every service method returns on failure.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// translateError maps an internal error from registry/collection/core
// into the stable public Kind, the way the teacher's errors.go maps
// engine errors into Vecgo's public error types.
func translateError(err error) *Error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}

	var dimErr *core.DimensionMismatchError
	if errors.As(err, &dimErr) {
		return newError(KindDimensionMismatch, dimErr.Error(), err)
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindCancelled, "operation cancelled", err)
	case errors.Is(err, core.ErrEmptyID):
		return newError(KindInvalidID, "record id must not be empty", err)
	case errors.Is(err, core.ErrNonFiniteComponent):
		return newError(KindNonFiniteComponent, "vector contains a non-finite component", err)
	case errors.Is(err, registry.ErrAlreadyExists):
		return newError(KindCollectionAlreadyExists, "collection already exists", err)
	case errors.Is(err, registry.ErrNotFound):
		return newError(KindCollectionNotFound, "collection not found", err)
	default:
		return newError(KindIOFailure, "unexpected failure", err)
	}
}
