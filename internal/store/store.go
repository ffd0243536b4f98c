// Package store abstracts the remote multi-user document store.
//
// The editor only needs three operations: create a document, update a
// document, and query a collection for option values. Implementations
// classify their failures into a small set of kinds so the save coordinator
// can decide between retry and surfacing an error.
package store

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Document is one stored record: its server-assigned ID plus field values.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is the write/read surface the editor consumes.
type Store interface {
	// Create writes a new document and returns its server-assigned ID.
	// Fields must not contain server-assigned keys.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update overwrites the given fields on an existing document. The same
	// reserved-key rule applies.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Query returns all documents in collection whose field equals value.
	// An empty field returns the whole collection.
	Query(ctx context.Context, collection, field string, value any) ([]Document, error)
}

// ErrKind categorizes a store failure.
type ErrKind int

const (
	KindUnknown ErrKind = iota
	KindUnavailable
	KindPermissionDenied
	KindTimeout
	KindInvalid // rejected payload, e.g. reserved keys set by the caller
)

func (k ErrKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindPermissionDenied:
		return "permission-denied"
	case KindTimeout:
		return "timeout"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Error wraps an underlying failure with its kind.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Kind classifies any error returned by a Store. Wrapped *Error values keep
// their kind; gRPC and context errors are mapped; everything else is unknown.
func Kind(err error) ErrKind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	switch status.Code(err) {
	case codes.Unavailable:
		return KindUnavailable
	case codes.PermissionDenied, codes.Unauthenticated:
		return KindPermissionDenied
	case codes.DeadlineExceeded, codes.Canceled:
		return KindTimeout
	case codes.InvalidArgument:
		return KindInvalid
	}

	return KindUnknown
}

// Retryable reports whether a failure class is transient enough to retry.
// Permission and validation failures never are.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindUnavailable, KindTimeout:
		return true
	}
	return false
}
