package storage

import (
	"context"
	"errors"
)

var (
	// ErrVersionConflict is returned by a conditional write when the stored document
	// changed since it was read.
	ErrVersionConflict = errors.New("ledger document changed since it was read")
	// ErrNotConfigured is returned when a backend lacks required settings.
	ErrNotConfigured = errors.New("store not configured")
)

// Document is the raw stored ledger plus an opaque version token.
type Document struct {
	Data    []byte
	Version string
}

// Precondition guards a write. The zero value writes unconditionally, so concurrent
// runs that read the same document race and the last write wins. With Enabled set
// the write fails with ErrVersionConflict unless the stored version still equals
// Version; an empty Version requires that no document exists yet.
type Precondition struct {
	Enabled bool
	Version string
}

// IfVersion builds a precondition matching a previously read document (nil = absent).
func IfVersion(doc *Document) Precondition {
	if doc == nil {
		return Precondition{Enabled: true}
	}
	return Precondition{Enabled: true, Version: doc.Version}
}

// Store is a passive container for the serialised ledger. It has no knowledge of the
// schema and offers no locking.
type Store interface {
	// Read returns nil, nil when no document exists.
	Read(ctx context.Context) (*Document, error)
	// Write replaces the document and returns its new version.
	Write(ctx context.Context, data []byte, pre Precondition) (string, error)
	Close() error
}
