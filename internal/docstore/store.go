// Package docstore is the document service the profile repository writes to:
// collections of schemaless documents addressed by key, with whole-document
// replace or top-level field merge on write.
package docstore

import (
	"context"
	"maps"
)

// Document is a schemaless record. Values must be JSON-representable.
type Document map[string]any

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// SetOptions controls how Set treats an existing document.
type SetOptions struct {
	// Merge overlays the given top-level fields onto the stored document
	// instead of replacing it. Missing documents are created either way.
	Merge bool
}

// Store is implemented by every backend. Get returns sentinel.ErrNotFound for
// absent documents; backend failures wrap sentinel.ErrUnavailable. A single Set
// is atomic with respect to other Sets on the same document.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, fields Document, opts SetOptions) error
}

// apply returns the document that results from writing fields over current.
func apply(current, fields Document, opts SetOptions) Document {
	if !opts.Merge || current == nil {
		return fields.Clone()
	}
	out := current.Clone()
	maps.Copy(out, fields)
	return out
}
