// Package docstore defines the narrow document-store contract the messaging
// engine is built on: durable key-value documents grouped into collections,
// partial updates, idempotent deletes, and push-based subscriptions that
// deliver a full ordered snapshot of a collection on every change.
//
// A document path is a collection path plus a final ID segment, e.g.
// "users/u1" or "chats/alice_bob/messages/m1".
package docstore

import "context"

// Fields is the schemaless field set of one document. Values are limited to
// JSON-representable types; numeric fields may come back as int64 or
// float64 depending on the backend, so readers must accept both.
type Fields = map[string]any

// Document is one document inside a collection snapshot.
type Document struct {
	ID     string
	Fields Fields
}

// Query controls ordering and size of collection reads and subscriptions.
// A zero Query means "everything, unordered".
type Query struct {
	OrderBy    string
	Descending bool
	Limit      int // 0 means no limit
}

// Snapshot is the full current state of a subscribed collection, ordered
// per the subscription's Query.
type Snapshot struct {
	Documents []Document
}

// CancelFunc tears down one subscription. Safe to call more than once.
type CancelFunc func()

// Store is the full contract consumed by the engine. Implementations must
// treat DeleteDocument of an absent document as success, and must deliver a
// subscription event on every add, update and remove in the collection
// (including one initial snapshot right after subscribing).
type Store interface {
	// GetDocument returns the fields of one document, or common.ErrNotFound.
	GetDocument(ctx context.Context, path string) (Fields, error)

	// SetDocument creates or fully replaces a document.
	SetDocument(ctx context.Context, path string, fields Fields) error

	// UpdateFields merges the given fields into a document, creating it if
	// absent. Fields not mentioned are left untouched.
	UpdateFields(ctx context.Context, path string, fields Fields) error

	// DeleteDocument removes a document. Deleting an absent document is
	// success, which makes racing deleters benign.
	DeleteDocument(ctx context.Context, path string) error

	// ListDocuments is a one-shot ordered read of a collection.
	ListDocuments(ctx context.Context, path string, q Query) ([]Document, error)

	// SubscribeToCollection streams snapshots of a collection until the
	// context is done or the CancelFunc is called.
	SubscribeToCollection(ctx context.Context, path string, q Query) (<-chan Snapshot, CancelFunc, error)

	// GenerateID returns a new opaque unique document ID, usable before the
	// document exists.
	GenerateID() string
}
