// Package docstore is the document store behind the dashboard: schemaless JSON documents grouped
// in collections, owner-scoped queries, and live subscriptions that push a full snapshot after
// every write.
package docstore

import (
	"context"
	"errors"

	"crypto-trading-dashboard/internal/models"
)

// ErrNotFound is returned when a document does not exist or belongs to another owner.
var ErrNotFound = errors.New("document not found")

// Query selects documents for Find and Subscribe.
// With DocID set it watches that single document; otherwise it selects a collection,
// scoped to OwnerID when non-empty, ordered newest first.
type Query struct {
	Collection string
	OwnerID    string
	DocID      string
}

func (q Query) matches(collection, id, ownerID string) bool {
	if q.Collection != collection {
		return false
	}
	if q.DocID != "" {
		return q.DocID == id
	}
	// an unknown owner on the write side notifies every owner-scoped query of the collection
	return q.OwnerID == "" || ownerID == "" || q.OwnerID == ownerID
}

// Snapshot is the complete result of a query at one point in time.
type Snapshot struct {
	Documents []models.Document
	// Exists is false when a single-document query found nothing.
	Exists bool
	// Err is set when the query itself failed; Documents is then empty.
	Err error
}

// Store is the document-store contract consumed by the dashboard and the exchange syncer.
// Every call may fail with a transport error.
type Store interface {
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	Find(ctx context.Context, q Query) ([]models.Document, error)
	Get(ctx context.Context, collection, id string) (models.Document, error)
	Create(ctx context.Context, collection, ownerID string, fields map[string]interface{}) (string, error)
	Set(ctx context.Context, collection, id, ownerID string, fields map[string]interface{}) error
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id, ownerID string) error
}
