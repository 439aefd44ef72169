package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-trading-dashboard/internal/models"
	"crypto-trading-dashboard/internal/trace"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps documents in a single gorm table and fans writes out to subscribers in-process.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time

	// mu serialises subscriber registration and publishing so that the last
	// publish to run always reflects every committed write before it.
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// ensure GormStore implements the interface
var _ Store = (*GormStore)(nil)

// NewGormStore creates a store on an already migrated database.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger.Named("docstore"),
		now:    time.Now,
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers q and delivers its current result immediately.
// The subscription ends on Cancel, on ctx cancellation, or on Close.
func (s *GormStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("subscribe: collection is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	sub := newSubscription(q, func() { s.unregister(id) })
	s.subs[id] = sub
	sub.deliver(s.run(context.Background(), q))
	s.mu.Unlock()

	context.AfterFunc(ctx, sub.Cancel)

	s.logger.Debug("Subscription started",
		zap.String("collection", q.Collection),
		zap.String("owner_id", q.OwnerID),
		zap.String("doc_id", q.DocID))
	return sub, nil
}

func (s *GormStore) unregister(id uint64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// ActiveSubscriptions returns how many subscriptions are registered.
func (s *GormStore) ActiveSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close cancels every subscription.
func (s *GormStore) Close() {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

// publish re-runs every matching query and pushes the fresh result.
func (s *GormStore) publish(collection, id, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.query.matches(collection, id, ownerID) {
			sub.deliver(s.run(context.Background(), sub.query))
		}
	}
}

func (s *GormStore) run(ctx context.Context, q Query) Snapshot {
	if q.DocID != "" {
		doc, err := s.get(ctx, q.Collection, q.DocID)
		if errors.Is(err, ErrNotFound) {
			return Snapshot{}
		}
		if err != nil {
			return Snapshot{Err: err}
		}
		return Snapshot{Documents: []models.Document{doc}, Exists: true}
	}

	docs, err := s.find(ctx, q)
	if err != nil {
		return Snapshot{Err: err}
	}
	return Snapshot{Documents: docs, Exists: len(docs) > 0}
}

// Find runs q once.
func (s *GormStore) Find(ctx context.Context, q Query) ([]models.Document, error) {
	ctx, span := trace.StartSpan(ctx, "docstore.Find", "collection", q.Collection)
	defer span.End()

	if q.DocID != "" {
		doc, err := s.get(ctx, q.Collection, q.DocID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			trace.RecordError(span, err)
			return nil, err
		}
		return []models.Document{doc}, nil
	}

	docs, err := s.find(ctx, q)
	trace.RecordError(span, err)
	return docs, err
}

func (s *GormStore) find(ctx context.Context, q Query) ([]models.Document, error) {
	var docs []models.Document
	db := s.db.WithContext(ctx).Where("collection = ?", q.Collection)
	if q.OwnerID != "" {
		db = db.Where("owner_id = ?", q.OwnerID)
	}
	if err := db.Order("created_at desc").Order("id desc").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Get loads one document.
func (s *GormStore) Get(ctx context.Context, collection, id string) (models.Document, error) {
	ctx, span := trace.StartSpan(ctx, "docstore.Get", "collection", collection, "id", id)
	defer span.End()

	doc, err := s.get(ctx, collection, id)
	trace.RecordError(span, err)
	return doc, err
}

func (s *GormStore) get(ctx context.Context, collection, id string) (models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Create stores a new document under a generated id and returns the id.
func (s *GormStore) Create(ctx context.Context, collection, ownerID string, fields map[string]interface{}) (string, error) {
	ctx, span := trace.StartSpan(ctx, "docstore.Create", "collection", collection)
	defer span.End()

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	doc := models.Document{
		Collection: collection,
		ID:         ulid.Make().String(),
		OwnerID:    ownerID,
		Data:       datatypes.JSON(data),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		trace.RecordError(span, err)
		return "", fmt.Errorf("failed to create %s document: %w", collection, err)
	}

	s.logger.Debug("Document created", zap.String("collection", collection), zap.String("id", doc.ID))
	s.publish(collection, doc.ID, ownerID)
	return doc.ID, nil
}

// Set writes the full body of a document, creating it when absent. The creation time is preserved.
func (s *GormStore) Set(ctx context.Context, collection, id, ownerID string, fields map[string]interface{}) error {
	ctx, span := trace.StartSpan(ctx, "docstore.Set", "collection", collection, "id", id)
	defer span.End()

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	now := s.now().UTC()
	doc := models.Document{
		Collection: collection,
		ID:         id,
		OwnerID:    ownerID,
		Data:       datatypes.JSON(data),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "data", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		trace.RecordError(span, err)
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}

	s.publish(collection, id, ownerID)
	return nil
}

// Update merges fields into an existing document.
func (s *GormStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	ctx, span := trace.StartSpan(ctx, "docstore.Update", "collection", collection, "id", id)
	defer span.End()

	var ownerID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		err := tx.Where("collection = ? AND id = ?", collection, id).Take(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		ownerID = doc.OwnerID

		merged := doc.Fields()
		for k, v := range fields {
			merged[k] = v
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		return tx.Model(&models.Document{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]interface{}{
				"data":       datatypes.JSON(data),
				"updated_at": s.now().UTC(),
			}).Error
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		trace.RecordError(span, err)
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}

	s.publish(collection, id, ownerID)
	return nil
}

// Delete removes one document. With ownerID set, documents of other owners are reported as not found.
func (s *GormStore) Delete(ctx context.Context, collection, id, ownerID string) error {
	ctx, span := trace.StartSpan(ctx, "docstore.Delete", "collection", collection, "id", id)
	defer span.End()

	db := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id)
	if ownerID != "" {
		db = db.Where("owner_id = ?", ownerID)
	}
	res := db.Delete(&models.Document{})
	if res.Error != nil {
		trace.RecordError(span, res.Error)
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("Document deleted", zap.String("collection", collection), zap.String("id", id))
	s.publish(collection, id, ownerID)
	return nil
}
