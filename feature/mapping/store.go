package mapping

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const bulkBatchSize = 200

var conflictKey = []clause.Column{{Name: "provider"}, {Name: "entity_type"}, {Name: "external_id"}}

// Store persists external mappings keyed by (provider, entity_type,
// external_id). Upserts let the last write win; Insert keeps the first.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a mapping store.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// WithDB returns a copy of the store bound to db, typically a transaction.
func (s *Store) WithDB(db *gorm.DB) *Store {
	return &Store{db: db, logger: s.logger}
}

// FindByExternalID returns the mapping of a provider entity, or nil when there is none.
func (s *Store) FindByExternalID(ctx context.Context, provider, entityType, externalID string) (*ExternalMapping, error) {
	var m ExternalMapping
	err := s.db.WithContext(ctx).
		Where("provider = ? AND entity_type = ? AND external_id = ?", provider, entityType, externalID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s mapping %s: %w", entityType, externalID, err)
	}
	return &m, nil
}

// FindByInternalID returns the forward mapping pointing at an internal entity, or nil.
// The reverse row is used when present; otherwise the most recently written
// forward row wins.
func (s *Store) FindByInternalID(ctx context.Context, provider, entityType string, internalID uint) (*ExternalMapping, error) {
	if Reversible(entityType) {
		rev, err := s.FindByExternalID(ctx, provider, ReversePrefix+entityType, strconv.FormatUint(uint64(internalID), 10))
		if err != nil {
			return nil, err
		}
		if rev != nil {
			if ext, ok := rev.Metadata["external_id"].(string); ok {
				fwd, err := s.FindByExternalID(ctx, provider, entityType, ext)
				if err != nil || fwd != nil {
					return fwd, err
				}
			}
		}
	}

	var m ExternalMapping
	err := s.db.WithContext(ctx).
		Where("provider = ? AND entity_type = ? AND internal_id = ?", provider, entityType, internalID).
		Order("updated_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s mapping for internal id %d: %w", entityType, internalID, err)
	}
	return &m, nil
}

// Resolve returns the internal id of a provider entity, or ErrNotFound.
func (s *Store) Resolve(ctx context.Context, provider, entityType, externalID string) (uint, error) {
	m, err := s.FindByExternalID(ctx, provider, entityType, externalID)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, fmt.Errorf("%w: %s %s on %s", ErrNotFound, entityType, externalID, provider)
	}
	return m.InternalID, nil
}

// Upsert writes a mapping, overwriting the internal id and metadata of an existing key.
func (s *Store) Upsert(ctx context.Context, provider, entityType, externalID string, internalID uint, metadata map[string]any) (*ExternalMapping, error) {
	m := &ExternalMapping{
		Provider:   provider,
		EntityType: entityType,
		ExternalID: externalID,
		InternalID: internalID,
		Metadata:   metadata,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   conflictKey,
		DoUpdates: clause.AssignmentColumns([]string{"internal_id", "metadata", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s mapping %s: %w", entityType, externalID, err)
	}
	return s.FindByExternalID(ctx, provider, entityType, externalID)
}

// Insert writes a new mapping and never overwrites one. A taken key returns
// ErrExists, which lets a transaction that lost a race roll back.
func (s *Store) Insert(ctx context.Context, provider, entityType, externalID string, internalID uint, metadata map[string]any) (*ExternalMapping, error) {
	m := &ExternalMapping{
		Provider:   provider,
		EntityType: entityType,
		ExternalID: externalID,
		InternalID: internalID,
		Metadata:   metadata,
	}
	q := s.db.WithContext(ctx).Clauses(clause.OnConflict{Columns: conflictKey, DoNothing: true}).Create(m)
	if q.Error != nil {
		return nil, fmt.Errorf("failed to insert %s mapping %s: %w", entityType, externalID, q.Error)
	}
	if q.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s %s on %s", ErrExists, entityType, externalID, provider)
	}
	return m, nil
}

// UpsertBidirectional writes the forward mapping and, for hotels, room types
// and guests, a reverse row keyed by the internal id. The two writes are
// independent: a failed reverse write is logged and leaves Reverse nil.
func (s *Store) UpsertBidirectional(ctx context.Context, provider, entityType, externalID string, internalID uint, metadata map[string]any) (*BidirectionalResult, error) {
	fwd, err := s.Upsert(ctx, provider, entityType, externalID, internalID, metadata)
	if err != nil {
		return nil, err
	}
	res := &BidirectionalResult{Forward: fwd}
	if !Reversible(entityType) {
		return res, nil
	}

	revMeta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		revMeta[k] = v
	}
	revMeta["external_id"] = externalID

	rev, err := s.Upsert(ctx, provider, ReversePrefix+entityType, strconv.FormatUint(uint64(internalID), 10), internalID, revMeta)
	if err != nil {
		s.logger.Warn("Reverse mapping write failed",
			zap.String("provider", provider),
			zap.String("entity_type", entityType),
			zap.String("external_id", externalID),
			zap.Uint("internal_id", internalID),
			zap.Error(err))
		return res, nil
	}
	res.Reverse = rev
	return res, nil
}

// BulkUpsert writes many mappings with the same conflict semantics as Upsert.
// Duplicate keys inside one call keep the last occurrence.
func (s *Store) BulkUpsert(ctx context.Context, mappings []ExternalMapping) (int, error) {
	if len(mappings) == 0 {
		return 0, nil
	}

	type key struct{ provider, entityType, externalID string }
	index := make(map[key]int, len(mappings))
	rows := make([]ExternalMapping, 0, len(mappings))
	for _, m := range mappings {
		k := key{m.Provider, m.EntityType, m.ExternalID}
		m.ID = 0
		if i, ok := index[k]; ok {
			rows[i] = m
			continue
		}
		index[k] = len(rows)
		rows = append(rows, m)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   conflictKey,
		DoUpdates: clause.AssignmentColumns([]string{"internal_id", "metadata", "updated_at"}),
	}).CreateInBatches(&rows, bulkBatchSize).Error
	if err != nil {
		return 0, fmt.Errorf("failed to bulk upsert %d mappings: %w", len(rows), err)
	}
	return len(rows), nil
}

// List returns the mappings of one entity type, ordered by external id.
func (s *Store) List(ctx context.Context, provider, entityType string) ([]ExternalMapping, error) {
	var out []ExternalMapping
	err := s.db.WithContext(ctx).
		Where("provider = ? AND entity_type = ?", provider, entityType).
		Order("external_id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s mappings: %w", entityType, err)
	}
	return out, nil
}
