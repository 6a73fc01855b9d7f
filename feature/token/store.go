package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"channel-manager/core/secret"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists tokens with sealed values.
type Store struct {
	db     *gorm.DB
	sealer *secret.Sealer
}

// NewStore creates a token store.
func NewStore(db *gorm.DB, sealer *secret.Sealer) *Store {
	return &Store{db: db, sealer: sealer}
}

// Get returns the current token of a type with its value opened, or nil when unset.
func (s *Store) Get(ctx context.Context, connectionID uint, typ Type) (*Token, error) {
	var tok Token
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND type = ?", connectionID, typ).
		First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s token: %w", typ, err)
	}
	if tok.Value, err = s.sealer.Open(tok.Value); err != nil {
		return nil, err
	}
	return &tok, nil
}

// List returns the tokens of a connection without their values.
func (s *Store) List(ctx context.Context, connectionID uint) ([]Token, error) {
	var toks []Token
	err := s.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("type").
		Find(&toks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	for i := range toks {
		toks[i].Value = ""
	}
	return toks, nil
}

// CompareAndSwap stores tok unless the stored token of the same type has a newer
// or equal Version. It reports whether tok was stored.
func (s *Store) CompareAndSwap(ctx context.Context, tok *Token) (bool, error) {
	sealed, err := s.sealer.Seal(tok.Value)
	if err != nil {
		return false, err
	}
	row := *tok
	row.Value = sealed
	db := s.db.WithContext(ctx)

	for attempt := 0; attempt < 2; attempt++ {
		res := db.Model(&Token{}).
			Where("connection_id = ? AND type = ? AND version < ?", row.ConnectionID, row.Type, row.Version).
			Select("value", "scopes", "expires_at", "issued_at", "version", "properties_count", "updated_at").
			Updates(&Token{
				Value:           row.Value,
				Scopes:          row.Scopes,
				ExpiresAt:       row.ExpiresAt,
				IssuedAt:        row.IssuedAt,
				Version:         row.Version,
				PropertiesCount: row.PropertiesCount,
				UpdatedAt:       time.Now(),
			})
		if res.Error != nil {
			return false, fmt.Errorf("failed to swap %s token: %w", row.Type, res.Error)
		}
		if res.RowsAffected > 0 {
			return true, nil
		}

		ins := row
		ins.ID = 0
		res = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ins)
		if res.Error != nil {
			return false, fmt.Errorf("failed to insert %s token: %w", row.Type, res.Error)
		}
		if res.RowsAffected > 0 {
			return true, nil
		}
		// A row appeared between the update and the insert; compare against it once more.
	}
	return false, nil
}

// MarkUsed records when a token was last handed out.
func (s *Store) MarkUsed(ctx context.Context, connectionID uint, typ Type, at time.Time) error {
	return s.db.WithContext(ctx).Model(&Token{}).
		Where("connection_id = ? AND type = ?", connectionID, typ).
		Update("last_used_at", at).Error
}
