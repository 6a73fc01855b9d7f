package secret

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a secret reference does not resolve.
var ErrNotFound = errors.New("secret not found")

// Secret holds provider client credentials and refresh tokens, sealed at rest.
// Connections only carry its Ref.
type Secret struct {
	ID            uint              `gorm:"primaryKey"`
	Ref           string            `gorm:"size:64;uniqueIndex;not null"`
	ClientID      string            `gorm:"size:255"`
	ClientSecret  string            `gorm:"type:text"`
	RefreshTokens map[string]string `gorm:"serializer:json;type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name.
func (Secret) TableName() string {
	return "channel_secrets"
}

// Credentials is the opened form of a secret for one token type.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Store persists sealed secrets.
type Store struct {
	db     *gorm.DB
	sealer *Sealer
}

// NewStore creates a secret store.
func NewStore(db *gorm.DB, sealer *Sealer) *Store {
	return &Store{db: db, sealer: sealer}
}

// Create seals and stores client credentials plus one refresh token per token type.
func (s *Store) Create(ctx context.Context, clientID, clientSecret string, refreshTokens map[string]string) (*Secret, error) {
	sealedSecret, err := s.sealer.Seal(clientSecret)
	if err != nil {
		return nil, err
	}
	sealedTokens := make(map[string]string, len(refreshTokens))
	for typ, rt := range refreshTokens {
		if sealedTokens[typ], err = s.sealer.Seal(rt); err != nil {
			return nil, err
		}
	}

	rec := &Secret{
		Ref:           uuid.NewString(),
		ClientID:      clientID,
		ClientSecret:  sealedSecret,
		RefreshTokens: sealedTokens,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to store secret: %w", err)
	}
	return rec, nil
}

// Credentials opens the credentials needed to refresh tokenType.
func (s *Store) Credentials(ctx context.Context, ref, tokenType string) (*Credentials, error) {
	rec, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	clientSecret, err := s.sealer.Open(rec.ClientSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sealer.Open(rec.RefreshTokens[tokenType])
	if err != nil {
		return nil, err
	}
	return &Credentials{ClientID: rec.ClientID, ClientSecret: clientSecret, RefreshToken: refresh}, nil
}

// RotateRefreshToken replaces the refresh token of tokenType after the provider issued a new one.
func (s *Store) RotateRefreshToken(ctx context.Context, ref, tokenType, refreshToken string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Secret
		if err := tx.Where("ref = ?", ref).First(&rec).Error; err != nil {
			return fmt.Errorf("failed to load secret %s: %w", ref, err)
		}
		sealed, err := s.sealer.Seal(refreshToken)
		if err != nil {
			return err
		}
		if rec.RefreshTokens == nil {
			rec.RefreshTokens = map[string]string{}
		}
		rec.RefreshTokens[tokenType] = sealed
		return tx.Save(&rec).Error
	})
}

func (s *Store) load(ctx context.Context, ref string) (*Secret, error) {
	var rec Secret
	err := s.db.WithContext(ctx).Where("ref = ?", ref).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load secret %s: %w", ref, err)
	}
	return &rec, nil
}
