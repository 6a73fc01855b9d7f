package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no active connection matches.
var ErrNotFound = errors.New("connection not found")

// Connection links a hotel to its property on a provider.
// The provider credentials live in a secret record referenced by SecretRef.
type Connection struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	HotelID            uint       `gorm:"uniqueIndex:idx_connection_hotel_provider;not null" json:"hotel_id"`
	Provider           string     `gorm:"size:64;uniqueIndex:idx_connection_hotel_provider;not null" json:"provider"`
	ProviderPropertyID string     `gorm:"size:64;not null" json:"provider_property_id"`
	Scopes             []string   `gorm:"serializer:json;type:text" json:"scopes"`
	SecretRef          string     `gorm:"size:64" json:"-"`
	Active             bool       `gorm:"not null;default:true" json:"active"`
	LastTokenUseAt     *time.Time `json:"last_token_use_at,omitempty"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	CreditsRemaining   *int       `json:"credits_remaining,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName overrides the table name.
func (Connection) TableName() string {
	return "channel_connections"
}

// Store persists connections.
type Store struct {
	db *gorm.DB
}

// NewStore creates a connection store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns an active connection by id.
func (s *Store) Get(ctx context.Context, id uint) (*Connection, error) {
	var c Connection
	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&c).Error
	return found(&c, err, fmt.Sprintf("id %d", id))
}

// ForHotel returns the active connection of a hotel on provider.
func (s *Store) ForHotel(ctx context.Context, hotelID uint, provider string) (*Connection, error) {
	var c Connection
	err := s.db.WithContext(ctx).
		Where("hotel_id = ? AND provider = ? AND active = ?", hotelID, provider, true).
		First(&c).Error
	return found(&c, err, fmt.Sprintf("hotel %d on %s", hotelID, provider))
}

// Link creates the connection of a hotel, or re-activates and repoints the existing one.
func (s *Store) Link(ctx context.Context, hotelID uint, provider, propertyID string, scopes []string, secretRef string) (*Connection, error) {
	c := &Connection{
		HotelID:            hotelID,
		Provider:           provider,
		ProviderPropertyID: propertyID,
		Scopes:             scopes,
		SecretRef:          secretRef,
		Active:             true,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hotel_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider_property_id", "scopes", "secret_ref", "active", "updated_at"}),
	}).Create(c).Error
	if err != nil {
		return nil, fmt.Errorf("failed to link hotel %d: %w", hotelID, err)
	}
	return s.ForHotel(ctx, hotelID, provider)
}

// Unlink deactivates a connection. Its history (tokens, mappings, audit) is kept.
func (s *Store) Unlink(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&Connection{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to unlink connection %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// TouchTokenUse records when a token of the connection was last handed out.
func (s *Store) TouchTokenUse(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&Connection{}).Where("id = ?", id).
		Update("last_token_use_at", at).Error
}

// RecordSync stores the time of the last sync and, when reported, the remaining API credits.
func (s *Store) RecordSync(ctx context.Context, id uint, at time.Time, creditsRemaining *int) error {
	updates := map[string]any{"last_sync_at": at}
	if creditsRemaining != nil {
		updates["credits_remaining"] = *creditsRemaining
	}
	return s.db.WithContext(ctx).Model(&Connection{}).Where("id = ?", id).Updates(updates).Error
}

func found(c *Connection, err error, what string) (*Connection, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %s: %w", what, err)
	}
	return c, nil
}
