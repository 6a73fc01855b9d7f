package mapping

import (
	"errors"
	"time"
)

// Entity types known to the engine.
const (
	EntityHotel    = "hotel"
	EntityRoomType = "room_type"
	EntityGuest    = "guest"
	EntityBooking  = "booking"
)

// ReversePrefix prefixes the entity type of reverse (internal to external) rows.
const ReversePrefix = "internal_"

// reversible lists the entity types that get a reverse row.
var reversible = map[string]bool{
	EntityHotel:    true,
	EntityRoomType: true,
	EntityGuest:    true,
}

// Reversible reports whether entityType gets a reverse row on UpsertBidirectional.
func Reversible(entityType string) bool {
	return reversible[entityType]
}

// ErrNotFound is returned by Resolve when an external entity has no mapping.
// Batch callers skip the affected item and continue.
var ErrNotFound = errors.New("mapping not found")

// ErrExists is returned by Insert when the external key is already mapped.
var ErrExists = errors.New("mapping already exists")

// ExternalMapping translates a provider-side identifier into an internal one.
//
// A reverse row uses EntityType "internal_"+type, carries the internal id in
// ExternalID and the provider id in Metadata["external_id"].
type ExternalMapping struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Provider   string         `gorm:"size:64;uniqueIndex:idx_mapping_external;not null" json:"provider"`
	EntityType string         `gorm:"size:64;uniqueIndex:idx_mapping_external;index:idx_mapping_internal;not null" json:"entity_type"`
	ExternalID string         `gorm:"size:128;uniqueIndex:idx_mapping_external;not null" json:"external_id"`
	InternalID uint           `gorm:"index:idx_mapping_internal;not null" json:"internal_id"`
	Metadata   map[string]any `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName overrides the table name.
func (ExternalMapping) TableName() string {
	return "external_mappings"
}

// BidirectionalResult holds both rows written by UpsertBidirectional.
// Reverse is nil when the entity type has no reverse row or its write failed.
type BidirectionalResult struct {
	Forward *ExternalMapping `json:"forward"`
	Reverse *ExternalMapping `json:"reverse,omitempty"`
}
