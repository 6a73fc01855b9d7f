package token

import (
	"errors"
	"fmt"
	"time"
)

// Type distinguishes the read and write credentials of a connection.
type Type string

const (
	TypeRead  Type = "read"
	TypeWrite Type = "write"
)

// ParseType validates a token type coming from a request.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeRead, TypeWrite:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown token type %q", s)
	}
}

// Token is the current access token of one type for one connection.
// Refresh replaces the row; there is no history.
type Token struct {
	ID              uint       `gorm:"primaryKey" json:"-"`
	ConnectionID    uint       `gorm:"uniqueIndex:idx_token_connection_type;not null" json:"connection_id"`
	Type            Type       `gorm:"size:16;uniqueIndex:idx_token_connection_type;not null" json:"type"`
	Value           string     `gorm:"type:text" json:"-"`
	Scopes          []string   `gorm:"serializer:json;type:text" json:"scopes"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	IssuedAt        time.Time  `json:"issued_at"`
	Version         int64      `gorm:"not null" json:"-"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	PropertiesCount int        `json:"properties_count"`
	UpdatedAt       time.Time  `json:"-"`
}

// TableName overrides the table name.
func (Token) TableName() string {
	return "channel_tokens"
}

// DefaultBuffer is how long before expiry a token stops being handed out.
const DefaultBuffer = 5 * time.Minute

// State is the lifecycle position of a token type.
type State string

const (
	StateUnset      State = "unset"
	StateValid      State = "valid"
	StateNearExpiry State = "near_expiry"
	StateExpired    State = "expired"
	StateRefreshing State = "refreshing"
)

// StateOf classifies tok at now. A token inside the buffer is NearExpiry and,
// like Expired, is not usable.
func StateOf(tok *Token, now time.Time, buffer time.Duration) State {
	switch {
	case tok == nil || tok.Value == "":
		return StateUnset
	case tok.ExpiresAt == nil:
		return StateValid
	case !now.Before(*tok.ExpiresAt):
		return StateExpired
	case !now.Before(tok.ExpiresAt.Add(-buffer)):
		return StateNearExpiry
	default:
		return StateValid
	}
}

// Usable reports whether a token in state s may be handed to a caller.
func (s State) Usable() bool {
	return s == StateValid
}

// ErrAuth means no usable token can be produced for the connection.
var ErrAuth = errors.New("no usable token")

// RefreshError means the provider rejected a refresh. It is fatal to the current
// operation and is not retried inline; the previous token row is left in place.
type RefreshError struct {
	ConnectionID uint
	Type         Type
	Err          error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("failed to refresh %s token for connection %d: %v", e.Type, e.ConnectionID, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
