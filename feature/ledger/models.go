package ledger

import "time"

// Operation names an audited unit of work.
type Operation string

const (
	OpBootstrap        Operation = "bootstrap"
	OpPullReservations Operation = "pull_reservations"
	OpPushRates        Operation = "push_rates"
)

// Status is the outcome recorded on an audit record.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// AuditRecord is one immutable line of the audit trail. An operation writes a
// running record when it starts and a terminal record with the same trace id
// when it ends.
type AuditRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TraceID      string         `gorm:"size:36;index;not null" json:"trace_id"`
	Operation    Operation      `gorm:"size:64;index;not null" json:"operation"`
	Status       Status         `gorm:"size:16;not null" json:"status"`
	HotelID      uint           `gorm:"index" json:"hotel_id"`
	ConnectionID *uint          `json:"connection_id,omitempty"`
	Cost         int            `json:"cost"`
	DurationMS   int64          `json:"duration_ms"`
	Error        string         `gorm:"type:text" json:"error,omitempty"`
	Details      map[string]any `gorm:"serializer:json;type:text" json:"details,omitempty"`
	Timestamp    time.Time      `gorm:"index;not null" json:"timestamp"`
}

// TableName overrides the table name.
func (AuditRecord) TableName() string {
	return "audit_records"
}

// SyncState is the per hotel and provider synchronization state.
type SyncState struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	HotelID              uint              `gorm:"uniqueIndex:idx_sync_state_hotel_provider;not null" json:"hotel_id"`
	Provider             string            `gorm:"size:64;uniqueIndex:idx_sync_state_hotel_provider;not null" json:"provider"`
	Enabled              bool              `gorm:"not null;default:true" json:"enabled"`
	BootstrapCompletedAt *time.Time        `json:"bootstrap_completed_at,omitempty"`
	CalendarFrom         string            `gorm:"size:10" json:"calendar_from,omitempty"`
	CalendarTo           string            `gorm:"size:10" json:"calendar_to,omitempty"`
	Cursors              map[string]string `gorm:"serializer:json;type:text" json:"cursors,omitempty"`
	LastAttemptAt        *time.Time        `json:"last_attempt_at,omitempty"`
	LastSuccessAt        *time.Time        `json:"last_success_at,omitempty"`
	LastError            string            `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// TableName overrides the table name.
func (SyncState) TableName() string {
	return "sync_states"
}

// Cursor names.
const (
	CursorReservations = "reservations"
)
