package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scope identifies what an audited operation works on.
type Scope struct {
	HotelID      uint
	ConnectionID *uint
	// TraceID reuses a caller-supplied trace id; a new one is generated when empty.
	TraceID string
}

// Outcome is what an operation reports when it finishes.
type Outcome struct {
	Cost    int
	Err     error
	Details map[string]any
}

// Ledger appends audit records. Write failures are logged and never returned.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates an audit ledger.
func NewLedger(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger, now: time.Now}
}

// Entry is an audited operation in progress.
type Entry struct {
	ledger    *Ledger
	traceID   string
	operation Operation
	scope     Scope
	started   time.Time
}

// Begin appends the running record of an operation.
func (l *Ledger) Begin(ctx context.Context, op Operation, scope Scope) *Entry {
	traceID := scope.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	e := &Entry{ledger: l, traceID: traceID, operation: op, scope: scope, started: l.now()}
	l.append(ctx, &AuditRecord{
		TraceID:      traceID,
		Operation:    op,
		Status:       StatusRunning,
		HotelID:      scope.HotelID,
		ConnectionID: scope.ConnectionID,
		Timestamp:    e.started,
	})
	return e
}

// TraceID returns the id correlating the records and logs of the operation.
func (e *Entry) TraceID() string {
	return e.traceID
}

// Finish appends the terminal record of the operation.
func (e *Entry) Finish(ctx context.Context, status Status, out Outcome) {
	now := e.ledger.now()
	rec := &AuditRecord{
		TraceID:      e.traceID,
		Operation:    e.operation,
		Status:       status,
		HotelID:      e.scope.HotelID,
		ConnectionID: e.scope.ConnectionID,
		Cost:         out.Cost,
		DurationMS:   now.Sub(e.started).Milliseconds(),
		Details:      out.Details,
		Timestamp:    now,
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	e.ledger.append(ctx, rec)
}

// Skip records an operation that did not run at all.
func (l *Ledger) Skip(ctx context.Context, op Operation, scope Scope, reason string) string {
	e := l.terminal(op, scope)
	e.Finish(ctx, StatusSkipped, Outcome{Details: map[string]any{"reason": reason}})
	return e.traceID
}

// Fail records an operation rejected before it started, such as an unknown
// connection or an invalid date range. It writes a single failed record.
func (l *Ledger) Fail(ctx context.Context, op Operation, scope Scope, cause error) string {
	e := l.terminal(op, scope)
	e.Finish(ctx, StatusFailed, Outcome{Err: cause})
	return e.traceID
}

// terminal builds an entry that only ever writes its terminal record.
func (l *Ledger) terminal(op Operation, scope Scope) *Entry {
	e := &Entry{ledger: l, traceID: scope.TraceID, operation: op, scope: scope, started: l.now()}
	if e.traceID == "" {
		e.traceID = uuid.NewString()
	}
	return e
}

func (l *Ledger) append(ctx context.Context, rec *AuditRecord) {
	// Audit rows must land even when the caller's request was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := l.db.WithContext(ctx).Create(rec).Error; err != nil {
		l.logger.Error("Failed to write audit record",
			zap.String("trace_id", rec.TraceID),
			zap.String("operation", string(rec.Operation)),
			zap.String("status", string(rec.Status)),
			zap.String("record_error", rec.Error),
			zap.Error(err))
	}
}

// Recent returns the latest audit records of a hotel, newest first.
func (l *Ledger) Recent(ctx context.Context, hotelID uint, limit int) ([]AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []AuditRecord
	err := l.db.WithContext(ctx).
		Where("hotel_id = ?", hotelID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load audit records: %w", err)
	}
	return out, nil
}

// Trace returns every record of one trace id in write order.
func (l *Ledger) Trace(ctx context.Context, traceID string) ([]AuditRecord, error) {
	var out []AuditRecord
	if err := l.db.WithContext(ctx).Where("trace_id = ?", traceID).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load trace %s: %w", traceID, err)
	}
	return out, nil
}
