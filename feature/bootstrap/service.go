package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"channel-manager/core/logger"
	"channel-manager/core/provider"
	"channel-manager/core/storage"
	"channel-manager/feature/connection"
	"channel-manager/feature/inventory"
	"channel-manager/feature/ledger"
	"channel-manager/feature/mapping"
	"channel-manager/feature/token"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultCalendarDays is the calendar window imported by phase 3.
const DefaultCalendarDays = 90

// ErrPropertyMismatch is returned when the request names a property other
// than the one the hotel is linked to.
var ErrPropertyMismatch = errors.New("hotel is linked to another property")

// Provider is the part of the provider API a bootstrap reads.
type Provider interface {
	Name() string
	GetProperty(ctx context.Context, token, propertyID string) (*provider.Property, *provider.Meta, error)
	GetCalendar(ctx context.Context, token, propertyID, from, to string) ([]provider.CalendarEntry, *provider.Meta, error)
}

// TokenSource hands out valid provider tokens.
type TokenSource interface {
	GetValidToken(ctx context.Context, connectionID uint, typ token.Type) (*token.Token, error)
}

// Service imports a provider property into the PMS in three phases.
type Service struct {
	db       *gorm.DB
	client   Provider
	tokens   TokenSource
	conns    *connection.Store
	mappings *mapping.Store
	engine   *inventory.Engine
	ledger   *ledger.Ledger
	states   *ledger.States
	archiver *storage.Archiver
	logger   *zap.Logger

	calendarDays int
	now          func() time.Time
}

// Deps groups the collaborators of a Service.
type Deps struct {
	DB       *gorm.DB
	Client   Provider
	Tokens   TokenSource
	Conns    *connection.Store
	Mappings *mapping.Store
	Engine   *inventory.Engine
	Ledger   *ledger.Ledger
	States   *ledger.States
	Archiver *storage.Archiver
	Logger   *zap.Logger
}

// NewService creates a bootstrap service. calendarDays <= 0 uses DefaultCalendarDays.
func NewService(d Deps, calendarDays int) *Service {
	if calendarDays <= 0 {
		calendarDays = DefaultCalendarDays
	}
	return &Service{
		db:           d.DB,
		client:       d.Client,
		tokens:       d.Tokens,
		conns:        d.Conns,
		mappings:     d.Mappings,
		engine:       d.Engine,
		ledger:       d.Ledger,
		states:       d.States,
		archiver:     d.Archiver,
		logger:       d.Logger,
		calendarDays: calendarDays,
		now:          time.Now,
	}
}

// run carries the state of one bootstrap.
type run struct {
	req     Request
	conn    *connection.Connection
	token   string
	traceID string
	log     *zap.Logger
	meta    provider.Meta
	result  *Result
}

// Bootstrap imports the property, its room types and its calendar.
//
// A failure to obtain a token or to fetch the property aborts the call. Room
// type and calendar failures are collected: the result is returned together
// with *PartialImportError and earlier phases are kept.
func (s *Service) Bootstrap(ctx context.Context, req Request) (res *Result, err error) {
	if req.HotelID == 0 {
		return nil, fmt.Errorf("hotel id is required")
	}
	provName := s.client.Name()
	scope := ledger.Scope{HotelID: req.HotelID, TraceID: req.TraceID}

	conn, err := s.conns.ForHotel(ctx, req.HotelID, provName)
	if err != nil {
		return nil, s.reject(ctx, scope, err)
	}
	scope.ConnectionID = &conn.ID
	if req.PropertyID == "" {
		req.PropertyID = conn.ProviderPropertyID
	}
	if req.PropertyID != conn.ProviderPropertyID {
		return nil, s.reject(ctx, scope, fmt.Errorf("%w: hotel %d is linked to %s, not %s",
			ErrPropertyMismatch, req.HotelID, conn.ProviderPropertyID, req.PropertyID))
	}

	entry := s.ledger.Begin(ctx, ledger.OpBootstrap, scope)
	r := &run{
		req:     req,
		conn:    conn,
		traceID: entry.TraceID(),
		log:     logger.WithTrace(s.logger, entry.TraceID()).With(zap.Uint("hotel_id", req.HotelID)),
		result:  &Result{TraceID: entry.TraceID()},
	}

	defer func() {
		if p := recover(); p != nil {
			perr := fmt.Errorf("bootstrap panicked: %v", p)
			r.log.Error("Bootstrap panicked", zap.Any("panic", p))
			s.finish(ctx, entry, r, ledger.StatusFailed, perr)
			panic(p)
		}
	}()

	if _, err := s.states.Ensure(ctx, req.HotelID, provName); err != nil {
		r.log.Warn("Failed to ensure sync state", zap.Error(err))
	}

	tok, err := s.tokens.GetValidToken(ctx, conn.ID, token.TypeRead)
	if err != nil {
		s.finish(ctx, entry, r, ledger.StatusFailed, err)
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}
	r.token = tok.Value

	prop, err := s.importHotel(ctx, r)
	if err != nil {
		s.finish(ctx, entry, r, ledger.StatusFailed, err)
		return nil, err
	}

	if len(prop.Rooms) > 0 {
		s.importRoomTypes(ctx, r, prop.Rooms)
	} else {
		r.log.Info("Property returned no rooms, skipping room types")
	}

	s.importCalendar(ctx, r)

	r.result.total()
	r.result.CreditsUsed = r.meta.CreditsUsed
	partial := r.result.partialError()

	status := ledger.StatusSuccess
	if partial != nil {
		status = ledger.StatusPartial
	}
	s.finish(ctx, entry, r, status, partial)

	if err := s.states.CompleteBootstrap(ctx, req.HotelID, provName, s.now(), r.result.CalendarFrom, r.result.CalendarTo); err != nil {
		r.log.Warn("Failed to record bootstrap completion", zap.Error(err))
	}

	if partial != nil {
		return r.result, partial
	}
	return r.result, nil
}

func (s *Service) finish(ctx context.Context, entry *ledger.Entry, r *run, status ledger.Status, cause error) {
	provName := s.client.Name()
	now := s.now()

	if err := s.states.RecordAttempt(ctx, r.req.HotelID, provName, now, cause); err != nil {
		r.log.Warn("Failed to record sync attempt", zap.Error(err))
	}
	if status != ledger.StatusFailed {
		if err := s.states.RecordSuccess(ctx, r.req.HotelID, provName, now); err != nil {
			r.log.Warn("Failed to record sync success", zap.Error(err))
		}
	}

	var remaining *int
	if r.meta.Reported {
		remaining = &r.meta.CreditsRemaining
	}
	if err := s.conns.RecordSync(ctx, r.conn.ID, now, remaining); err != nil {
		r.log.Warn("Failed to record connection sync", zap.Error(err))
	}

	details := map[string]any{
		"property_id":    r.req.PropertyID,
		"hotel":          r.result.Hotel,
		"room_types":     r.result.RoomTypes,
		"calendar":       r.result.Calendar,
		"total_imported": r.result.TotalImported,
	}
	if r.meta.Reported {
		details["credits_remaining"] = r.meta.CreditsRemaining
	}
	entry.Finish(ctx, status, ledger.Outcome{Cost: r.meta.CreditsUsed, Err: cause, Details: details})

	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Int("total_imported", r.result.TotalImported),
		zap.Int("credits_used", r.meta.CreditsUsed),
	}
	switch status {
	case ledger.StatusFailed:
		r.log.Error("Bootstrap failed", append(fields, zap.Error(cause), zap.Bool("retryable", provider.IsRetryable(cause)))...)
	case ledger.StatusPartial:
		r.log.Warn("Bootstrap partially completed", append(fields, zap.Error(cause))...)
	default:
		r.log.Info("Bootstrap completed", fields...)
	}
}

// reject audits a bootstrap refused before any phase ran.
func (s *Service) reject(ctx context.Context, scope ledger.Scope, err error) error {
	traceID := s.ledger.Fail(ctx, ledger.OpBootstrap, scope, err)
	s.logger.Warn("Bootstrap rejected",
		zap.Uint("hotel_id", scope.HotelID), zap.String("trace_id", traceID), zap.Error(err))
	return err
}

func (s *Service) archive(ctx context.Context, r *run, name string, payload any) {
	if _, err := s.archiver.Archive(ctx, r.req.HotelID, string(ledger.OpBootstrap), r.traceID, name, payload); err != nil {
		r.log.Warn("Failed to archive payload", zap.String("payload", name), zap.Error(err))
	}
}

// IsCallLevel reports whether err aborted the bootstrap rather than a single phase.
func IsCallLevel(err error) bool {
	var pe *PartialImportError
	return err != nil && !errors.As(err, &pe)
}
