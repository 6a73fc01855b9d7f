package channelsync

import (
	"context"
	"time"

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

// Provider is the part of the provider API the sync workers use.
type Provider interface {
	Name() string
	ListBookings(ctx context.Context, token, propertyID, from, to string) ([]provider.Booking, *provider.Meta, error)
	UpdateCalendar(ctx context.Context, token string, changes []provider.CalendarChange) (*provider.Meta, error)
}

// TokenSource hands out valid provider tokens.
type TokenSource interface {
	GetValidToken(ctx context.Context, connectionID uint, typ token.Type) (*token.Token, error)
}

// Config tunes the workers.
type Config struct {
	// DefaultPullDays is the trailing window used without cursor or range.
	DefaultPullDays int
	// AllowOverbookingOnPull accepts provider bookings the inventory has no room for.
	// The provider already sold the room; rejecting only hides the booking.
	AllowOverbookingOnPull bool
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

// Service runs reservation pulls and rate pushes.
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
	cfg      Config
	now      func() time.Time
}

// NewService creates the sync workers.
func NewService(d Deps, cfg Config) *Service {
	if cfg.DefaultPullDays <= 0 {
		cfg.DefaultPullDays = DefaultPullDays
	}
	return &Service{
		db:       d.DB,
		client:   d.Client,
		tokens:   d.Tokens,
		conns:    d.Conns,
		mappings: d.Mappings,
		engine:   d.Engine,
		ledger:   d.Ledger,
		states:   d.States,
		archiver: d.Archiver,
		logger:   d.Logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// recordAttempt stores the attempt with cause as the last error. A completed
// run also stores its success time, even when cause holds item errors.
func (s *Service) recordAttempt(ctx context.Context, log *zap.Logger, hotelID uint, cause error, completed bool) {
	now := s.now()
	if err := s.states.RecordAttempt(ctx, hotelID, s.client.Name(), now, cause); err != nil {
		log.Warn("Failed to record sync attempt", zap.Error(err))
	}
	if completed {
		if err := s.states.RecordSuccess(ctx, hotelID, s.client.Name(), now); err != nil {
			log.Warn("Failed to record sync success", zap.Error(err))
		}
	}
}

func (s *Service) recordConnection(ctx context.Context, log *zap.Logger, connID uint, meta provider.Meta) {
	var remaining *int
	if meta.Reported {
		remaining = &meta.CreditsRemaining
	}
	if err := s.conns.RecordSync(ctx, connID, s.now(), remaining); err != nil {
		log.Warn("Failed to record connection sync", zap.Error(err))
	}
}
