package channelsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"channel-manager/core/logger"
	"channel-manager/core/provider"
	"channel-manager/core/utils"
	"channel-manager/feature/connection"
	"channel-manager/feature/inventory"
	"channel-manager/feature/ledger"
	"channel-manager/feature/mapping"
	"channel-manager/feature/pms/models"
	"channel-manager/feature/token"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errDuplicate marks a booking that was already imported.
var errDuplicate = errors.New("booking already imported")

// PullReservations imports the provider bookings of a connection.
//
// Call-level failures (unknown connection, bad range, no token, booking list
// failed) are audited and returned. A booking that cannot be imported is
// logged, counted and skipped; the batch continues.
func (s *Service) PullReservations(ctx context.Context, req PullRequest) (*PullResult, error) {
	conn, err := s.conns.Get(ctx, req.ConnectionID)
	if err != nil {
		connID := req.ConnectionID
		traceID := s.ledger.Fail(ctx, ledger.OpPullReservations, ledger.Scope{ConnectionID: &connID, TraceID: req.TraceID}, err)
		s.logger.Warn("Reservation pull rejected",
			zap.Uint("connection_id", connID), zap.String("trace_id", traceID), zap.Error(err))
		return nil, err
	}
	provName := s.client.Name()
	scope := ledger.Scope{HotelID: conn.HotelID, ConnectionID: &conn.ID, TraceID: req.TraceID}
	log := s.logger.With(zap.Uint("hotel_id", conn.HotelID), zap.Uint("connection_id", conn.ID))

	reject := func(err error) (*PullResult, error) {
		traceID := s.ledger.Fail(ctx, ledger.OpPullReservations, scope, err)
		log.Warn("Reservation pull rejected", zap.String("trace_id", traceID), zap.Error(err))
		return nil, err
	}

	if req.SyncType == SyncScheduled {
		enabled, err := s.states.IsEnabled(ctx, conn.HotelID, provName)
		if err != nil {
			return reject(err)
		}
		if !enabled {
			traceID := s.ledger.Skip(ctx, ledger.OpPullReservations, scope, "sync disabled")
			log.Info("Scheduled pull skipped, sync disabled", zap.String("trace_id", traceID))
			return &PullResult{Success: true, Data: []models.Reservation{}, SkippedRun: true, SkipReason: "sync disabled", TraceID: traceID}, nil
		}
	}

	window, err := s.pullWindow(ctx, conn, req.DateRange)
	if err != nil {
		return reject(err)
	}

	entry := s.ledger.Begin(ctx, ledger.OpPullReservations, scope)
	log = logger.WithTrace(log, entry.TraceID())
	res := &PullResult{Data: []models.Reservation{}, Window: window, TraceID: entry.TraceID()}
	var meta provider.Meta

	fail := func(err error) (*PullResult, error) {
		res.CreditsUsed, res.CreditsRemaining = meta.CreditsUsed, meta.CreditsRemaining
		entry.Finish(ctx, ledger.StatusFailed, ledger.Outcome{Cost: meta.CreditsUsed, Err: err, Details: pullDetails(res)})
		s.recordAttempt(ctx, log, conn.HotelID, err, false)
		s.recordConnection(ctx, log, conn.ID, meta)
		log.Error("Reservation pull failed", zap.Error(err), zap.Bool("retryable", provider.IsRetryable(err)))
		return nil, err
	}

	tok, err := s.tokens.GetValidToken(ctx, conn.ID, token.TypeRead)
	if err != nil {
		return fail(fmt.Errorf("failed to obtain token: %w", err))
	}

	bookings, m, err := s.client.ListBookings(ctx, tok.Value, conn.ProviderPropertyID, window.From, window.To)
	meta.Add(m)
	if err != nil {
		return fail(fmt.Errorf("failed to list bookings %s to %s: %w", window.From, window.To, err))
	}
	res.TotalFound = len(bookings)
	if _, err := s.archiver.Archive(ctx, conn.HotelID, string(ledger.OpPullReservations), entry.TraceID(), "bookings", bookings); err != nil {
		log.Warn("Failed to archive payload", zap.Error(err))
	}

	var itemErrs error
	for _, b := range bookings {
		blog := log.With(zap.String("booking_id", string(b.ID)))
		rsv, err := s.importBooking(ctx, blog, conn, b, res)
		switch {
		case errors.Is(err, errDuplicate):
			res.Duplicates++
		case err != nil:
			var ce *inventory.CapacityError
			if errors.As(err, &ce) {
				res.Rejected++
			} else {
				res.Failed++
			}
			itemErrs = multierr.Append(itemErrs, fmt.Errorf("booking %s: %w", b.ID, err))
			res.Errors = append(res.Errors, fmt.Sprintf("booking %s: %v", b.ID, err))
			blog.Warn("Skipping booking", zap.Error(err))
		default:
			res.TotalImported++
			res.Data = append(res.Data, *rsv)
		}
	}

	res.Success = true
	res.CreditsUsed, res.CreditsRemaining = meta.CreditsUsed, meta.CreditsRemaining

	status := ledger.StatusSuccess
	if itemErrs != nil {
		status = ledger.StatusPartial
	}
	entry.Finish(ctx, status, ledger.Outcome{Cost: meta.CreditsUsed, Err: itemErrs, Details: pullDetails(res)})
	s.recordConnection(ctx, log, conn.ID, meta)
	s.recordAttempt(ctx, log, conn.HotelID, itemErrs, true)

	today := utils.FormatDate(s.now().UTC())
	if err := s.states.AdvanceCursor(ctx, conn.HotelID, provName, ledger.CursorReservations, today); err != nil {
		log.Warn("Failed to advance reservation cursor", zap.Error(err))
	}

	log.Info("Reservation pull completed",
		zap.String("status", string(status)),
		zap.Int("found", res.TotalFound),
		zap.Int("imported", res.TotalImported),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failed", res.Failed+res.Rejected),
		zap.Int("credits_used", res.CreditsUsed))
	return res, nil
}

// pullWindow resolves the arrival window: the explicit range, else the
// reservation cursor, else the trailing default days. It always ends tomorrow
// unless a range is given.
func (s *Service) pullWindow(ctx context.Context, conn *connection.Connection, dr *DateRange) (DateRange, error) {
	if dr != nil && (dr.From != "" || dr.To != "") {
		from, err := utils.ParseDate(dr.From)
		if err != nil {
			return DateRange{}, err
		}
		to, err := utils.ParseDate(dr.To)
		if err != nil {
			return DateRange{}, err
		}
		if to.Before(from) {
			return DateRange{}, fmt.Errorf("%w: date range ends %s before it starts %s", utils.ErrInvalidDate, dr.To, dr.From)
		}
		return *dr, nil
	}

	today := s.now().UTC()
	to := utils.FormatDate(today.AddDate(0, 0, 1))
	from := utils.FormatDate(today.AddDate(0, 0, -s.cfg.DefaultPullDays))

	cursor, ok, err := s.states.Cursor(ctx, conn.HotelID, s.client.Name(), ledger.CursorReservations)
	if err != nil {
		return DateRange{}, err
	}
	if ok && cursor < to {
		from = cursor
	}
	return DateRange{From: from, To: to}, nil
}

// importBooking imports one booking. Guest, reservation and booking mapping
// are written in one transaction.
func (s *Service) importBooking(ctx context.Context, log *zap.Logger, conn *connection.Connection, b provider.Booking, res *PullResult) (*models.Reservation, error) {
	provName := s.client.Name()
	bookingID := string(b.ID)
	if bookingID == "" {
		return nil, fmt.Errorf("booking without id")
	}

	status := provider.ParseBookingStatus(b.Status)
	if status == provider.StatusUnknown {
		res.Unknown++
		log.Warn("Unknown provider booking status, importing as confirmed", zap.String("status", b.Status))
	}
	internal := internalStatus(status)

	seen, err := s.mappings.FindByExternalID(ctx, provName, mapping.EntityBooking, bookingID)
	if err != nil {
		return nil, err
	}
	if seen != nil {
		if internal == models.StatusCancelled {
			s.cancel(ctx, log, seen.InternalID, res)
		}
		return nil, errDuplicate
	}

	if _, err := utils.Nights(b.Arrival, b.Departure); err != nil {
		return nil, fmt.Errorf("%w: %v", inventory.ErrInvalidRange, err)
	}

	roomTypeID, err := s.resolveRoomType(ctx, log, conn.HotelID, string(b.RoomID), res)
	if err != nil {
		return nil, err
	}

	rsv := &models.Reservation{
		HotelID:           conn.HotelID,
		RoomTypeID:        roomTypeID,
		CheckIn:           b.Arrival,
		CheckOut:          b.Departure,
		Status:            internal,
		ExternalBookingID: &bookingID,
		Source:            sourceOf(provName, b.Channel),
		Adults:            int(b.NumAdult),
		Children:          int(b.NumChild),
		TotalPrice:        float64(b.Price),
		Currency:          b.Currency,
	}

	guestKey := guestExternalID(b)
	var newGuest *models.Guest
	overbooked := false

	// The count is a fast path. Concurrent pulls of one booking are settled by
	// the unique reservation index and the insert-only booking mapping.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dup int64
		if err := tx.Model(&models.Reservation{}).
			Where("hotel_id = ? AND external_booking_id = ?", conn.HotelID, bookingID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return errDuplicate
		}

		if internal.OccupiesInventory() {
			avail, err := s.engine.WithDB(tx).Require(ctx, inventory.Request{
				RoomTypeID:       roomTypeID,
				CheckIn:          b.Arrival,
				CheckOut:         b.Departure,
				Rooms:            1,
				AllowOverbooking: s.cfg.AllowOverbookingOnPull,
			})
			if err != nil {
				return err
			}
			overbooked = avail.Reason == inventory.ReasonNoCapacity
		}

		txMappings := s.mappings.WithDB(tx)
		gm, err := txMappings.FindByExternalID(ctx, provName, mapping.EntityGuest, guestKey)
		if err != nil {
			return err
		}
		if gm != nil {
			rsv.GuestID = &gm.InternalID
		} else {
			g := &models.Guest{
				HotelID:   conn.HotelID,
				FirstName: b.FirstName,
				LastName:  b.LastName,
				Email:     strings.ToLower(strings.TrimSpace(b.Email)),
				Phone:     b.Phone,
			}
			if err := tx.Create(g).Error; err != nil {
				return fmt.Errorf("failed to create guest: %w", err)
			}
			if _, err := txMappings.Upsert(ctx, provName, mapping.EntityGuest, guestKey, g.ID, nil); err != nil {
				return err
			}
			rsv.GuestID = &g.ID
			newGuest = g
		}

		if err := tx.Create(rsv).Error; err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		_, err = txMappings.Insert(ctx, provName, mapping.EntityBooking, bookingID, rsv.ID, map[string]any{
			"provider_status": b.Status,
			"channel":         b.Channel,
		})
		return err
	})
	if isDuplicate(err) {
		return nil, errDuplicate
	}
	if err != nil {
		return nil, err
	}
	if overbooked {
		res.Overbooked++
		log.Warn("Provider booking accepted as overbooking", zap.Uint("room_type_id", roomTypeID))
	}

	if newGuest != nil {
		// Reverse row for the new guest; its failure is logged by the store.
		if _, err := s.mappings.UpsertBidirectional(ctx, provName, mapping.EntityGuest, guestKey, newGuest.ID, nil); err != nil {
			log.Warn("Failed to map guest", zap.Error(err))
		}
	}
	return rsv, nil
}

// resolveRoomType maps a provider room to an internal room type. Without a
// mapping it falls back to the first room type of the hotel and counts the
// fallback in the result.
func (s *Service) resolveRoomType(ctx context.Context, log *zap.Logger, hotelID uint, roomID string, res *PullResult) (uint, error) {
	id, err := s.mappings.Resolve(ctx, s.client.Name(), mapping.EntityRoomType, roomID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, mapping.ErrNotFound) {
		return 0, err
	}

	var rt models.RoomType
	ferr := s.db.WithContext(ctx).Where("hotel_id = ?", hotelID).Order("id").First(&rt).Error
	if errors.Is(ferr, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if ferr != nil {
		return 0, fmt.Errorf("failed to load room types of hotel %d: %w", hotelID, ferr)
	}

	res.Fallbacks++
	log.Warn("Unmapped provider room, falling back to first room type of hotel",
		zap.String("external_room_id", roomID),
		zap.Uint("room_type_id", rt.ID))
	return rt.ID, nil
}

// cancel releases an imported reservation the provider has since cancelled.
func (s *Service) cancel(ctx context.Context, log *zap.Logger, reservationID uint, res *PullResult) {
	q := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status NOT IN ?", reservationID, models.NonOccupying).
		Update("status", models.StatusCancelled)
	if q.Error != nil {
		log.Warn("Failed to cancel reservation", zap.Uint("reservation_id", reservationID), zap.Error(q.Error))
		return
	}
	if q.RowsAffected > 0 {
		res.Cancelled++
		log.Info("Reservation cancelled by provider", zap.Uint("reservation_id", reservationID))
	}
}

// isDuplicate reports whether an import lost to an earlier or concurrent
// import of the same booking.
func isDuplicate(err error) bool {
	return errors.Is(err, errDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, mapping.ErrExists)
}

func guestExternalID(b provider.Booking) string {
	if email := strings.ToLower(strings.TrimSpace(b.Email)); email != "" {
		return "email:" + email
	}
	return "booking:" + string(b.ID)
}

func sourceOf(provName, channel string) string {
	if channel == "" {
		return provName
	}
	return provName + ":" + strings.ToLower(channel)
}

func pullDetails(res *PullResult) map[string]any {
	return map[string]any{
		"window":              res.Window,
		"total_found":         res.TotalFound,
		"total_imported":      res.TotalImported,
		"duplicates":          res.Duplicates,
		"cancelled":           res.Cancelled,
		"rejected":            res.Rejected,
		"overbooked":          res.Overbooked,
		"failed":              res.Failed,
		"unknown_statuses":    res.Unknown,
		"room_type_fallbacks": res.Fallbacks,
		"credits_remaining":   res.CreditsRemaining,
	}
}
