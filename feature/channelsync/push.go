package channelsync

import (
	"context"
	"fmt"

	"channel-manager/core/logger"
	"channel-manager/core/provider"
	"channel-manager/core/utils"
	"channel-manager/feature/ledger"
	"channel-manager/feature/mapping"
	"channel-manager/feature/token"

	"go.uber.org/zap"
)

// PushRates sends calendar changes of one room type to the provider.
// The room type is translated through its mapping and only the fields set in
// Changes are sent. Provider errors are returned as they are.
func (s *Service) PushRates(ctx context.Context, req PushRequest) (*PushResult, error) {
	provName := s.client.Name()
	scope := ledger.Scope{HotelID: req.HotelID, TraceID: req.TraceID}

	// Rejected pushes are audited with whatever scope is known so far.
	reject := func(err error) (*PushResult, error) {
		traceID := s.ledger.Fail(ctx, ledger.OpPushRates, scope, err)
		s.logger.Warn("Rate push rejected",
			zap.Uint("hotel_id", req.HotelID),
			zap.Uint("room_type_id", req.RoomTypeID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		return nil, err
	}

	if req.Changes.Empty() {
		return reject(ErrNoChanges)
	}
	from, err := utils.ParseDate(req.Start)
	if err != nil {
		return reject(err)
	}
	to, err := utils.ParseDate(req.End)
	if err != nil {
		return reject(err)
	}
	if to.Before(from) {
		return reject(fmt.Errorf("%w: push ends %s before it starts %s", utils.ErrInvalidDate, req.End, req.Start))
	}

	conn, err := s.conns.ForHotel(ctx, req.HotelID, provName)
	if err != nil {
		return reject(err)
	}
	scope.ConnectionID = &conn.ID

	ext, err := s.mappings.FindByInternalID(ctx, provName, mapping.EntityRoomType, req.RoomTypeID)
	if err != nil {
		return reject(err)
	}
	if ext == nil {
		return reject(fmt.Errorf("%w: room type %d has no %s room", mapping.ErrNotFound, req.RoomTypeID, provName))
	}

	entry := s.ledger.Begin(ctx, ledger.OpPushRates, scope)
	log := logger.WithTrace(s.logger, entry.TraceID()).With(
		zap.Uint("hotel_id", req.HotelID),
		zap.Uint("room_type_id", req.RoomTypeID),
		zap.String("external_room_id", ext.ExternalID))

	change := provider.CalendarChange{
		RoomID:        ext.ExternalID,
		From:          req.Start,
		To:            req.End,
		Price:         req.Changes.Rate,
		NumAvail:      req.Changes.NumAvail,
		MinStay:       req.Changes.MinStay,
		MaxStay:       req.Changes.MaxStay,
		StopSell:      req.Changes.StopSell,
		ClosedArrival: req.Changes.ClosedArrival,
	}
	details := map[string]any{"room_id": ext.ExternalID, "from": req.Start, "to": req.End, "changes": req.Changes}

	var meta provider.Meta
	tok, err := s.tokens.GetValidToken(ctx, conn.ID, token.TypeWrite)
	if err == nil {
		var m *provider.Meta
		m, err = s.client.UpdateCalendar(ctx, tok.Value, []provider.CalendarChange{change})
		meta.Add(m)
	}
	s.recordConnection(ctx, log, conn.ID, meta)

	if err != nil {
		entry.Finish(ctx, ledger.StatusFailed, ledger.Outcome{Cost: meta.CreditsUsed, Err: err, Details: details})
		log.Error("Rate push failed", zap.Error(err), zap.Bool("retryable", provider.IsRetryable(err)))
		return nil, err
	}

	entry.Finish(ctx, ledger.StatusSuccess, ledger.Outcome{Cost: meta.CreditsUsed, Details: details})
	log.Info("Rates pushed", zap.String("from", req.Start), zap.String("to", req.End), zap.Int("credits_used", meta.CreditsUsed))
	return &PushResult{Success: true, CreditsUsed: meta.CreditsUsed, TraceID: entry.TraceID()}, nil
}
