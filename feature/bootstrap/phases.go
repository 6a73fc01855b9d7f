package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"channel-manager/core/provider"
	"channel-manager/core/utils"
	"channel-manager/feature/mapping"
	"channel-manager/feature/pms/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// importHotel fetches the property and upserts the hotel record.
// Its errors are call-level.
func (s *Service) importHotel(ctx context.Context, r *run) (*provider.Property, error) {
	prop, meta, err := s.client.GetProperty(ctx, r.token, r.req.PropertyID)
	r.meta.Add(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch property %s: %w", r.req.PropertyID, err)
	}
	s.archive(ctx, r, "property", prop)

	hotel := models.Hotel{
		ID:       r.req.HotelID,
		Name:     prop.Name,
		Address:  prop.Address,
		City:     prop.City,
		Country:  prop.Country,
		Currency: prop.Currency,
		Timezone: prop.Timezone,
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Hotel{}).Where("id = ?", hotel.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to load hotel %d: %w", hotel.ID, err)
	}
	if count > 0 {
		err = s.db.WithContext(ctx).Model(&hotel).
			Select("name", "address", "city", "country", "currency", "timezone").
			Updates(&hotel).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update hotel %d: %w", hotel.ID, err)
		}
		r.result.Hotel.Updated++
	} else {
		if err := s.db.WithContext(ctx).Create(&hotel).Error; err != nil {
			return nil, fmt.Errorf("failed to create hotel %d: %w", hotel.ID, err)
		}
		r.result.Hotel.Created++
	}

	_, err = s.mappings.UpsertBidirectional(ctx, s.client.Name(), mapping.EntityHotel, string(prop.ID), hotel.ID,
		map[string]any{"name": prop.Name})
	if err != nil {
		r.result.Hotel.fail(err)
		r.log.Warn("Failed to map hotel", zap.Error(err))
	}
	return prop, nil
}

// importRoomTypes upserts every room type and tops up its physical rooms.
// A failing room type is recorded and the others continue.
func (s *Service) importRoomTypes(ctx context.Context, r *run, rooms []provider.RoomType) {
	s.archive(ctx, r, "room_types", rooms)
	phase := &r.result.RoomTypes

	for _, room := range rooms {
		if err := s.importRoomType(ctx, r, room, phase); err != nil {
			phase.fail(fmt.Errorf("room type %s: %w", room.ID, err))
			r.log.Warn("Failed to import room type", zap.String("external_id", string(room.ID)), zap.Error(err))
		}
	}
}

func (s *Service) importRoomType(ctx context.Context, r *run, room provider.RoomType, phase *PhaseResult) error {
	provName := s.client.Name()
	existing, err := s.mappings.FindByExternalID(ctx, provName, mapping.EntityRoomType, string(room.ID))
	if err != nil {
		return err
	}

	rt := models.RoomType{
		HotelID:      r.req.HotelID,
		Name:         room.Name,
		MaxOccupancy: int(room.MaxPeople),
		BaseRate:     float64(room.MinPrice),
	}
	created := true

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing != nil {
			var current models.RoomType
			err := tx.Where("id = ? AND hotel_id = ?", existing.InternalID, r.req.HotelID).First(&current).Error
			switch {
			case err == nil:
				rt.ID = current.ID
				created = false
				if err := tx.Model(&rt).Select("name", "max_occupancy", "base_rate").Updates(&rt).Error; err != nil {
					return fmt.Errorf("failed to update room type %d: %w", rt.ID, err)
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("failed to load room type %d: %w", existing.InternalID, err)
			}
		}
		if created {
			if err := tx.Create(&rt).Error; err != nil {
				return fmt.Errorf("failed to create room type: %w", err)
			}
		}
		return topUpRooms(tx, rt, int(room.Qty))
	})
	if err != nil {
		return err
	}

	if created {
		phase.Created++
	} else {
		phase.Updated++
	}

	_, err = s.mappings.UpsertBidirectional(ctx, provName, mapping.EntityRoomType, string(room.ID), rt.ID,
		map[string]any{"name": room.Name})
	return err
}

// topUpRooms creates physical rooms until the type has qty of them. Rooms are never removed.
func topUpRooms(tx *gorm.DB, rt models.RoomType, qty int) error {
	var have int64
	if err := tx.Model(&models.Room{}).Where("room_type_id = ?", rt.ID).Count(&have).Error; err != nil {
		return fmt.Errorf("failed to count rooms of type %d: %w", rt.ID, err)
	}
	for i := int(have); i < qty; i++ {
		room := models.Room{
			HotelID:    rt.HotelID,
			RoomTypeID: rt.ID,
			Number:     fmt.Sprintf("%d-%02d", rt.ID, i+1),
			Status:     models.RoomAvailable,
		}
		if err := tx.Create(&room).Error; err != nil {
			return fmt.Errorf("failed to create room %s: %w", room.Number, err)
		}
	}
	return nil
}

// importCalendar fetches the calendar window and upserts it per mapped room type.
// Rows of unmapped rooms are skipped with a warning.
func (s *Service) importCalendar(ctx context.Context, r *run) {
	phase := &r.result.Calendar
	today := utils.FormatDate(s.now().UTC())
	to, err := utils.AddDays(today, s.calendarDays-1)
	if err != nil {
		phase.fail(err)
		return
	}

	entries, meta, err := s.client.GetCalendar(ctx, r.token, r.req.PropertyID, today, to)
	r.meta.Add(meta)
	if err != nil {
		phase.fail(fmt.Errorf("failed to fetch calendar %s to %s: %w", today, to, err))
		r.log.Error("Calendar fetch failed", zap.Error(err), zap.Bool("retryable", provider.IsRetryable(err)))
		return
	}
	s.archive(ctx, r, "calendar", entries)

	byRoom := map[string][]provider.CalendarEntry{}
	for _, e := range entries {
		byRoom[string(e.RoomID)] = append(byRoom[string(e.RoomID)], e)
	}
	roomIDs := make([]string, 0, len(byRoom))
	for id := range byRoom {
		roomIDs = append(roomIDs, id)
	}
	sort.Strings(roomIDs)

	for _, roomID := range roomIDs {
		roomTypeID, err := s.mappings.Resolve(ctx, s.client.Name(), mapping.EntityRoomType, roomID)
		if errors.Is(err, mapping.ErrNotFound) {
			phase.Skipped = append(phase.Skipped, roomID)
			r.log.Warn("Skipping calendar of unmapped room", zap.String("external_room_id", roomID))
			continue
		}
		if err != nil {
			phase.fail(err)
			continue
		}

		days := make([]models.InventoryDay, 0, len(byRoom[roomID]))
		for _, e := range byRoom[roomID] {
			if _, err := utils.ParseDate(e.Date); err != nil {
				phase.fail(fmt.Errorf("room %s: %w", roomID, err))
				continue
			}
			days = append(days, inventoryDay(roomTypeID, e))
		}

		stats, err := s.engine.UpsertDays(ctx, days)
		if err != nil {
			phase.fail(fmt.Errorf("room %s: %w", roomID, err))
			continue
		}
		phase.Created += stats.Created
		phase.Updated += stats.Updated
	}

	r.result.CalendarFrom = today
	r.result.CalendarTo = to
}

func inventoryDay(roomTypeID uint, e provider.CalendarEntry) models.InventoryDay {
	d := models.InventoryDay{
		RoomTypeID:        roomTypeID,
		Date:              e.Date,
		Allotment:         int(e.NumAvail),
		StopSell:          bool(e.StopSell),
		ClosedToArrival:   bool(e.ClosedArrival),
		ClosedToDeparture: bool(e.ClosedDeparture),
	}
	if e.Price != nil {
		rate := float64(*e.Price)
		d.Rate = &rate
	}
	if e.MinStay > 0 {
		v := int(e.MinStay)
		d.MinStay = &v
	}
	if e.MaxStay > 0 {
		v := int(e.MaxStay)
		d.MaxStay = &v
	}
	return d
}
