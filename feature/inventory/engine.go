package inventory

import (
	"context"
	"fmt"

	"channel-manager/core/utils"
	"channel-manager/feature/pms/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine computes availability from inventory days, physical rooms and reservations.
type Engine struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEngine creates an inventory engine.
func NewEngine(db *gorm.DB, logger *zap.Logger) *Engine {
	return &Engine{db: db, logger: logger}
}

// WithDB returns a copy of the engine bound to db, typically a transaction.
func (e *Engine) WithDB(db *gorm.DB) *Engine {
	return &Engine{db: db, logger: e.logger}
}

// CheckAvailability decides whether req can be booked.
//
// Stop sell on any night, closed to arrival on the check-in date and closed to
// departure on the check-out date reject the stay outright. Without inventory
// rows the capacity is the physical room count minus overlapping reservations.
// With rows every night counts allotment minus the reservations holding that
// night, and the stay gets the minimum across nights.
func (e *Engine) CheckAvailability(ctx context.Context, req Request) (*Result, error) {
	nights, err := utils.Nights(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}

	days, err := e.loadDays(ctx, req.RoomTypeID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	if reason := restriction(days, req.CheckIn, req.CheckOut); reason != ReasonNone {
		return &Result{Available: false, AvailableRooms: 0, Reason: reason}, nil
	}

	reservations, err := e.overlapping(ctx, req)
	if err != nil {
		return nil, err
	}

	var res Result
	inRange := 0
	for _, n := range nights {
		if _, ok := days[n]; ok {
			inRange++
		}
	}

	if inRange == 0 {
		physical, err := e.physicalRooms(ctx, req.RoomTypeID)
		if err != nil {
			return nil, err
		}
		res.AvailableRooms = floor(physical - len(reservations))
	} else {
		var physical *int
		res.AvailableRooms = -1
		for _, n := range nights {
			capacity := 0
			if d, ok := days[n]; ok {
				capacity = d.Allotment
			} else {
				// A gap in an otherwise managed calendar falls back to the rooms on hand.
				if physical == nil {
					p, err := e.physicalRooms(ctx, req.RoomTypeID)
					if err != nil {
						return nil, err
					}
					physical = &p
				}
				capacity = *physical
			}
			left := floor(capacity - occupying(reservations, n))
			if res.AvailableRooms < 0 || left < res.AvailableRooms {
				res.AvailableRooms = left
				res.BindingDate = n
			}
		}
	}

	res.Available = res.AvailableRooms >= req.rooms() || req.AllowOverbooking
	if res.AvailableRooms < req.rooms() {
		res.Reason = ReasonNoCapacity
	}
	return &res, nil
}

// Require is CheckAvailability as a guard: it returns *CapacityError when the stay cannot be booked.
func (e *Engine) Require(ctx context.Context, req Request) (*Result, error) {
	res, err := e.CheckAvailability(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.Available {
		return res, &CapacityError{
			RoomTypeID:     req.RoomTypeID,
			CheckIn:        req.CheckIn,
			CheckOut:       req.CheckOut,
			Requested:      req.rooms(),
			AvailableRooms: res.AvailableRooms,
			Reason:         res.Reason,
		}
	}
	if res.Reason == ReasonNoCapacity {
		e.logger.Warn("Overbooking accepted",
			zap.Uint("room_type_id", req.RoomTypeID),
			zap.String("check_in", req.CheckIn),
			zap.String("check_out", req.CheckOut),
			zap.Int("available_rooms", res.AvailableRooms),
			zap.Int("requested", req.rooms()))
	}
	return res, nil
}

// loadDays loads the rows for the nights of the stay plus the check-out date.
func (e *Engine) loadDays(ctx context.Context, roomTypeID uint, checkIn, checkOut string) (map[string]models.InventoryDay, error) {
	var rows []models.InventoryDay
	err := e.db.WithContext(ctx).
		Where("room_type_id = ? AND date >= ? AND date <= ?", roomTypeID, checkIn, checkOut).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory for room type %d: %w", roomTypeID, err)
	}
	days := make(map[string]models.InventoryDay, len(rows))
	for _, r := range rows {
		days[r.Date] = r
	}
	return days, nil
}

func restriction(days map[string]models.InventoryDay, checkIn, checkOut string) Reason {
	for date, d := range days {
		if date < checkOut && d.StopSell {
			return ReasonStopSell
		}
	}
	if d, ok := days[checkIn]; ok && d.ClosedToArrival {
		return ReasonClosedToArrival
	}
	if d, ok := days[checkOut]; ok && d.ClosedToDeparture {
		return ReasonClosedToDeparture
	}
	return ReasonNone
}

func (e *Engine) overlapping(ctx context.Context, req Request) ([]models.Reservation, error) {
	q := e.db.WithContext(ctx).
		Select("id", "check_in", "check_out").
		Where("room_type_id = ? AND check_in < ? AND check_out > ?", req.RoomTypeID, req.CheckOut, req.CheckIn).
		Where("status NOT IN ?", models.NonOccupying)
	if req.ExcludeReservationID != nil {
		q = q.Where("id <> ?", *req.ExcludeReservationID)
	}

	var out []models.Reservation
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load reservations for room type %d: %w", req.RoomTypeID, err)
	}
	return out, nil
}

func (e *Engine) physicalRooms(ctx context.Context, roomTypeID uint) (int, error) {
	var n int64
	if err := e.db.WithContext(ctx).Model(&models.Room{}).Where("room_type_id = ?", roomTypeID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count rooms of type %d: %w", roomTypeID, err)
	}
	return int(n), nil
}

func occupying(reservations []models.Reservation, night string) int {
	n := 0
	for _, r := range reservations {
		if r.CheckIn <= night && night < r.CheckOut {
			n++
		}
	}
	return n
}

func floor(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
