package models

import "time"

// ReservationStatus is the internal reservation vocabulary.
type ReservationStatus string

const (
	StatusPending    ReservationStatus = "pending"
	StatusConfirmed  ReservationStatus = "confirmed"
	StatusCheckedIn  ReservationStatus = "checked_in"
	StatusCheckedOut ReservationStatus = "checked_out"
	StatusCancelled  ReservationStatus = "cancelled"
	StatusNoShow     ReservationStatus = "no_show"
	StatusBlocked    ReservationStatus = "blocked"
)

// NonOccupying lists the statuses that release their inventory.
var NonOccupying = []ReservationStatus{StatusCancelled, StatusNoShow}

// OccupiesInventory reports whether a reservation in this status holds a room.
func (s ReservationStatus) OccupiesInventory() bool {
	for _, n := range NonOccupying {
		if s == n {
			return false
		}
	}
	return true
}

// Reservation is an internal booking. Stays are the half-open range [CheckIn, CheckOut).
type Reservation struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	HotelID           uint              `gorm:"index;uniqueIndex:idx_reservation_external;not null" json:"hotel_id"`
	RoomTypeID        uint              `gorm:"index:idx_reservation_stay;not null" json:"room_type_id"`
	GuestID           *uint             `gorm:"index" json:"guest_id,omitempty"`
	CheckIn           string            `gorm:"size:10;index:idx_reservation_stay;not null" json:"check_in"`
	CheckOut          string            `gorm:"size:10;index:idx_reservation_stay;not null" json:"check_out"`
	Status            ReservationStatus `gorm:"size:32;not null" json:"status"`
	ExternalBookingID *string           `gorm:"size:64;uniqueIndex:idx_reservation_external" json:"external_booking_id,omitempty"`
	Source            string            `gorm:"size:64" json:"source"`
	Adults            int               `json:"adults"`
	Children          int               `json:"children"`
	TotalPrice        float64           `json:"total_price"`
	Currency          string            `gorm:"size:3" json:"currency"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// InventoryDay is the sellable allotment and restrictions of a room type on one date.
// A missing row means the physical room count applies.
type InventoryDay struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RoomTypeID        uint      `gorm:"uniqueIndex:idx_inventory_room_date;not null" json:"room_type_id"`
	Date              string    `gorm:"size:10;uniqueIndex:idx_inventory_room_date;not null" json:"date"`
	Allotment         int       `json:"allotment"`
	StopSell          bool      `json:"stop_sell"`
	ClosedToArrival   bool      `json:"closed_to_arrival"`
	ClosedToDeparture bool      `json:"closed_to_departure"`
	Rate              *float64  `json:"rate,omitempty"`
	MinStay           *int      `json:"min_stay,omitempty"`
	MaxStay           *int      `json:"max_stay,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}
