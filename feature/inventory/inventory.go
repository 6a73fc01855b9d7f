package inventory

import (
	"errors"
	"fmt"
)

// Request asks whether a stay of Rooms rooms of one type can be booked.
// The stay covers the nights [CheckIn, CheckOut).
type Request struct {
	RoomTypeID           uint   `json:"room_type_id"`
	CheckIn              string `json:"check_in"`
	CheckOut             string `json:"check_out"`
	Rooms                int    `json:"rooms"`
	AllowOverbooking     bool   `json:"allow_overbooking"`
	ExcludeReservationID *uint  `json:"exclude_reservation_id,omitempty"`
}

func (r Request) rooms() int {
	if r.Rooms < 1 {
		return 1
	}
	return r.Rooms
}

// Reason explains an unavailable result.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonStopSell          Reason = "stop_sell"
	ReasonClosedToArrival   Reason = "closed_to_arrival"
	ReasonClosedToDeparture Reason = "closed_to_departure"
	ReasonNoCapacity        Reason = "no_capacity"
)

// Restriction reports whether the reason is a calendar restriction rather than a lack of rooms.
func (r Reason) Restriction() bool {
	return r == ReasonStopSell || r == ReasonClosedToArrival || r == ReasonClosedToDeparture
}

// Result is the outcome of an availability check.
// AvailableRooms is the tightest night of the stay and never negative.
type Result struct {
	Available      bool   `json:"available"`
	AvailableRooms int    `json:"available_rooms"`
	Reason         Reason `json:"reason,omitempty"`
	// BindingDate is the night that set AvailableRooms, empty when no inventory rows exist.
	BindingDate string `json:"binding_date,omitempty"`
}

// ErrInvalidRange is returned for unparsable dates or a check-out not after check-in.
var ErrInvalidRange = errors.New("invalid stay range")

// CapacityError rejects a booking request that does not fit the inventory.
type CapacityError struct {
	RoomTypeID     uint
	CheckIn        string
	CheckOut       string
	Requested      int
	AvailableRooms int
	Reason         Reason
}

func (e *CapacityError) Error() string {
	if e.Reason.Restriction() {
		return fmt.Sprintf("room type %d cannot be booked %s to %s: %s", e.RoomTypeID, e.CheckIn, e.CheckOut, e.Reason)
	}
	return fmt.Sprintf("room type %d has %d of %d requested rooms for %s to %s",
		e.RoomTypeID, e.AvailableRooms, e.Requested, e.CheckIn, e.CheckOut)
}

// Waitlist reports whether the request may be offered a waitlist instead.
// Calendar restrictions are not waitlisted; a sold out stay is.
func (e *CapacityError) Waitlist() bool {
	return !e.Reason.Restriction()
}
