// Package inventory decides whether a stay can be booked.
//
// # Algorithm
//
// A stay covers the nights [check-in, check-out). The engine loads the
// InventoryDay rows of those nights and of the check-out date, then:
//
//  1. Rejects the stay when any night is stop-sell, the check-in date is
//     closed to arrival or the check-out date is closed to departure. These
//     are day-specific, not range-wide.
//  2. Without rows for the nights, capacity is the number of physical rooms of
//     the type minus the reservations overlapping the stay.
//  3. With rows, each night has allotment minus the reservations holding that
//     night (a night without a row uses the physical room count). The stay gets
//     the minimum across nights, floored at zero.
//
// The stay is available when that minimum covers the requested rooms or the
// caller allows overbooking. Cancelled and no-show reservations hold no
// inventory; a reservation being modified can be excluded from the count.
//
// Require turns a negative answer into *CapacityError, which tells the caller
// whether a waitlist may be offered.
//
// # HTTP Endpoints
//
//   - POST /availability/check
package inventory
