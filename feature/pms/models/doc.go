// Package models defines the PMS tables the channel manager reads and writes.
//
// These tables belong to the property-management system of record; the engine
// only touches the columns it needs: hotels and room types during bootstrap,
// inventory days during calendar import, guests and reservations during
// reservation pulls. Calendar dates are stored as YYYY-MM-DD strings so range
// predicates compare the same way on MySQL and sqlite.
package models

// All lists every PMS model for migrations.
func All() []any {
	return []any{&Hotel{}, &RoomType{}, &Room{}, &Guest{}, &Reservation{}, &InventoryDay{}}
}
