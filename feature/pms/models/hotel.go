package models

import "time"

// Hotel is the internal property record.
type Hotel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	City      string    `gorm:"size:120" json:"city"`
	Country   string    `gorm:"size:2" json:"country"`
	Currency  string    `gorm:"size:3" json:"currency"`
	Timezone  string    `gorm:"size:64" json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoomType is a sellable category of rooms in a hotel.
type RoomType struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	HotelID      uint      `gorm:"index;not null" json:"hotel_id"`
	Name         string    `gorm:"size:255" json:"name"`
	MaxOccupancy int       `json:"max_occupancy"`
	BaseRate     float64   `json:"base_rate"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoomStatus is the housekeeping state of a physical room.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

// Room is a physical room. The count of rooms per type is the fallback capacity.
type Room struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	HotelID    uint       `gorm:"index;not null" json:"hotel_id"`
	RoomTypeID uint       `gorm:"index;not null" json:"room_type_id"`
	Number     string     `gorm:"size:32" json:"number"`
	Status     RoomStatus `gorm:"size:32;default:available" json:"status"`
}

// Guest is a CRM guest record.
type Guest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	HotelID   uint      `gorm:"index;not null" json:"hotel_id"`
	FirstName string    `gorm:"size:120" json:"first_name"`
	LastName  string    `gorm:"size:120" json:"last_name"`
	Email     string    `gorm:"size:255;index" json:"email"`
	Phone     string    `gorm:"size:64" json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
