package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestReservationStatus_OccupiesInventory(t *testing.T) {
	tests := []struct {
		status ReservationStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusConfirmed, true},
		{StatusCheckedIn, true},
		{StatusCheckedOut, true},
		{StatusBlocked, true},
		{StatusCancelled, false},
		{StatusNoShow, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.OccupiesInventory())
		})
	}
}

func TestInventoryDay_UniquePerRoomTypeAndDate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(All()...))

	require.NoError(t, db.Create(&InventoryDay{RoomTypeID: 1, Date: "2024-06-10", Allotment: 3}).Error)
	assert.Error(t, db.Create(&InventoryDay{RoomTypeID: 1, Date: "2024-06-10", Allotment: 5}).Error)
	assert.NoError(t, db.Create(&InventoryDay{RoomTypeID: 2, Date: "2024-06-10", Allotment: 5}).Error)
}
