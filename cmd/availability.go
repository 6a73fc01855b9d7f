package cmd

import (
	"fmt"

	"channel-manager/feature/inventory"

	"github.com/spf13/cobra"
)

var (
	availRoomType uint
	availCheckIn  string
	availCheckOut string
	availRooms    int
	availOverbook bool
)

// availabilityCmd checks whether a stay can be booked.
var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Check availability of a room type for a stay",
	RunE: func(cmd *cobra.Command, args []string) error {
		if availRoomType == 0 {
			return fmt.Errorf("--room-type is required")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		res, err := a.engine.CheckAvailability(cmd.Context(), inventory.Request{
			RoomTypeID:       availRoomType,
			CheckIn:          availCheckIn,
			CheckOut:         availCheckOut,
			Rooms:            availRooms,
			AllowOverbooking: availOverbook,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	availabilityCmd.Flags().UintVar(&availRoomType, "room-type", 0, "Internal room type id")
	availabilityCmd.Flags().StringVar(&availCheckIn, "check-in", "", "Check-in date (YYYY-MM-DD)")
	availabilityCmd.Flags().StringVar(&availCheckOut, "check-out", "", "Check-out date (YYYY-MM-DD)")
	availabilityCmd.Flags().IntVar(&availRooms, "rooms", 1, "Rooms requested")
	availabilityCmd.Flags().BoolVar(&availOverbook, "allow-overbooking", false, "Accept the stay without capacity")
	RootCmd.AddCommand(availabilityCmd)
}
