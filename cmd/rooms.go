package cmd

import (
	"fmt"

	"channel-manager/feature/mapping"
	"channel-manager/feature/token"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var roomsHotel uint

// roomsCmd lists the provider room types of a hotel next to their mappings.
var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List provider room types and their internal mapping",
	Long: `Fetches the room types of the linked property and shows which internal
room type each one maps to. Unmapped rooms fall back to the first room type
of the hotel on pull; run bootstrap to map them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if roomsHotel == 0 {
			return fmt.Errorf("--hotel is required")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		conn, err := a.conns.ForHotel(ctx, roomsHotel, a.client.Name())
		if err != nil {
			return err
		}
		tok, err := a.tokens.GetValidToken(ctx, conn.ID, token.TypeRead)
		if err != nil {
			return err
		}
		rooms, meta, err := a.client.GetRoomTypes(ctx, tok.Value, conn.ProviderPropertyID)
		if err != nil {
			return err
		}

		type row struct {
			ExternalID string `json:"external_id"`
			Name       string `json:"name"`
			Qty        int    `json:"qty"`
			RoomTypeID *uint  `json:"room_type_id"`
		}
		out := make([]row, 0, len(rooms))
		unmapped := 0
		for _, r := range rooms {
			rw := row{ExternalID: string(r.ID), Name: r.Name, Qty: int(r.Qty)}
			m, err := a.maps.FindByExternalID(ctx, a.client.Name(), mapping.EntityRoomType, string(r.ID))
			if err != nil {
				return err
			}
			if m != nil {
				rw.RoomTypeID = &m.InternalID
			} else {
				unmapped++
			}
			out = append(out, rw)
		}

		fields := []zap.Field{zap.Int("rooms", len(rooms)), zap.Int("unmapped", unmapped)}
		if meta != nil && meta.Reported {
			fields = append(fields, zap.Int("credits_remaining", meta.CreditsRemaining))
		}
		a.log.Info("Provider room types", fields...)
		return printJSON(out)
	},
}

func init() {
	roomsCmd.Flags().UintVar(&roomsHotel, "hotel", 0, "Internal hotel id")
	RootCmd.AddCommand(roomsCmd)
}
