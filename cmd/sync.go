package cmd

import (
	"fmt"

	"channel-manager/feature/channelsync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	pullConnection uint
	pullFrom       string
	pullTo         string
	pullScheduled  bool

	pushHotel         uint
	pushRoomType      uint
	pushStart         string
	pushEnd           string
	pushRate          float64
	pushAvail         int
	pushMinStay       int
	pushMaxStay       int
	pushStopSell      bool
	pushClosedArrival bool

	auditLimit int
)

// syncCmd is the parent command for sync operations.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull reservations, push rates and manage sync state",
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import provider reservations of a connection",
	Long: `Imports provider bookings whose arrival falls in the window.

Without --from/--to the window starts at the reservation cursor (or the
configured trailing days) and ends tomorrow. --scheduled behaves like the
recurring job and is skipped when sync is disabled for the hotel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pullConnection == 0 {
			return fmt.Errorf("--connection is required")
		}
		req := channelsync.PullRequest{ConnectionID: pullConnection, SyncType: channelsync.SyncManual}
		if pullScheduled {
			req.SyncType = channelsync.SyncScheduled
		}
		if pullFrom != "" || pullTo != "" {
			req.DateRange = &channelsync.DateRange{From: pullFrom, To: pullTo}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		res, err := a.sync.PullReservations(cmd.Context(), req)
		if err != nil {
			return err
		}
		res.Data = nil
		return printJSON(res)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send rate and availability changes of a room type",
	Long: `Sends calendar changes over [start, end] for one room type.
Only the flags given on the command line are sent.

Examples:
  sync push --hotel 1 --room-type 3 --start 2024-07-01 --end 2024-07-07 --rate 120
  sync push --hotel 1 --room-type 3 --start 2024-07-01 --end 2024-07-01 --stop-sell`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pushHotel == 0 || pushRoomType == 0 {
			return fmt.Errorf("--hotel and --room-type are required")
		}
		flags := cmd.Flags()
		var ch channelsync.Changes
		if flags.Changed("rate") {
			ch.Rate = &pushRate
		}
		if flags.Changed("avail") {
			ch.NumAvail = &pushAvail
		}
		if flags.Changed("min-stay") {
			ch.MinStay = &pushMinStay
		}
		if flags.Changed("max-stay") {
			ch.MaxStay = &pushMaxStay
		}
		if flags.Changed("stop-sell") {
			ch.StopSell = &pushStopSell
		}
		if flags.Changed("closed-arrival") {
			ch.ClosedArrival = &pushClosedArrival
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		res, err := a.sync.PushRates(cmd.Context(), channelsync.PushRequest{
			HotelID:    pushHotel,
			RoomTypeID: pushRoomType,
			Start:      pushStart,
			End:        pushEnd,
			Changes:    ch,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable <hotel-id>",
	Short: "Resume scheduled syncs of a hotel",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, args[0], true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable <hotel-id>",
	Short: "Pause scheduled syncs of a hotel",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, args[0], false) },
}

var stateCmd = &cobra.Command{
	Use:   "state <hotel-id>",
	Short: "Show the sync state of a hotel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		st, err := a.states.Get(cmd.Context(), id, a.client.Name())
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("hotel %d has no sync state", id)
		}
		return printJSON(st)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <hotel-id>",
	Short: "List the latest audit records of a hotel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		recs, err := a.ledger.Recent(cmd.Context(), id, auditLimit)
		if err != nil {
			return err
		}
		return printJSON(recs)
	},
}

func setEnabled(cmd *cobra.Command, arg string, enabled bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	if _, err := a.states.SetEnabled(cmd.Context(), id, a.client.Name(), enabled); err != nil {
		return err
	}
	a.log.Info("Scheduled sync updated", zap.Uint("hotel_id", id), zap.Bool("enabled", enabled))
	return nil
}

func init() {
	pullCmd.Flags().UintVar(&pullConnection, "connection", 0, "Connection id")
	pullCmd.Flags().StringVar(&pullFrom, "from", "", "First arrival date (YYYY-MM-DD)")
	pullCmd.Flags().StringVar(&pullTo, "to", "", "Last arrival date (YYYY-MM-DD)")
	pullCmd.Flags().BoolVar(&pullScheduled, "scheduled", false, "Run as a scheduled pull")

	pushCmd.Flags().UintVar(&pushHotel, "hotel", 0, "Internal hotel id")
	pushCmd.Flags().UintVar(&pushRoomType, "room-type", 0, "Internal room type id")
	pushCmd.Flags().StringVar(&pushStart, "start", "", "First date (YYYY-MM-DD)")
	pushCmd.Flags().StringVar(&pushEnd, "end", "", "Last date (YYYY-MM-DD)")
	pushCmd.Flags().Float64Var(&pushRate, "rate", 0, "Nightly rate")
	pushCmd.Flags().IntVar(&pushAvail, "avail", 0, "Rooms available")
	pushCmd.Flags().IntVar(&pushMinStay, "min-stay", 0, "Minimum stay")
	pushCmd.Flags().IntVar(&pushMaxStay, "max-stay", 0, "Maximum stay")
	pushCmd.Flags().BoolVar(&pushStopSell, "stop-sell", false, "Stop sell")
	pushCmd.Flags().BoolVar(&pushClosedArrival, "closed-arrival", false, "Closed to arrival")

	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum records")

	syncCmd.AddCommand(pullCmd, pushCmd, enableCmd, disableCmd, stateCmd, auditCmd)
	RootCmd.AddCommand(syncCmd)
}
