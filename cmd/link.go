package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"channel-manager/feature/token"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	linkHotel        uint
	linkProperty     string
	linkClientID     string
	linkClientSecret string
	linkReadRefresh  string
	linkWriteRefresh string
	linkScopes       []string
	linkVerify       bool
	yesConfirm       bool
)

// linkCmd links a hotel to a provider property.
var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a hotel to a provider property",
	Long: `Stores the OAuth client and refresh tokens of a property and links it to a hotel.

Examples:
  # Link hotel 1 to property P-100 and verify both tokens
  link --hotel 1 --property P-100 --client-id abc --client-secret xyz \
       --read-refresh r-token --write-refresh w-token --verify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if linkHotel == 0 || linkProperty == "" {
			return fmt.Errorf("--hotel and --property are required")
		}
		refresh := map[string]string{}
		if linkReadRefresh != "" {
			refresh[string(token.TypeRead)] = linkReadRefresh
		}
		if linkWriteRefresh != "" {
			refresh[string(token.TypeWrite)] = linkWriteRefresh
		}
		if len(refresh) == 0 {
			return fmt.Errorf("at least one of --read-refresh and --write-refresh is required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		sec, err := a.secrets.Create(ctx, linkClientID, linkClientSecret, refresh)
		if err != nil {
			return err
		}
		conn, err := a.conns.Link(ctx, linkHotel, a.client.Name(), linkProperty, linkScopes, sec.Ref)
		if err != nil {
			return err
		}
		a.log.Info("Property linked",
			zap.Uint("hotel_id", conn.HotelID),
			zap.Uint("connection_id", conn.ID),
			zap.String("property_id", conn.ProviderPropertyID))

		if linkVerify {
			for typ := range refresh {
				if _, err := a.tokens.Refresh(ctx, conn.ID, token.Type(typ)); err != nil {
					return fmt.Errorf("linked, but the %s token could not be obtained: %w", typ, err)
				}
			}
			a.log.Info("Tokens verified", zap.Uint("connection_id", conn.ID))
		}
		return printJSON(conn)
	},
}

// unlinkCmd deactivates a connection.
var unlinkCmd = &cobra.Command{
	Use:   "unlink <connection-id>",
	Short: "Deactivate a provider connection",
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
		conn, err := a.conns.Get(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("Connection %d links hotel %d to property %s.\n", conn.ID, conn.HotelID, conn.ProviderPropertyID)
		fmt.Println("Pulls, pushes and bootstraps for this hotel will stop.")
		if !confirmDestructiveAction() {
			fmt.Println("Aborted.")
			return nil
		}
		if err := a.conns.Unlink(cmd.Context(), id); err != nil {
			return err
		}
		a.log.Info("Connection unlinked", zap.Uint("connection_id", id))
		return nil
	},
}

func init() {
	linkCmd.Flags().UintVar(&linkHotel, "hotel", 0, "Internal hotel id")
	linkCmd.Flags().StringVar(&linkProperty, "property", "", "Provider property id")
	linkCmd.Flags().StringVar(&linkClientID, "client-id", "", "OAuth client id")
	linkCmd.Flags().StringVar(&linkClientSecret, "client-secret", "", "OAuth client secret")
	linkCmd.Flags().StringVar(&linkReadRefresh, "read-refresh", "", "Refresh token of the read credential")
	linkCmd.Flags().StringVar(&linkWriteRefresh, "write-refresh", "", "Refresh token of the write credential")
	linkCmd.Flags().StringSliceVar(&linkScopes, "scopes", nil, "Scopes requested on refresh")
	linkCmd.Flags().BoolVar(&linkVerify, "verify", false, "Obtain access tokens right away")

	unlinkCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm (non-interactive)")

	RootCmd.AddCommand(linkCmd, unlinkCmd)
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
